package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/util"
)

// Kind says how raw readings of a counter become sample values.
type Kind int

const (
	// Gauge values are reported as read.
	Gauge Kind = iota
	// Rate values are the per-second growth of a cumulative counter.
	Rate
	// Ratio values are the growth of Num over the growth of Den.
	Ratio
)

// Reading is one raw value of a counter instance. Den is used by Ratio only.
type Reading struct {
	Num float64
	Den float64
}

// ReadFunc returns the current raw reading of every instance of a counter.
type ReadFunc func(ctx context.Context) (map[string]Reading, error)

// Counter describes one queryable counter.
type Counter struct {
	Category string
	Name     string
	Kind     Kind
	Scale    float64 // applied to derived values; 0 means 1
	Read     ReadFunc
}

// CounterSpec selects a counter and an instance; "*" selects every instance.
type CounterSpec struct {
	Category string
	Name     string
	Instance string
}

// AllInstances is the wildcard instance selector.
const AllInstances = "*"

func (s CounterSpec) String() string {
	inst := s.Instance
	if inst == "" {
		inst = AllInstances
	}
	return fmt.Sprintf(`\%s(%s)\%s`, s.Category, inst, s.Name)
}

func (s CounterSpec) matches(instance string) bool {
	return s.Instance == "" || s.Instance == AllInstances || s.Instance == instance
}

// Catalog indexes counters by category and name.
type Catalog map[string]*Counter

func catalogKey(category, name string) string { return category + `\` + name }

// Add registers a counter.
func (c Catalog) Add(ctr *Counter) { c[catalogKey(ctr.Category, ctr.Name)] = ctr }

// Lookup returns the counter for a category and name.
func (c Catalog) Lookup(category, name string) (*Counter, bool) {
	ctr, ok := c[catalogKey(category, name)]
	return ctr, ok
}

// Sampler reads counters from a catalog at a fixed cadence. It never fails
// the caller: a counter that cannot be read yields no samples and a warning.
type Sampler struct {
	catalog Catalog
	log     *zap.Logger
	now     func() time.Time
	wait    func(ctx context.Context, d time.Duration) error
}

// NewSampler creates a sampler over a catalog.
func NewSampler(catalog Catalog, log *zap.Logger) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sampler{catalog: catalog, log: log, now: time.Now, wait: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sample reads one counter count times, interval apart. The result is empty
// if the counter does not exist or any reading fails.
func (s *Sampler) Sample(ctx context.Context, spec CounterSpec, interval time.Duration, count int) []model.MetricSample {
	return s.SampleAll(ctx, []CounterSpec{spec}, interval, count)[spec]
}

// SampleAll reads several counters over one shared window. Each spec fails
// on its own; the others keep sampling.
func (s *Sampler) SampleAll(ctx context.Context, specs []CounterSpec, interval time.Duration, count int) map[CounterSpec][]model.MetricSample {
	out := make(map[CounterSpec][]model.MetricSample, len(specs))
	if count <= 0 || len(specs) == 0 {
		return out
	}

	live := make([]*series, 0, len(specs))
	for _, spec := range specs {
		ctr, ok := s.catalog.Lookup(spec.Category, spec.Name)
		if !ok {
			s.log.Warn("counter not available", zap.String("counter", spec.String()))
			continue
		}
		live = append(live, &series{spec: spec, ctr: ctr})
	}

	// Derived counters need a baseline one interval before the first sample.
	for _, sr := range live {
		if sr.ctr.Kind == Gauge {
			continue
		}
		if err := sr.read(ctx, s.now()); err != nil {
			s.fail(sr, err)
		}
	}
	if needsBaseline(live) {
		if err := s.wait(ctx, interval); err != nil {
			return out
		}
	}

	for i := 0; i < count; i++ {
		if i > 0 {
			if err := s.wait(ctx, interval); err != nil {
				// A cut-short window returns nothing rather than a partial average.
				return out
			}
		}
		ts := s.now()
		for _, sr := range live {
			if sr.failed {
				continue
			}
			if err := sr.read(ctx, ts); err != nil {
				s.fail(sr, err)
			}
		}
	}

	for _, sr := range live {
		if !sr.failed && len(sr.samples) > 0 {
			out[sr.spec] = sr.samples
		}
	}
	return out
}

func (s *Sampler) fail(sr *series, err error) {
	if sr.failed {
		return
	}
	sr.failed = true
	sr.samples = nil
	s.log.Warn("counter read failed", zap.String("counter", sr.spec.String()), zap.Error(err))
}

func needsBaseline(live []*series) bool {
	for _, sr := range live {
		if sr.ctr.Kind != Gauge && !sr.failed {
			return true
		}
	}
	return false
}

// series is the sampling state of one spec.
type series struct {
	spec    CounterSpec
	ctr     *Counter
	prev    map[string]Reading
	prevTS  time.Time
	samples []model.MetricSample
	failed  bool
}

func (sr *series) read(ctx context.Context, ts time.Time) error {
	raw, err := sr.ctr.Read(ctx)
	if err != nil {
		return err
	}
	if sr.ctr.Kind != Gauge && sr.prev == nil {
		sr.prev, sr.prevTS = raw, ts
		return nil
	}

	scale := sr.ctr.Scale
	if scale == 0 {
		scale = 1
	}
	dt := ts.Sub(sr.prevTS)

	instances := make([]string, 0, len(raw))
	for inst := range raw {
		if sr.spec.matches(inst) {
			instances = append(instances, inst)
		}
	}
	sort.Strings(instances)

	for _, inst := range instances {
		cur := raw[inst]
		var v float64
		switch sr.ctr.Kind {
		case Gauge:
			v = cur.Num
		case Rate:
			prev, ok := sr.prev[inst]
			if !ok {
				continue
			}
			v = util.Rate(prev.Num, cur.Num, dt)
		case Ratio:
			prev, ok := sr.prev[inst]
			if !ok {
				continue
			}
			v = util.Ratio(prev.Num, cur.Num, prev.Den, cur.Den)
		}
		sr.samples = append(sr.samples, model.MetricSample{
			Category:  sr.spec.Category,
			Counter:   sr.spec.Name,
			Instance:  inst,
			Value:     v * scale,
			Timestamp: ts,
		})
	}
	if sr.ctr.Kind != Gauge {
		sr.prev, sr.prevTS = raw, ts
	}
	return nil
}
