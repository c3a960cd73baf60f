package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/model"
)

// Cadence is the sampling interval and sample count of a run.
type Cadence struct {
	Interval time.Duration
	Count    int
}

// Window is the wall time one sampled counter set blocks for.
func (c Cadence) Window() time.Duration {
	return c.Interval * time.Duration(c.Count)
}

// Env is what a collector receives for one run.
type Env struct {
	Sampler *Sampler
	Cadence Cadence
	Bench   BenchConfig
	Log     *zap.Logger
}

// Collector turns system state into a DomainResult for one domain.
// A returned error is a domain-level CollectionError; the result carries
// whatever was gathered before it.
type Collector interface {
	Domain() model.Domain
	Collect(ctx context.Context, env Env) (model.DomainResult, error)
}

// Exclusive is implemented by collectors that must not overlap with others,
// such as active I/O tests that would skew passive counters.
type Exclusive interface {
	Exclusive() bool
}

// IsExclusive reports whether c asked to run alone.
func IsExclusive(c Collector) bool {
	e, ok := c.(Exclusive)
	return ok && e.Exclusive()
}

// Registry holds the collectors available to a run, keyed by domain.
type Registry struct {
	collectors map[model.Domain]Collector
}

// Options configures the default registry.
type Options struct {
	Cloud CloudProber
	SMART func(ctx context.Context) []model.SMARTDisk
}

// NewRegistry creates a registry with every default collector.
func NewRegistry(opts Options) *Registry {
	r := &Registry{collectors: make(map[model.Domain]Collector)}
	r.Add(&SysInfoCollector{Cloud: opts.Cloud})
	r.Add(&CPUCollector{})
	r.Add(&MemoryCollector{})
	r.Add(&DiskCollector{})
	r.Add(&NetworkCollector{})
	r.Add(&DatabaseCollector{})
	r.Add(&StorageCollector{SMART: opts.SMART})
	r.Add(&DiskBenchmark{})
	return r
}

// Add registers a collector, replacing any existing one for its domain.
func (r *Registry) Add(c Collector) {
	if r.collectors == nil {
		r.collectors = make(map[model.Domain]Collector)
	}
	r.collectors[c.Domain()] = c
}

// Get returns the collector for a domain.
func (r *Registry) Get(d model.Domain) (Collector, bool) {
	c, ok := r.collectors[d]
	return c, ok
}

func newResult(d model.Domain) model.DomainResult {
	return model.DomainResult{
		Domain:   d,
		Snapshot: model.NewDomainSnapshot(),
		Started:  time.Now(),
	}
}

// average samples every spec over one shared window and stores the
// per-instance means into res under the counter name. Counters that return
// nothing become gaps.
func average(ctx context.Context, env Env, res *model.DomainResult, includeTotal bool, specs ...CounterSpec) map[string]map[string]float64 {
	sampled := env.Sampler.SampleAll(ctx, specs, env.Cadence.Interval, env.Cadence.Count)
	out := make(map[string]map[string]float64, len(specs))
	for _, spec := range specs {
		samples := sampled[spec]
		if len(samples) == 0 {
			res.AddGap(spec.Name)
			continue
		}
		avg := model.Average(samples, includeTotal)
		out[spec.Name] = avg
	}
	return out
}

func finish(res *model.DomainResult) {
	res.Duration = time.Since(res.Started)
}

func (e Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}
