package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ftahirops/perfdiag/collector"
	"github.com/ftahirops/perfdiag/model"
)

// Observer is told when collectors start and finish. In parallel runs the
// calls come from several goroutines.
type Observer interface {
	CollectorStarted(d model.Domain)
	CollectorFinished(d model.Domain, res model.DomainResult, findings int)
}

// Options configures one run.
type Options struct {
	Mode             Mode
	Parallel         bool
	CollectorTimeout time.Duration // 0 disables the per-collector limit
	Bench            collector.BenchConfig
	Observer         Observer
	Log              *zap.Logger
}

// Run is everything one diagnostic run produced. Each run gets its own.
type Run struct {
	ID         string
	Mode       Mode
	Started    time.Time
	Ended      time.Time
	Identity   model.SystemIdentity
	Results    []model.DomainResult
	Findings   []model.Bottleneck
	Incomplete bool
}

// Runner drives the collectors of a mode and classifies what they return.
type Runner struct {
	registry   *collector.Registry
	sampler    *collector.Sampler
	classifier *Classifier
	now        func() time.Time
}

// NewRunner creates a runner.
func NewRunner(reg *collector.Registry, sampler *collector.Sampler, classifier *Classifier) *Runner {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &Runner{registry: reg, sampler: sampler, classifier: classifier, now: time.Now}
}

type stepResult struct {
	res      model.DomainResult
	findings []model.Bottleneck
	ran      bool
}

// Execute runs every domain of opts.Mode. Cancelling ctx stops the run early
// and marks it incomplete; whatever finished is kept.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Run, error) {
	spec, ok := Lookup(opts.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	bench := opts.Bench
	if len(spec.BenchBlocks) > 0 {
		bench.BlockSizes = spec.BenchBlocks
	}
	env := collector.Env{Sampler: r.sampler, Cadence: spec.Cadence, Bench: bench, Log: log}

	run := &Run{ID: uuid.NewString(), Mode: spec.Mode, Started: r.now()}
	log.Info("diagnostic run started",
		zap.String("run_id", run.ID),
		zap.String("mode", string(spec.Mode)),
		zap.Duration("interval", spec.Cadence.Interval),
		zap.Int("samples", spec.Cadence.Count),
		zap.Bool("parallel", opts.Parallel))

	// Exclusive collectors always run alone, after the concurrent ones.
	var concurrent, sequential []model.Domain
	for _, d := range spec.Domains {
		c, ok := r.registry.Get(d)
		if opts.Parallel && !(ok && collector.IsExclusive(c)) {
			concurrent = append(concurrent, d)
			continue
		}
		sequential = append(sequential, d)
	}

	var steps []stepResult
	if len(concurrent) > 0 {
		slots := make([]stepResult, len(concurrent))
		g, gctx := errgroup.WithContext(ctx)
		for i, d := range concurrent {
			i, d := i, d
			g.Go(func() error {
				slots[i] = r.step(gctx, d, env, opts)
				return nil
			})
		}
		_ = g.Wait()
		steps = append(steps, slots...)
	}
	for _, d := range sequential {
		if ctx.Err() != nil {
			break
		}
		steps = append(steps, r.step(ctx, d, env, opts))
	}

	for _, s := range steps {
		if !s.ran {
			continue
		}
		run.Results = append(run.Results, s.res)
		run.Findings = append(run.Findings, s.findings...)
		if id, ok := s.res.Details.(model.SystemIdentity); ok {
			run.Identity = id
		}
	}
	sort.SliceStable(run.Results, func(i, j int) bool {
		return run.Results[i].Domain.Priority() < run.Results[j].Domain.Priority()
	})
	sort.SliceStable(run.Findings, func(i, j int) bool {
		return run.Findings[i].Category.Priority() < run.Findings[j].Category.Priority()
	})

	run.Ended = r.now()
	run.Incomplete = ctx.Err() != nil
	log.Info("diagnostic run finished",
		zap.String("run_id", run.ID),
		zap.Int("findings", len(run.Findings)),
		zap.Bool("incomplete", run.Incomplete),
		zap.Duration("elapsed", run.Ended.Sub(run.Started)))
	return run, nil
}

// step runs one collector and classifies its snapshot. A failing or
// panicking collector yields a result carrying the error; the run goes on.
func (r *Runner) step(ctx context.Context, d model.Domain, env collector.Env, opts Options) (out stepResult) {
	if ctx.Err() != nil {
		return out
	}
	out.ran = true
	log := env.Log.With(zap.String("domain", string(d)))

	c, ok := r.registry.Get(d)
	if !ok {
		err := &model.CollectionError{Domain: d, Err: errors.New("no collector registered")}
		log.Warn("collector missing", zap.Error(err))
		out.res = model.DomainResult{Domain: d, Snapshot: model.NewDomainSnapshot(), Err: err.Error()}
		return out
	}

	if opts.Observer != nil {
		opts.Observer.CollectorStarted(d)
		defer func() { opts.Observer.CollectorFinished(d, out.res, len(out.findings)) }()
	}

	cctx := ctx
	if opts.CollectorTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, opts.CollectorTimeout)
		defer cancel()
	}

	res, err := r.collect(cctx, c, env)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			log.Warn("collector interrupted", zap.Error(err))
		case errors.Is(err, context.DeadlineExceeded):
			log.Warn("collector timed out", zap.Duration("timeout", opts.CollectorTimeout))
			if res.Err == "" {
				res.Err = fmt.Sprintf("timed out after %s", opts.CollectorTimeout)
			}
		default:
			log.Warn("collector failed", zap.Error(err))
			if res.Err == "" {
				res.Err = err.Error()
			}
		}
	}
	if res.Domain == "" {
		res.Domain = d
	}
	out.res = res
	out.findings = r.classifier.Classify(d, res.Snapshot, r.now())
	log.Debug("collector finished",
		zap.Int("values", res.Snapshot.Len()),
		zap.Int("gaps", len(res.Gaps)),
		zap.Int("findings", len(out.findings)))
	return out
}

func (r *Runner) collect(ctx context.Context, c collector.Collector, env collector.Env) (res model.DomainResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &model.CollectionError{Domain: c.Domain(), Err: fmt.Errorf("panic: %v", p)}
			res = model.DomainResult{Domain: c.Domain(), Snapshot: model.NewDomainSnapshot(), Err: err.Error()}
		}
	}()
	return c.Collect(ctx, env)
}
