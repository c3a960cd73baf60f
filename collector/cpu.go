package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/model"
)

// CPUCollector samples utilization and scheduler pressure, and ranks
// processes by CPU used during the sampling window.
type CPUCollector struct {
	// readProcs is swapped in tests.
	readProcs func(ctx context.Context) (map[int32]procEntry, error)
}

func (c *CPUCollector) Domain() model.Domain { return model.DomainCPU }

func (c *CPUCollector) Collect(ctx context.Context, env Env) (res model.DomainResult, _ error) {
	res = newResult(model.DomainCPU)
	defer finish(&res)

	read := c.readProcs
	if read == nil {
		read = readProcesses
	}
	before, err := read(ctx)
	if err != nil {
		env.logger().Warn("process ranking unavailable", zap.String("domain", string(res.Domain)), zap.Error(err))
	}
	start := time.Now()

	avg := average(ctx, env, &res, true,
		CounterSpec{Category: CatProcessor, Name: CtrProcessorTime, Instance: AllInstances},
		CounterSpec{Category: CatSystem, Name: CtrContextSwitches, Instance: model.TotalInstance},
		CounterSpec{Category: CatSystem, Name: CtrProcQueue, Instance: model.TotalInstance},
		CounterSpec{Category: CatSystem, Name: CtrThreads, Instance: model.TotalInstance},
		CounterSpec{Category: CatProcessorInf, Name: CtrPctMaxFrequency, Instance: model.TotalInstance},
	)
	for _, name := range []string{CtrProcessorTime, CtrContextSwitches, CtrProcQueue, CtrThreads} {
		for inst, v := range avg[name] {
			res.Snapshot.Set(name, inst, v)
		}
	}
	if v, ok := avg[CtrPctMaxFrequency][model.TotalInstance]; ok {
		res.Snapshot.Set(KeyThrottle, model.TotalInstance, throttleDelta(v))
	}

	if before != nil {
		after, err := read(ctx)
		if err == nil {
			procs := withCPU(before, after, time.Since(start))
			det := model.CPUDetails{
				TopByCPU:     topBy(procs, TopN, byCPU),
				TopByThreads: topBy(procs, TopN, byThreads),
			}
			for _, p := range procs {
				det.TotalThreads += int(p.Threads)
			}
			res.Details = det
		}
	}
	return res, ctx.Err()
}

// throttleDelta is how far below the rated maximum the clock ran, in percent.
func throttleDelta(pctOfMax float64) float64 {
	if pctOfMax >= 100 {
		return 0
	}
	return 100 - pctOfMax
}
