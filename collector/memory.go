package collector

import (
	"context"

	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/model"
)

// MemoryCollector samples availability, paging and commit charge, and ranks
// processes by memory footprint.
type MemoryCollector struct {
	readProcs func(ctx context.Context) (map[int32]procEntry, error)
}

func (m *MemoryCollector) Domain() model.Domain { return model.DomainMemory }

func (m *MemoryCollector) Collect(ctx context.Context, env Env) (res model.DomainResult, _ error) {
	res = newResult(model.DomainMemory)
	defer finish(&res)

	avg := average(ctx, env, &res, true,
		CounterSpec{Category: CatMemory, Name: CtrAvailablePct, Instance: model.TotalInstance},
		CounterSpec{Category: CatMemory, Name: CtrAvailableMB, Instance: model.TotalInstance},
		CounterSpec{Category: CatMemory, Name: CtrCommittedPct, Instance: model.TotalInstance},
		CounterSpec{Category: CatMemory, Name: CtrPagesSec, Instance: model.TotalInstance},
		CounterSpec{Category: CatMemory, Name: CtrPageFaultsSec, Instance: model.TotalInstance},
		CounterSpec{Category: CatPagingFile, Name: CtrPageFileUsage, Instance: model.TotalInstance},
	)
	for _, name := range []string{CtrAvailablePct, CtrAvailableMB, CtrCommittedPct, CtrPagesSec, CtrPageFaultsSec} {
		for inst, v := range avg[name] {
			res.Snapshot.Set(name, inst, v)
		}
	}
	for inst, v := range avg[CtrPageFileUsage] {
		res.Snapshot.Set(KeyPageFileUsage, inst, v)
	}

	read := m.readProcs
	if read == nil {
		read = readProcesses
	}
	procs, err := read(ctx)
	if err != nil {
		env.logger().Warn("process ranking unavailable", zap.String("domain", string(res.Domain)), zap.Error(err))
		return res, ctx.Err()
	}
	det := memoryDetails(infos(procs))
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		det.TotalBytes = vm.Total
	}
	for _, p := range append(det.TopByVirtual, det.LeakSuspects...) {
		if p.VirtualSize > leakMinVirtual {
			res.Snapshot.Set(KeyLeak, p.Label(), residentPct(p))
		}
	}
	res.Details = det
	return res, ctx.Err()
}

func memoryDetails(procs []model.ProcessInfo) model.MemoryDetails {
	det := model.MemoryDetails{
		TopByWorkingSet: topBy(procs, TopN, byWorkingSet),
		TopByVirtual:    topBy(procs, TopN, byVirtual),
	}
	for _, p := range topBy(procs, len(procs), byVirtual) {
		if p.LeakSuspect {
			det.LeakSuspects = append(det.LeakSuspects, p)
		}
	}
	return det
}
