package collector

import (
	"context"

	"github.com/ftahirops/perfdiag/model"
)

// DiskCollector samples per-disk latency, queue depth and throughput.
type DiskCollector struct{}

func (d *DiskCollector) Domain() model.Domain { return model.DomainDisk }

func (d *DiskCollector) Collect(ctx context.Context, env Env) (res model.DomainResult, _ error) {
	res = newResult(model.DomainDisk)
	defer finish(&res)

	avg := average(ctx, env, &res, false,
		CounterSpec{Category: CatPhysicalDisk, Name: CtrDiskSecRead, Instance: AllInstances},
		CounterSpec{Category: CatPhysicalDisk, Name: CtrDiskSecWrite, Instance: AllInstances},
		CounterSpec{Category: CatPhysicalDisk, Name: CtrDiskQueue, Instance: AllInstances},
		CounterSpec{Category: CatPhysicalDisk, Name: CtrDiskReads, Instance: AllInstances},
		CounterSpec{Category: CatPhysicalDisk, Name: CtrDiskWrites, Instance: AllInstances},
		CounterSpec{Category: CatPhysicalDisk, Name: CtrDiskReadBytes, Instance: AllInstances},
		CounterSpec{Category: CatPhysicalDisk, Name: CtrDiskWriteBytes, Instance: AllInstances},
	)

	// sec/op to ms/op
	for inst, v := range avg[CtrDiskSecRead] {
		res.Snapshot.Set(KeyReadLatency, inst, v*1000)
	}
	for inst, v := range avg[CtrDiskSecWrite] {
		res.Snapshot.Set(KeyWriteLatency, inst, v*1000)
	}
	for _, name := range []string{CtrDiskQueue, CtrDiskReads, CtrDiskWrites, CtrDiskReadBytes, CtrDiskWriteBytes} {
		for inst, v := range avg[name] {
			res.Snapshot.Set(name, inst, v)
		}
	}
	return res, ctx.Err()
}
