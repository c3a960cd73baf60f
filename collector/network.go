package collector

import (
	"context"
	"sort"

	"github.com/ftahirops/perfdiag/model"
)

// NetworkCollector samples interface throughput, errors, send queues and
// TCP retransmissions.
type NetworkCollector struct{}

func (n *NetworkCollector) Domain() model.Domain { return model.DomainNetwork }

func (n *NetworkCollector) Collect(ctx context.Context, env Env) (res model.DomainResult, _ error) {
	res = newResult(model.DomainNetwork)
	defer finish(&res)

	avg := average(ctx, env, &res, true,
		CounterSpec{Category: CatNetwork, Name: CtrNetBytesTotal, Instance: AllInstances},
		CounterSpec{Category: CatNetwork, Name: CtrNetRecvErrors, Instance: AllInstances},
		CounterSpec{Category: CatNetwork, Name: CtrNetOutErrors, Instance: AllInstances},
		CounterSpec{Category: CatNetwork, Name: CtrNetOutputQueue, Instance: model.TotalInstance},
		CounterSpec{Category: CatTCPv4, Name: CtrTCPRetransmitted, Instance: model.TotalInstance},
		CounterSpec{Category: CatTCPv4, Name: CtrTCPSegmentsSent, Instance: model.TotalInstance},
		CounterSpec{Category: CatTCPv4, Name: CtrTCPEstablished, Instance: model.TotalInstance},
	)
	for name, byInst := range avg {
		for inst, v := range byInst {
			res.Snapshot.Set(name, inst, v)
		}
	}

	var det model.NetworkDetails
	for inst := range avg[CtrNetBytesTotal] {
		if inst != model.TotalInstance {
			det.Interfaces = append(det.Interfaces, inst)
		}
	}
	sort.Strings(det.Interfaces)
	res.Details = det
	return res, ctx.Err()
}
