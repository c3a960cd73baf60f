package collector

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/model"
)

// dbEngine describes how to recognize a database server and when its
// connection count becomes a problem.
type dbEngine struct {
	Name      string
	Kind      string
	Process   *regexp.Regexp
	Port      uint32
	Threshold int
}

var dbEngines = []dbEngine{
	{Name: "SQL Server", Kind: "relational", Process: regexp.MustCompile(`^sqlservr$`), Port: 1433, Threshold: 500},
	{Name: "PostgreSQL", Kind: "relational", Process: regexp.MustCompile(`^(postgres|postmaster)$`), Port: 5432, Threshold: 500},
	{Name: "MySQL", Kind: "relational", Process: regexp.MustCompile(`^(mysqld|mariadbd)$`), Port: 3306, Threshold: 1000},
	{Name: "Oracle", Kind: "relational", Process: regexp.MustCompile(`^(tnslsnr|ora_pmon_.+|oracle.*)$`), Port: 1521, Threshold: 1000},
	{Name: "MongoDB", Kind: "non-relational", Process: regexp.MustCompile(`^mongod$`), Port: 27017, Threshold: 10000},
	{Name: "Redis", Kind: "non-relational", Process: regexp.MustCompile(`^redis-server$`), Port: 6379, Threshold: 10000},
}

// DBThreshold returns the established-connection threshold of an engine.
func DBThreshold(engine string) (int, bool) {
	for _, e := range dbEngines {
		if e.Name == engine {
			return e.Threshold, true
		}
	}
	return 0, false
}

// DBEngineNames lists the recognized engines in table order.
func DBEngineNames() []string {
	out := make([]string, len(dbEngines))
	for i, e := range dbEngines {
		out[i] = e.Name
	}
	return out
}

// DatabaseCollector detects database servers by process name and counts
// client connections on their well-known ports.
type DatabaseCollector struct {
	// listProcs is swapped in tests; it returns pid -> process name.
	listProcs func(ctx context.Context) (map[int32]string, error)
}

func (d *DatabaseCollector) Domain() model.Domain { return model.DomainDatabase }

func (d *DatabaseCollector) Collect(ctx context.Context, env Env) (res model.DomainResult, _ error) {
	res = newResult(model.DomainDatabase)
	defer finish(&res)

	list := d.listProcs
	if list == nil {
		list = listProcessNames
	}
	procs, err := list(ctx)
	if err != nil {
		env.logger().Warn("process list unavailable", zap.String("domain", string(res.Domain)), zap.Error(err))
		return res, &model.CollectionError{Domain: res.Domain, Err: err}
	}
	engines := detectEngines(procs)
	res.Details = model.DatabaseDetails{Engines: engines}
	if len(engines) == 0 {
		return res, nil
	}

	avg := average(ctx, env, &res, true,
		CounterSpec{Category: CatDatabase, Name: CtrDBEstablished, Instance: AllInstances},
		CounterSpec{Category: CatDatabase, Name: CtrDBTimeWait, Instance: AllInstances},
	)
	established, timeWait := avg[CtrDBEstablished], avg[CtrDBTimeWait]
	var tw float64
	for i := range engines {
		port := strconv.FormatUint(uint64(engines[i].Port), 10)
		if established != nil {
			v := established[port]
			engines[i].Established = int(v + 0.5)
			res.Snapshot.Set(KeyDBConnections, engines[i].Engine, v)
		}
		tw += timeWait[port]
	}
	if timeWait != nil {
		res.Snapshot.Set(KeyDBTimeWait, model.TotalInstance, tw)
	}
	res.Details = model.DatabaseDetails{Engines: engines}
	return res, ctx.Err()
}

// detectEngines matches process names against the engine table. Each engine
// appears once with every matching PID.
func detectEngines(procs map[int32]string) []model.DatabaseEngine {
	pids := make([]int32, 0, len(procs))
	for pid := range procs {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	var out []model.DatabaseEngine
	for _, e := range dbEngines {
		var found *model.DatabaseEngine
		for _, pid := range pids {
			name := procs[pid]
			if !e.Process.MatchString(name) {
				continue
			}
			if found == nil {
				out = append(out, model.DatabaseEngine{
					Engine:    e.Name,
					Kind:      e.Kind,
					Process:   name,
					Port:      e.Port,
					Threshold: e.Threshold,
				})
				found = &out[len(out)-1]
			}
			found.PIDs = append(found.PIDs, pid)
		}
	}
	return out
}

func listProcessNames(ctx context.Context) (map[int32]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int32]string, len(procs))
	for _, p := range procs {
		if name, err := p.NameWithContext(ctx); err == nil {
			out[p.Pid] = name
		}
	}
	return out, nil
}
