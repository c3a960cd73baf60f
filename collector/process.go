package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/ftahirops/perfdiag/model"
)

const (
	// TopN is the length of every process ranking.
	TopN = 10

	leakMinVirtual  = 2 << 30 // 2 GiB
	leakMaxResident = 30.0    // percent of virtual size
)

// procEntry is one process read plus its cumulative CPU seconds.
type procEntry struct {
	info   model.ProcessInfo
	cpuSec float64
}

// readProcesses reads every visible process once. Processes that exit
// mid-read are skipped.
func readProcesses(ctx context.Context) (map[int32]procEntry, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make(map[int32]procEntry, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		e := procEntry{info: model.ProcessInfo{PID: p.Pid, Name: name}}
		if t, err := p.TimesWithContext(ctx); err == nil {
			e.cpuSec = t.User + t.System
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			e.info.WorkingSet = mi.RSS
			e.info.VirtualSize = mi.VMS
		}
		if n, err := p.NumThreadsWithContext(ctx); err == nil {
			e.info.Threads = n
		}
		e.info.LeakSuspect = IsLeakSuspect(e.info)
		out[p.Pid] = e
	}
	return out, nil
}

// IsLeakSuspect flags a process whose virtual size exceeds 2 GB while its
// working set is under 30% of it.
func IsLeakSuspect(p model.ProcessInfo) bool {
	if p.VirtualSize <= leakMinVirtual {
		return false
	}
	return residentPct(p) < leakMaxResident
}

func residentPct(p model.ProcessInfo) float64 {
	if p.VirtualSize == 0 {
		return 0
	}
	return float64(p.WorkingSet) / float64(p.VirtualSize) * 100
}

// withCPU fills CPUPct for processes present in both reads, as a percentage
// of one CPU over elapsed.
func withCPU(before, after map[int32]procEntry, elapsed time.Duration) []model.ProcessInfo {
	out := make([]model.ProcessInfo, 0, len(after))
	secs := elapsed.Seconds()
	for pid, a := range after {
		info := a.info
		if b, ok := before[pid]; ok && secs > 0 && a.cpuSec >= b.cpuSec {
			info.CPUPct = (a.cpuSec - b.cpuSec) / secs * 100
		}
		out = append(out, info)
	}
	return out
}

func infos(m map[int32]procEntry) []model.ProcessInfo {
	out := make([]model.ProcessInfo, 0, len(m))
	for _, e := range m {
		out = append(out, e.info)
	}
	return out
}

// topBy returns the n largest processes by key. Ties break on PID so the
// ranking is stable.
func topBy(procs []model.ProcessInfo, n int, key func(model.ProcessInfo) float64) []model.ProcessInfo {
	sorted := make([]model.ProcessInfo, len(procs))
	copy(sorted, procs)
	sort.Slice(sorted, func(i, j int) bool {
		ki, kj := key(sorted[i]), key(sorted[j])
		if ki != kj {
			return ki > kj
		}
		return sorted[i].PID < sorted[j].PID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func byCPU(p model.ProcessInfo) float64        { return p.CPUPct }
func byThreads(p model.ProcessInfo) float64    { return float64(p.Threads) }
func byWorkingSet(p model.ProcessInfo) float64 { return float64(p.WorkingSet) }
func byVirtual(p model.ProcessInfo) float64    { return float64(p.VirtualSize) }
