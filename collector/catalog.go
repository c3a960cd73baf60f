package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/util"
)

// Counter categories.
const (
	CatPhysicalDisk = "PhysicalDisk"
	CatProcessor    = "Processor"
	CatProcessorInf = "Processor Information"
	CatSystem       = "System"
	CatMemory       = "Memory"
	CatPagingFile   = "Paging File"
	CatNetwork      = "Network Interface"
	CatTCPv4        = "TCPv4"
	CatDatabase     = "Database Connections"
)

// Counter names as exposed by the catalog.
const (
	CtrDiskSecRead      = "Avg. Disk sec/Read"
	CtrDiskSecWrite     = "Avg. Disk sec/Write"
	CtrDiskQueue        = "Avg. Disk Queue Length"
	CtrDiskCurQueue     = "Current Disk Queue Length"
	CtrDiskReads        = "Disk Reads/sec"
	CtrDiskWrites       = "Disk Writes/sec"
	CtrDiskReadBytes    = "Disk Read Bytes/sec"
	CtrDiskWriteBytes   = "Disk Write Bytes/sec"
	CtrProcessorTime    = "% Processor Time"
	CtrPctMaxFrequency  = "% of Maximum Frequency"
	CtrContextSwitches  = "Context Switches/sec"
	CtrProcQueue        = "Processor Queue Length"
	CtrThreads          = "Threads"
	CtrProcesses        = "Processes"
	CtrAvailablePct     = "% Available"
	CtrAvailableMB      = "Available MBytes"
	CtrCommittedPct     = "% Committed Bytes In Use"
	CtrPagesSec         = "Pages/sec"
	CtrPageFaultsSec    = "Page Faults/sec"
	CtrPageFileUsage    = "% Usage"
	CtrNetBytesTotal    = "Bytes Total/sec"
	CtrNetRecvErrors    = "Packets Received Errors/sec"
	CtrNetOutErrors     = "Packets Outbound Errors/sec"
	CtrNetOutputQueue   = "Output Queue Length"
	CtrTCPRetransmitted = "Segments Retransmitted/sec"
	CtrTCPSegmentsSent  = "Segments Sent/sec"
	CtrTCPEstablished   = "Connections Established"
	CtrDBEstablished    = "Established"
	CtrDBTimeWait       = "TIME_WAIT"
)

// DefaultCatalog returns the Linux counter catalog backed by gopsutil and procfs.
func DefaultCatalog() Catalog {
	c := make(Catalog)

	// PhysicalDisk: whole disks only, plus a _Total sum.
	c.Add(&Counter{Category: CatPhysicalDisk, Name: CtrDiskSecRead, Kind: Ratio, Scale: 0.001,
		Read: diskReader(func(s disk.IOCountersStat) Reading {
			return Reading{Num: float64(s.ReadTime), Den: float64(s.ReadCount)}
		})})
	c.Add(&Counter{Category: CatPhysicalDisk, Name: CtrDiskSecWrite, Kind: Ratio, Scale: 0.001,
		Read: diskReader(func(s disk.IOCountersStat) Reading {
			return Reading{Num: float64(s.WriteTime), Den: float64(s.WriteCount)}
		})})
	// Weighted I/O time grows by the in-flight count every millisecond.
	c.Add(&Counter{Category: CatPhysicalDisk, Name: CtrDiskQueue, Kind: Rate, Scale: 0.001,
		Read: diskReader(func(s disk.IOCountersStat) Reading { return Reading{Num: float64(s.WeightedIO)} })})
	c.Add(&Counter{Category: CatPhysicalDisk, Name: CtrDiskCurQueue, Kind: Gauge,
		Read: diskReader(func(s disk.IOCountersStat) Reading { return Reading{Num: float64(s.IopsInProgress)} })})
	c.Add(&Counter{Category: CatPhysicalDisk, Name: CtrDiskReads, Kind: Rate,
		Read: diskReader(func(s disk.IOCountersStat) Reading { return Reading{Num: float64(s.ReadCount)} })})
	c.Add(&Counter{Category: CatPhysicalDisk, Name: CtrDiskWrites, Kind: Rate,
		Read: diskReader(func(s disk.IOCountersStat) Reading { return Reading{Num: float64(s.WriteCount)} })})
	c.Add(&Counter{Category: CatPhysicalDisk, Name: CtrDiskReadBytes, Kind: Rate,
		Read: diskReader(func(s disk.IOCountersStat) Reading { return Reading{Num: float64(s.ReadBytes)} })})
	c.Add(&Counter{Category: CatPhysicalDisk, Name: CtrDiskWriteBytes, Kind: Rate,
		Read: diskReader(func(s disk.IOCountersStat) Reading { return Reading{Num: float64(s.WriteBytes)} })})

	// Processor
	c.Add(&Counter{Category: CatProcessor, Name: CtrProcessorTime, Kind: Ratio, Scale: 100, Read: readCPUTimes})
	c.Add(&Counter{Category: CatProcessorInf, Name: CtrPctMaxFrequency, Kind: Gauge, Read: readCPUFrequency})

	// System
	c.Add(&Counter{Category: CatSystem, Name: CtrContextSwitches, Kind: Rate,
		Read: miscReader(func(m *load.MiscStat, _ int) float64 { return float64(m.Ctxt) })})
	c.Add(&Counter{Category: CatSystem, Name: CtrProcQueue, Kind: Gauge,
		Read: miscReader(func(m *load.MiscStat, ncpu int) float64 {
			// procs_running counts tasks on a CPU too; only the excess is queued.
			if q := m.ProcsRunning - ncpu; q > 0 {
				return float64(q)
			}
			return 0
		})})
	c.Add(&Counter{Category: CatSystem, Name: CtrThreads, Kind: Gauge,
		Read: miscReader(func(m *load.MiscStat, _ int) float64 { return float64(m.ProcsTotal) })})

	// Memory
	c.Add(&Counter{Category: CatMemory, Name: CtrAvailablePct, Kind: Gauge,
		Read: memReader(func(v *mem.VirtualMemoryStat) float64 { return pct(v.Available, v.Total) })})
	c.Add(&Counter{Category: CatMemory, Name: CtrAvailableMB, Kind: Gauge,
		Read: memReader(func(v *mem.VirtualMemoryStat) float64 { return float64(v.Available) / (1 << 20) })})
	c.Add(&Counter{Category: CatMemory, Name: CtrCommittedPct, Kind: Gauge, Read: readCommitted})
	c.Add(&Counter{Category: CatMemory, Name: CtrPagesSec, Kind: Rate,
		Read: vmstatReader("pswpin", "pswpout")})
	c.Add(&Counter{Category: CatMemory, Name: CtrPageFaultsSec, Kind: Rate,
		Read: vmstatReader("pgfault")})
	c.Add(&Counter{Category: CatPagingFile, Name: CtrPageFileUsage, Kind: Gauge, Read: readSwapUsage})

	// Network
	c.Add(&Counter{Category: CatNetwork, Name: CtrNetBytesTotal, Kind: Rate,
		Read: nicReader(func(s net.IOCountersStat) float64 { return float64(s.BytesSent + s.BytesRecv) })})
	c.Add(&Counter{Category: CatNetwork, Name: CtrNetRecvErrors, Kind: Rate,
		Read: nicReader(func(s net.IOCountersStat) float64 { return float64(s.Errin) })})
	c.Add(&Counter{Category: CatNetwork, Name: CtrNetOutErrors, Kind: Rate,
		Read: nicReader(func(s net.IOCountersStat) float64 { return float64(s.Errout) })})
	c.Add(&Counter{Category: CatNetwork, Name: CtrNetOutputQueue, Kind: Gauge, Read: readOutputQueue})
	c.Add(&Counter{Category: CatTCPv4, Name: CtrTCPRetransmitted, Kind: Rate, Read: tcpReader("RetransSegs")})
	c.Add(&Counter{Category: CatTCPv4, Name: CtrTCPSegmentsSent, Kind: Rate, Read: tcpReader("OutSegs")})
	c.Add(&Counter{Category: CatTCPv4, Name: CtrTCPEstablished, Kind: Gauge, Read: tcpReader("CurrEstab")})

	// Database connections keyed by local port.
	c.Add(&Counter{Category: CatDatabase, Name: CtrDBEstablished, Kind: Gauge, Read: connReader("ESTABLISHED")})
	c.Add(&Counter{Category: CatDatabase, Name: CtrDBTimeWait, Kind: Gauge, Read: connReader("TIME_WAIT")})

	return c
}

func pct(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func diskReader(pick func(disk.IOCountersStat) Reading) ReadFunc {
	return func(ctx context.Context) (map[string]Reading, error) {
		stats, err := disk.IOCountersWithContext(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]Reading, len(stats)+1)
		var total Reading
		for name, s := range stats {
			if !isWholeDisk(name) {
				continue
			}
			r := pick(s)
			out[name] = r
			total.Num += r.Num
			total.Den += r.Den
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("no physical disks found")
		}
		out[model.TotalInstance] = total
		return out, nil
	}
}

// isWholeDisk returns true for whole-disk devices, not partitions.
func isWholeDisk(name string) bool {
	if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
		return false
	}
	// NVMe: nvme0n1 is a disk, nvme0n1p1 is a partition
	if strings.HasPrefix(name, "nvme") {
		return !strings.Contains(name[4:], "p")
	}
	if strings.HasPrefix(name, "mmcblk") {
		return !strings.Contains(name[6:], "p")
	}
	for _, prefix := range []string{"xvd", "sd", "vd", "hd"} {
		if strings.HasPrefix(name, prefix) {
			suffix := name[len(prefix):]
			return len(suffix) == 1 && suffix[0] >= 'a' && suffix[0] <= 'z'
		}
	}
	// md arrays carry their own latency; dm-* sit on top of physical disks.
	return strings.HasPrefix(name, "md")
}

func readCPUTimes(ctx context.Context) (map[string]Reading, error) {
	per, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	total, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Reading, len(per)+1)
	for _, t := range per {
		out[strings.TrimPrefix(t.CPU, "cpu")] = cpuReading(t)
	}
	if len(total) > 0 {
		out[model.TotalInstance] = cpuReading(total[0])
	}
	return out, nil
}

// cpuReading splits jiffies into busy and total. Guest time is already part
// of user time on Linux.
func cpuReading(t cpu.TimesStat) Reading {
	all := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	return Reading{Num: all - t.Idle - t.Iowait, Den: all}
}

// readCPUFrequency reports current clock as a percentage of the rated
// maximum per CPU, from cpufreq sysfs.
func readCPUFrequency(_ context.Context) (map[string]Reading, error) {
	dirs, err := cpufreqDirs()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Reading, len(dirs)+1)
	var sum float64
	for cpuID, dir := range dirs {
		cur, err1 := readKHz(dir, "scaling_cur_freq")
		top, err2 := readKHz(dir, "cpuinfo_max_freq")
		if err1 != nil || err2 != nil || top == 0 {
			continue
		}
		v := cur / top * 100
		out[cpuID] = Reading{Num: v}
		sum += v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("cpufreq not exposed")
	}
	out[model.TotalInstance] = Reading{Num: sum / float64(len(out))}
	return out, nil
}

func readKHz(dir, file string) (float64, error) {
	s, err := util.ReadFileString(filepath.Join(dir, file))
	if err != nil {
		return 0, err
	}
	return util.ParseFloat64(s), nil
}

// cpufreqDirs maps CPU ids to their cpufreq sysfs directory.
func cpufreqDirs() (map[string]string, error) {
	matches, err := filepath.Glob(util.SysPath("devices", "system", "cpu", "cpu[0-9]*", "cpufreq"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		id := strings.TrimPrefix(filepath.Base(filepath.Dir(m)), "cpu")
		out[id] = m
	}
	return out, nil
}

func miscReader(pick func(m *load.MiscStat, ncpu int) float64) ReadFunc {
	return func(ctx context.Context) (map[string]Reading, error) {
		m, err := load.MiscWithContext(ctx)
		if err != nil {
			return nil, err
		}
		ncpu, err := cpu.CountsWithContext(ctx, true)
		if err != nil || ncpu <= 0 {
			ncpu = 1
		}
		return map[string]Reading{model.TotalInstance: {Num: pick(m, ncpu)}}, nil
	}
}

func memReader(pick func(*mem.VirtualMemoryStat) float64) ReadFunc {
	return func(ctx context.Context) (map[string]Reading, error) {
		v, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]Reading{model.TotalInstance: {Num: pick(v)}}, nil
	}
}

func vmstatReader(keys ...string) ReadFunc {
	return func(_ context.Context) (map[string]Reading, error) {
		kv, err := util.ParseKeyValueFile(util.ProcPath("vmstat"))
		if err != nil {
			return nil, err
		}
		var sum float64
		for _, k := range keys {
			s, ok := kv[k]
			if !ok {
				return nil, fmt.Errorf("vmstat: %s missing", k)
			}
			sum += float64(util.ParseUint64(s))
		}
		return map[string]Reading{model.TotalInstance: {Num: sum}}, nil
	}
}

// overcommitStrict is the vm.overcommit_memory mode that enforces CommitLimit.
const overcommitStrict = 2

func readCommitted(ctx context.Context) (map[string]Reading, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]Reading{model.TotalInstance: {Num: committedPct(v, overcommitMode())}}, nil
}

// committedPct measures Committed_AS against CommitLimit only when the kernel
// enforces it. Otherwise the ceiling is RAM plus swap.
func committedPct(v *mem.VirtualMemoryStat, mode int) float64 {
	if mode == overcommitStrict {
		return pct(v.CommittedAS, v.CommitLimit)
	}
	return pct(v.CommittedAS, v.Total+v.SwapTotal)
}

// overcommitMode reads vm.overcommit_memory; unreadable means the default 0.
func overcommitMode() int {
	b, err := os.ReadFile(util.ProcPath("sys", "vm", "overcommit_memory"))
	if err != nil {
		return 0
	}
	return util.ParseInt(string(b))
}

func readSwapUsage(ctx context.Context) (map[string]Reading, error) {
	s, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]Reading{model.TotalInstance: {Num: pct(s.Used, s.Total)}}, nil
}

func nicReader(pick func(net.IOCountersStat) float64) ReadFunc {
	return func(ctx context.Context) (map[string]Reading, error) {
		stats, err := net.IOCountersWithContext(ctx, true)
		if err != nil {
			return nil, err
		}
		out := make(map[string]Reading, len(stats)+1)
		var total float64
		for _, s := range stats {
			if s.Name == "lo" {
				continue
			}
			v := pick(s)
			out[s.Name] = Reading{Num: v}
			total += v
		}
		out[model.TotalInstance] = Reading{Num: total}
		return out, nil
	}
}

func readOutputQueue(_ context.Context) (map[string]Reading, error) {
	var pending int
	var found bool
	for _, f := range []string{"tcp", "tcp6"} {
		lines, err := util.ReadFileLines(util.ProcPath("net", f))
		if err != nil {
			continue
		}
		found = true
		q := parseSocketQueues(lines)
		pending += q.TxPending
	}
	if !found {
		return nil, fmt.Errorf("/proc/net/tcp not readable")
	}
	return map[string]Reading{model.TotalInstance: {Num: float64(pending)}}, nil
}

func tcpReader(stat string) ReadFunc {
	return func(ctx context.Context) (map[string]Reading, error) {
		protos, err := net.ProtoCountersWithContext(ctx, []string{"tcp"})
		if err != nil {
			return nil, err
		}
		for _, p := range protos {
			if p.Protocol != "tcp" {
				continue
			}
			v, ok := p.Stats[stat]
			if !ok {
				break
			}
			return map[string]Reading{model.TotalInstance: {Num: float64(v)}}, nil
		}
		return nil, fmt.Errorf("tcp %s not reported", stat)
	}
}

// connReader counts TCP sockets in one state by local port. _Total covers
// every port.
func connReader(status string) ReadFunc {
	return func(ctx context.Context) (map[string]Reading, error) {
		conns, err := net.ConnectionsWithContext(ctx, "tcp")
		if err != nil {
			return nil, err
		}
		return countByPort(conns, status), nil
	}
}

func countByPort(conns []net.ConnectionStat, status string) map[string]Reading {
	out := map[string]Reading{model.TotalInstance: {}}
	for _, c := range conns {
		if c.Status != status {
			continue
		}
		port := strconv.FormatUint(uint64(c.Laddr.Port), 10)
		r := out[port]
		r.Num++
		out[port] = r
		t := out[model.TotalInstance]
		t.Num++
		out[model.TotalInstance] = t
	}
	return out
}
