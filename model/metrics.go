package model

import (
	"strconv"
	"time"
)

// ProcessInfo is one row of a process ranking.
type ProcessInfo struct {
	PID         int32   `json:"pid"`
	Name        string  `json:"name"`
	CPUPct      float64 `json:"cpu_pct"`
	Threads     int32   `json:"threads"`
	WorkingSet  uint64  `json:"working_set"`
	VirtualSize uint64  `json:"virtual_size"`
	LeakSuspect bool    `json:"leak_suspect,omitempty"`
}

// Label is the instance label used for per-process snapshot keys.
func (p ProcessInfo) Label() string {
	return p.Name + "(" + strconv.Itoa(int(p.PID)) + ")"
}

// DatabaseEngine is a detected database server process.
type DatabaseEngine struct {
	Engine      string  `json:"engine"`
	Kind        string  `json:"kind"` // relational or non-relational
	Process     string  `json:"process"`
	PIDs        []int32 `json:"pids"`
	Port        uint32  `json:"port"`
	Established int     `json:"established"`
	Threshold   int     `json:"threshold"`
}

// PartitionInfo describes one partition of a block device.
type PartitionInfo struct {
	Disk        string `json:"disk"`
	Name        string `json:"name"`
	Scheme      string `json:"scheme"` // GPT, MBR, RAW
	OffsetBytes uint64 `json:"offset_bytes"`
	Aligned4K   bool   `json:"aligned_4k"`
	Aligned1M   bool   `json:"aligned_1m"`
}

// RAIDArray is one software RAID (md) array.
type RAIDArray struct {
	Name     string `json:"name"`
	Level    string `json:"level"`
	Status   string `json:"status"` // e.g. "[UU]" or "[U_]"
	Degraded bool   `json:"degraded"`
}

// ISCSISession is one iSCSI/SAN session.
type ISCSISession struct {
	Name   string `json:"name"`
	Target string `json:"target,omitempty"`
	State  string `json:"state"`
}

// BenchResult is the throughput measured for one block size.
type BenchResult struct {
	BlockSize    int64         `json:"block_size"`
	Op           string        `json:"op"` // read or write
	Bytes        int64         `json:"bytes"`
	Elapsed      time.Duration `json:"elapsed"`
	MBPerSec     float64       `json:"mb_per_sec"`
	IOPS         float64       `json:"iops"`
	AvgLatencyMs float64       `json:"avg_latency_ms"`
}
