package collector

import (
	"testing"
	"time"

	"github.com/ftahirops/perfdiag/model"
)

func TestIsLeakSuspect(t *testing.T) {
	const gb = 1 << 30
	tests := []struct {
		name string
		vms  uint64
		rss  uint64
		want bool
	}{
		{"large virtual small resident", 4 * gb, gb / 2, true},
		{"exactly 2GB virtual", 2 * gb, 1, false},
		{"resident exactly 30 percent", 10 * gb, 3 * gb, false},
		{"resident just under 30 percent", 10 * gb, 3*gb - 1, true},
		{"mostly resident", 4 * gb, 3 * gb, false},
		{"small process", 100 << 20, 1 << 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.ProcessInfo{VirtualSize: tt.vms, WorkingSet: tt.rss}
			if got := IsLeakSuspect(p); got != tt.want {
				t.Errorf("IsLeakSuspect(vms=%d, rss=%d) = %v, want %v", tt.vms, tt.rss, got, tt.want)
			}
		})
	}
}

func TestTopByLimitsAndBreaksTies(t *testing.T) {
	var procs []model.ProcessInfo
	for i := int32(1); i <= 15; i++ {
		procs = append(procs, model.ProcessInfo{PID: i, Threads: i % 3})
	}
	top := topBy(procs, TopN, byThreads)
	if len(top) != TopN {
		t.Fatalf("len = %d, want %d", len(top), TopN)
	}
	if top[0].PID != 2 || top[1].PID != 5 {
		t.Errorf("order = %d, %d; want 2, 5", top[0].PID, top[1].PID)
	}
	if procs[0].PID != 1 {
		t.Error("topBy must not reorder its input")
	}
}

func TestWithCPU(t *testing.T) {
	before := map[int32]procEntry{
		1: {info: model.ProcessInfo{PID: 1}, cpuSec: 10},
		2: {info: model.ProcessInfo{PID: 2}, cpuSec: 5},
	}
	after := map[int32]procEntry{
		1: {info: model.ProcessInfo{PID: 1}, cpuSec: 12},
		3: {info: model.ProcessInfo{PID: 3}, cpuSec: 1},
	}
	got := topBy(withCPU(before, after, 4*time.Second), TopN, byCPU)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (exited process dropped)", len(got))
	}
	if got[0].PID != 1 || !approx(got[0].CPUPct, 50) {
		t.Errorf("top = %+v, want pid 1 at 50%%", got[0])
	}
	if got[1].CPUPct != 0 {
		t.Errorf("new process CPU = %v, want 0 (no baseline)", got[1].CPUPct)
	}
}
