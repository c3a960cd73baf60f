package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/ftahirops/perfdiag/collector"
	"github.com/ftahirops/perfdiag/model"
)

// Mode selects which domains a run collects and at what cadence.
type Mode string

const (
	ModeQuick      Mode = "Quick"
	ModeStandard   Mode = "Standard"
	ModeDeep       Mode = "Deep"
	ModeDiskOnly   Mode = "DiskOnly"
	ModeCPUOnly    Mode = "CPUOnly"
	ModeMemoryOnly Mode = "MemoryOnly"
)

// ModeSpec is one row of the mode table.
type ModeSpec struct {
	Mode        Mode
	Cadence     collector.Cadence
	Domains     []model.Domain // run order
	BenchBlocks []int64
}

const (
	kib = int64(1) << 10
	mib = int64(1) << 20
)

var (
	quickDomains    = []model.Domain{model.DomainSystemInfo, model.DomainCPU, model.DomainMemory, model.DomainDisk}
	standardDomains = append(append([]model.Domain{}, quickDomains...), model.DomainNetwork, model.DomainDatabase)
	deepDomains     = append(append([]model.Domain{}, standardDomains...), model.DomainStorage, model.DomainDiskBenchmark)
)

var modeTable = []ModeSpec{
	{Mode: ModeQuick, Cadence: collector.Cadence{Interval: time.Second, Count: 3}, Domains: quickDomains},
	{Mode: ModeStandard, Cadence: collector.Cadence{Interval: 3 * time.Second, Count: 5}, Domains: standardDomains},
	{Mode: ModeDeep, Cadence: collector.Cadence{Interval: 5 * time.Second, Count: 10}, Domains: deepDomains,
		BenchBlocks: []int64{4 * kib, 64 * kib, mib}},
	{Mode: ModeDiskOnly, Cadence: collector.Cadence{Interval: 3 * time.Second, Count: 5},
		Domains:     []model.Domain{model.DomainSystemInfo, model.DomainDisk, model.DomainStorage, model.DomainDiskBenchmark},
		BenchBlocks: []int64{4 * kib, 8 * kib, 64 * kib, 256 * kib, mib}},
	{Mode: ModeCPUOnly, Cadence: collector.Cadence{Interval: 3 * time.Second, Count: 5},
		Domains: []model.Domain{model.DomainSystemInfo, model.DomainCPU}},
	{Mode: ModeMemoryOnly, Cadence: collector.Cadence{Interval: 3 * time.Second, Count: 5},
		Domains: []model.Domain{model.DomainSystemInfo, model.DomainMemory}},
}

// Modes lists every mode in table order.
func Modes() []Mode {
	out := make([]Mode, len(modeTable))
	for i, m := range modeTable {
		out[i] = m.Mode
	}
	return out
}

// ParseMode resolves a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	for _, m := range modeTable {
		if strings.EqualFold(string(m.Mode), s) {
			return m.Mode, nil
		}
	}
	names := make([]string, 0, len(modeTable))
	for _, m := range Modes() {
		names = append(names, string(m))
	}
	return "", fmt.Errorf("unknown mode %q (want one of %s)", s, strings.Join(names, ", "))
}

// Lookup returns the table row for a mode.
func Lookup(m Mode) (ModeSpec, bool) {
	for _, spec := range modeTable {
		if spec.Mode == m {
			return spec, true
		}
	}
	return ModeSpec{}, false
}

// Includes reports whether the mode collects a domain.
func (s ModeSpec) Includes(d model.Domain) bool {
	for _, x := range s.Domains {
		if x == d {
			return true
		}
	}
	return false
}
