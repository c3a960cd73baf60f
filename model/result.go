package model

import (
	"slices"
	"time"
)

// DomainResult is what one collector produced for one run. Gaps lists
// counters that could not be read; a gap is not evidence either way.
type DomainResult struct {
	Domain   Domain         `json:"domain"`
	Snapshot DomainSnapshot `json:"-"`
	Gaps     []string       `json:"gaps,omitempty"`
	Details  any            `json:"details,omitempty"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
	Err      string         `json:"error,omitempty"`
}

// AddGap records an unavailable counter once.
func (r *DomainResult) AddGap(counter string) {
	for _, g := range r.Gaps {
		if g == counter {
			return
		}
	}
	r.Gaps = append(r.Gaps, counter)
}

// Clone returns a deep copy of r. Details of a type this package does not
// define are shared.
func (r DomainResult) Clone() DomainResult {
	out := r
	out.Snapshot = r.Snapshot.Clone()
	out.Gaps = slices.Clone(r.Gaps)
	out.Details = cloneDetails(r.Details)
	return out
}

func cloneDetails(d any) any {
	switch det := d.(type) {
	case CPUDetails:
		det.TopByCPU = slices.Clone(det.TopByCPU)
		det.TopByThreads = slices.Clone(det.TopByThreads)
		return det
	case MemoryDetails:
		det.TopByWorkingSet = slices.Clone(det.TopByWorkingSet)
		det.TopByVirtual = slices.Clone(det.TopByVirtual)
		det.LeakSuspects = slices.Clone(det.LeakSuspects)
		return det
	case NetworkDetails:
		det.Interfaces = slices.Clone(det.Interfaces)
		return det
	case DatabaseDetails:
		det.Engines = slices.Clone(det.Engines)
		for i := range det.Engines {
			det.Engines[i].PIDs = slices.Clone(det.Engines[i].PIDs)
		}
		return det
	case StorageDetails:
		det.Partitions = slices.Clone(det.Partitions)
		det.Arrays = slices.Clone(det.Arrays)
		det.SMART = slices.Clone(det.SMART)
		det.Sessions = slices.Clone(det.Sessions)
		return det
	case BenchmarkDetails:
		det.Results = slices.Clone(det.Results)
		return det
	case SystemIdentity:
		return det.Clone()
	}
	return d
}
