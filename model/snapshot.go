package model

import (
	"maps"
	"sort"
	"time"
)

// TotalInstance is the synthetic aggregate instance label.
const TotalInstance = "_Total"

// MetricSample is one reading of a counter instance.
type MetricSample struct {
	Category  string    `json:"category"`
	Counter   string    `json:"counter"`
	Instance  string    `json:"instance"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Key identifies one averaged value inside a DomainSnapshot.
type Key struct {
	Counter  string `json:"counter"`
	Instance string `json:"instance"`
}

// DomainSnapshot maps (counter, instance) to its value averaged over the
// sampling window of one domain. Build it with NewDomainSnapshot; the zero
// value is usable for reads only.
type DomainSnapshot struct {
	values map[Key]float64
}

// NewDomainSnapshot returns an empty snapshot ready for Set.
func NewDomainSnapshot() DomainSnapshot {
	return DomainSnapshot{values: make(map[Key]float64)}
}

// Set stores a value. Collectors call it while building the snapshot only.
func (s *DomainSnapshot) Set(counter, instance string, v float64) {
	if s.values == nil {
		s.values = make(map[Key]float64)
	}
	s.values[Key{Counter: counter, Instance: instance}] = v
}

// Clone returns a snapshot that shares nothing with s.
func (s DomainSnapshot) Clone() DomainSnapshot {
	return DomainSnapshot{values: maps.Clone(s.values)}
}

// Get returns the value for a key and whether it was collected.
func (s DomainSnapshot) Get(counter, instance string) (float64, bool) {
	v, ok := s.values[Key{Counter: counter, Instance: instance}]
	return v, ok
}

// Len returns the number of values.
func (s DomainSnapshot) Len() int { return len(s.values) }

// Keys returns every key sorted by counter, then instance.
func (s DomainSnapshot) Keys() []Key {
	keys := make([]Key, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Counter != keys[j].Counter {
			return keys[i].Counter < keys[j].Counter
		}
		return keys[i].Instance < keys[j].Instance
	})
	return keys
}

// Instances returns the sorted instance labels collected for one counter.
func (s DomainSnapshot) Instances(counter string) []string {
	var out []string
	for k := range s.values {
		if k.Counter == counter {
			out = append(out, k.Instance)
		}
	}
	sort.Strings(out)
	return out
}

// Average computes the per-instance mean of samples over the whole window.
// The window has one round per distinct sample timestamp, and an instance
// missing from a round counts as zero for it. The _Total instance is dropped
// unless includeTotal is set.
func Average(samples []MetricSample, includeTotal bool) map[string]float64 {
	rounds := make(map[int64]struct{})
	sums := make(map[string]float64)
	for _, s := range samples {
		rounds[s.Timestamp.UnixNano()] = struct{}{}
		if s.Instance == TotalInstance && !includeTotal {
			continue
		}
		sums[s.Instance] += s.Value
	}
	out := make(map[string]float64, len(sums))
	for inst, sum := range sums {
		out[inst] = sum / float64(len(rounds))
	}
	return out
}
