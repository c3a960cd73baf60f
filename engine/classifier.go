package engine

import (
	"time"

	"github.com/ftahirops/perfdiag/collector"
	"github.com/ftahirops/perfdiag/model"
)

// Comparator is the direction a rule triggers in.
type Comparator int

const (
	// Above triggers when the value strictly exceeds the threshold.
	Above Comparator = iota
	// Below triggers when the value is strictly under the threshold.
	Below
)

func (c Comparator) String() string {
	if c == Below {
		return "<"
	}
	return ">"
}

// Crossed reports whether v crosses threshold. Equal values never do.
func (c Comparator) Crossed(v, threshold float64) bool {
	if c == Below {
		return v < threshold
	}
	return v > threshold
}

// Rule maps one snapshot counter to a finding.
type Rule struct {
	Domain     model.Domain
	Counter    string
	Instance   string // empty matches every instance
	Comparator Comparator
	Threshold  float64
	Unit       string
	Impact     model.Impact
	Issue      string
	Advice     string
}

// DefaultRules returns the rule table in evaluation order.
func DefaultRules() []Rule {
	rules := []Rule{
		// Disk
		{Domain: model.DomainDisk, Counter: collector.KeyReadLatency, Comparator: Above, Threshold: 20, Unit: "ms",
			Impact: model.ImpactHigh, Issue: "High read latency",
			Advice: "Check for competing I/O on the disk; move hot data to faster storage or raise provisioned IOPS"},
		{Domain: model.DomainDisk, Counter: collector.KeyWriteLatency, Comparator: Above, Threshold: 20, Unit: "ms",
			Impact: model.ImpactHigh, Issue: "High write latency",
			Advice: "Check write-heavy processes and the disk write cache; consider faster storage or spreading writes across volumes"},
		{Domain: model.DomainDisk, Counter: collector.CtrDiskQueue, Comparator: Above, Threshold: 2,
			Impact: model.ImpactHigh, Issue: "High disk queue length",
			Advice: "The disk cannot keep up with requests; reduce concurrent I/O or add throughput capacity"},

		// CPU
		{Domain: model.DomainCPU, Counter: collector.CtrProcessorTime, Instance: model.TotalInstance, Comparator: Above, Threshold: 80, Unit: "%",
			Impact: model.ImpactHigh, Issue: "High CPU utilization",
			Advice: "Review the top CPU consumers below; scale up vCPUs or move load off this host"},
		{Domain: model.DomainCPU, Counter: collector.CtrContextSwitches, Instance: model.TotalInstance, Comparator: Above, Threshold: 15000, Unit: "/sec",
			Impact: model.ImpactMedium, Issue: "High context switch rate",
			Advice: "Look for processes with many runnable threads or lock contention"},
		{Domain: model.DomainCPU, Counter: collector.CtrProcQueue, Instance: model.TotalInstance, Comparator: Above, Threshold: 2,
			Impact: model.ImpactHigh, Issue: "High processor queue length",
			Advice: "Runnable threads are waiting for a CPU; add vCPUs or reduce parallelism"},
		{Domain: model.DomainCPU, Counter: collector.KeyThrottle, Instance: model.TotalInstance, Comparator: Above, Threshold: 10, Unit: "%",
			Impact: model.ImpactMedium, Issue: "CPU clock throttling",
			Advice: "Check the power governor, thermal limits and burstable instance credits"},

		// Memory
		{Domain: model.DomainMemory, Counter: collector.CtrAvailablePct, Instance: model.TotalInstance, Comparator: Below, Threshold: 10, Unit: "%",
			Impact: model.ImpactCritical, Issue: "Low available memory",
			Advice: "Identify the largest working sets below; add memory or restart leaking services"},
		{Domain: model.DomainMemory, Counter: collector.CtrPagesSec, Instance: model.TotalInstance, Comparator: Above, Threshold: 10, Unit: "/sec",
			Impact: model.ImpactHigh, Issue: "High paging rate",
			Advice: "The system is swapping; reduce memory pressure or add memory"},
		{Domain: model.DomainMemory, Counter: collector.CtrPageFaultsSec, Instance: model.TotalInstance, Comparator: Above, Threshold: 1000, Unit: "/sec",
			Impact: model.ImpactMedium, Issue: "High page fault rate",
			Advice: "Check for processes repeatedly mapping memory or file caches being evicted"},
		{Domain: model.DomainMemory, Counter: collector.KeyPageFileUsage, Instance: model.TotalInstance, Comparator: Above, Threshold: 80, Unit: "%",
			Impact: model.ImpactHigh, Issue: "High page file usage",
			Advice: "Swap is nearly full; add memory or enlarge swap"},
		{Domain: model.DomainMemory, Counter: collector.CtrCommittedPct, Instance: model.TotalInstance, Comparator: Above, Threshold: 90, Unit: "%",
			Impact: model.ImpactCritical, Issue: "High committed memory",
			Advice: "Allocations are close to the commit limit; new allocations may fail"},
		{Domain: model.DomainMemory, Counter: collector.KeyLeak, Comparator: Below, Threshold: 30, Unit: "%",
			Impact: model.ImpactMedium, Issue: "Possible memory leak",
			Advice: "The process reserved far more memory than it uses; watch its growth over time"},

		// Network
		{Domain: model.DomainNetwork, Counter: collector.CtrTCPRetransmitted, Instance: model.TotalInstance, Comparator: Above, Threshold: 10, Unit: "/sec",
			Impact: model.ImpactMedium, Issue: "High TCP retransmit rate",
			Advice: "Check for packet loss, saturated links or MTU mismatches"},

		// Database: per-engine connection rules are appended below.
		{Domain: model.DomainDatabase, Counter: collector.KeyDBTimeWait, Instance: model.TotalInstance, Comparator: Above, Threshold: 1000,
			Impact: model.ImpactMedium, Issue: "High TIME_WAIT count on database ports",
			Advice: "Clients open and close connections rapidly; enable connection pooling"},

		// Storage
		{Domain: model.DomainStorage, Counter: collector.KeyPartition4K, Comparator: Above, Threshold: 0, Unit: "bytes",
			Impact: model.ImpactMedium, Issue: "Partition not aligned to 4K boundary",
			Advice: "Misaligned partitions split I/O across physical sectors; recreate the partition on a 1MB boundary"},
		{Domain: model.DomainStorage, Counter: collector.KeyPartition1M, Comparator: Above, Threshold: 0, Unit: "bytes",
			Impact: model.ImpactLow, Issue: "Partition not aligned to 1MB boundary",
			Advice: "Align new partitions to 1MB for RAID and SAN stripe boundaries"},
		{Domain: model.DomainStorage, Counter: collector.KeyRAIDDegraded, Comparator: Above, Threshold: 0,
			Impact: model.ImpactCritical, Issue: "Degraded RAID array",
			Advice: "Replace the failed member and rebuild the array"},
		{Domain: model.DomainStorage, Counter: collector.KeySMARTFailed, Comparator: Above, Threshold: 0,
			Impact: model.ImpactCritical, Issue: "SMART health check failed",
			Advice: "Back up the disk and replace it"},
		{Domain: model.DomainStorage, Counter: collector.KeySSDLife, Comparator: Below, Threshold: 10, Unit: "%",
			Impact: model.ImpactHigh, Issue: "SSD nearing end of life",
			Advice: "Plan a replacement before the drive reaches its write endurance"},
		{Domain: model.DomainStorage, Counter: collector.KeyDiskTemp, Comparator: Above, Threshold: 60, Unit: "C",
			Impact: model.ImpactMedium, Issue: "High disk temperature",
			Advice: "Check airflow and cooling around the drive"},
		{Domain: model.DomainStorage, Counter: collector.KeyISCSIDown, Comparator: Above, Threshold: 0,
			Impact: model.ImpactHigh, Issue: "iSCSI session not logged in",
			Advice: "Check the SAN path, target availability and initiator credentials"},
	}
	for _, name := range collector.DBEngineNames() {
		limit, _ := collector.DBThreshold(name)
		rules = append(rules, Rule{
			Domain: model.DomainDatabase, Counter: collector.KeyDBConnections, Instance: name,
			Comparator: Above, Threshold: float64(limit), Unit: "connections",
			Impact: model.ImpactMedium, Issue: "High connection count",
			Advice: "Review client connection pooling and the server's max connection setting",
		})
	}
	return rules
}

// Classifier evaluates snapshots against a rule table. It holds no state
// between calls.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over rules; nil means DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Rules returns the classifier's rule table.
func (c *Classifier) Rules() []Rule { return c.rules }

// Classify returns the findings for one domain snapshot in rule order, then
// instance order. Counters missing from the snapshot produce nothing.
func (c *Classifier) Classify(domain model.Domain, snap model.DomainSnapshot, at time.Time) []model.Bottleneck {
	var out []model.Bottleneck
	for _, r := range c.rules {
		if r.Domain != domain {
			continue
		}
		instances := []string{r.Instance}
		if r.Instance == "" {
			instances = snap.Instances(r.Counter)
		}
		for _, inst := range instances {
			v, ok := snap.Get(r.Counter, inst)
			if !ok || !r.Comparator.Crossed(v, r.Threshold) {
				continue
			}
			out = append(out, model.Bottleneck{
				Category:       domain,
				Issue:          r.Issue,
				Counter:        r.Counter,
				Instance:       inst,
				Observed:       v,
				Comparator:     r.Comparator.String(),
				Threshold:      r.Threshold,
				Unit:           r.Unit,
				Impact:         r.Impact,
				Recommendation: r.Advice,
				DetectedAt:     at,
			})
		}
	}
	return out
}
