package model

// Domain is one resource category.
type Domain string

const (
	DomainSystemInfo    Domain = "SystemInfo"
	DomainCPU           Domain = "CPU"
	DomainMemory        Domain = "Memory"
	DomainDisk          Domain = "Disk"
	DomainNetwork       Domain = "Network"
	DomainDatabase      Domain = "Database"
	DomainStorage       Domain = "Storage"
	DomainDiskBenchmark Domain = "DiskBenchmark"
)

// domainPriority orders domains when collector completion order is not
// deterministic.
var domainPriority = map[Domain]int{
	DomainSystemInfo:    0,
	DomainCPU:           1,
	DomainMemory:        2,
	DomainDisk:          3,
	DomainNetwork:       4,
	DomainDatabase:      5,
	DomainStorage:       6,
	DomainDiskBenchmark: 7,
}

// Priority returns the presentation rank of a domain. Unknown domains sort last.
func (d Domain) Priority() int {
	if p, ok := domainPriority[d]; ok {
		return p
	}
	return len(domainPriority)
}
