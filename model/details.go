package model

// CPUDetails is the per-process view of the CPU domain.
type CPUDetails struct {
	TopByCPU     []ProcessInfo `json:"top_by_cpu"`
	TopByThreads []ProcessInfo `json:"top_by_threads"`
	TotalThreads int           `json:"total_threads"`
}

// MemoryDetails is the per-process view of the Memory domain.
type MemoryDetails struct {
	TopByWorkingSet []ProcessInfo `json:"top_by_working_set"`
	TopByVirtual    []ProcessInfo `json:"top_by_virtual"`
	LeakSuspects    []ProcessInfo `json:"leak_suspects,omitempty"`
	TotalBytes      uint64        `json:"total_bytes"`
}

// NetworkDetails lists the interfaces seen during sampling.
type NetworkDetails struct {
	Interfaces []string `json:"interfaces"`
}

// DatabaseDetails lists detected database engines.
type DatabaseDetails struct {
	Engines []DatabaseEngine `json:"engines"`
}

// StorageDetails is the storage inventory.
type StorageDetails struct {
	Partitions []PartitionInfo `json:"partitions"`
	Arrays     []RAIDArray     `json:"raid_arrays,omitempty"`
	SMART      []SMARTDisk     `json:"smart,omitempty"`
	Sessions   []ISCSISession  `json:"iscsi_sessions,omitempty"`
}

// BenchmarkDetails holds the results of the active disk test.
type BenchmarkDetails struct {
	Dir       string        `json:"dir"`
	FileBytes int64         `json:"file_bytes"`
	Direct    bool          `json:"direct_io"`
	Results   []BenchResult `json:"results"`
}
