package collector

// Snapshot counter names written by the collectors that are not catalog
// names verbatim. Latencies are in milliseconds.
const (
	KeyReadLatency  = "Avg. Disk Read Latency (ms)"
	KeyWriteLatency = "Avg. Disk Write Latency (ms)"

	KeyThrottle = "Clock Throttle %"

	KeyPageFileUsage = "Page File % Usage"
	KeyLeak          = "Working Set % of Virtual"

	KeyDBConnections = "Established Connections"
	KeyDBTimeWait    = "TIME_WAIT on DB Ports"

	KeyPartition4K  = "Partition Offset mod 4K"
	KeyPartition1M  = "Partition Offset mod 1M"
	KeyRAIDDegraded = "RAID Degraded"
	KeySMARTFailed  = "SMART Health Failed"
	KeySSDLife      = "SSD Life Remaining %"
	KeyDiskTemp     = "Disk Temperature C"
	KeyISCSIDown    = "iSCSI Session Down"

	KeyBenchWriteMBs = "Sequential Write MB/s"
	KeyBenchReadMBs  = "Sequential Read MB/s"
	KeyBenchWriteLat = "Write Latency (ms)"
	KeyBenchReadLat  = "Read Latency (ms)"
	KeyBenchIOPS     = "IOPS"
)
