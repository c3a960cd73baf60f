package model

import "slices"

// CloudIdentity is the instance identity returned by the cloud metadata service.
type CloudIdentity struct {
	Provider         string `json:"provider"`
	InstanceID       string `json:"instance_id"`
	InstanceType     string `json:"instance_type"`
	Region           string `json:"region"`
	AvailabilityZone string `json:"availability_zone"`
	AccountID        string `json:"account_id,omitempty"`
}

// SystemIdentity is the static identity block of a report.
type SystemIdentity struct {
	Hostname       string                 `json:"hostname"`
	OS             string                 `json:"os"`
	Platform       string                 `json:"platform"`
	PlatformVer    string                 `json:"platform_version"`
	Kernel         string                 `json:"kernel"`
	CPUModel       string                 `json:"cpu_model"`
	LogicalCPUs    int                    `json:"logical_cpus"`
	TotalMemory    uint64                 `json:"total_memory"`
	UptimeSec      uint64                 `json:"uptime_sec"`
	Virtualization string                 `json:"virtualization"`
	IPs            []string               `json:"ips,omitempty"`
	Cloud          Outcome[CloudIdentity] `json:"cloud"`
}

// Clone returns a copy of id with its own IP list.
func (id SystemIdentity) Clone() SystemIdentity {
	id.IPs = slices.Clone(id.IPs)
	return id
}
