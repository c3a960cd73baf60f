package model

// SMARTDisk holds SMART health data for a single disk.
type SMARTDisk struct {
	Device         string `json:"device"` // e.g., "/dev/sda", "/dev/nvme0n1"
	Name           string `json:"name"`   // short name: "sda", "nvme0n1"
	ModelFamily    string `json:"model_family,omitempty"`
	ModelNumber    string `json:"model_number,omitempty"`
	HealthOK       bool   `json:"health_ok"`
	Temperature    int    `json:"temperature"`    // Celsius
	WearLevelPct   int    `json:"wear_level_pct"` // % life remaining (NVMe/SSD only, -1 if unknown)
	ReallocSectors int    `json:"realloc_sectors"`
	PendingSectors int    `json:"pending_sectors"`
	PowerOnHours   int    `json:"power_on_hours"`
	ErrorString    string `json:"error,omitempty"` // non-empty if smartctl failed
}
