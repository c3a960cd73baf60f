package collector

import (
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"

	"github.com/ftahirops/perfdiag/model"
)

// smartctlJSON is the relevant subset of smartctl --json output.
type smartctlJSON struct {
	ModelFamily string `json:"model_family"`
	ModelName   string `json:"model_name"`
	SmartStatus *struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
	Temperature struct {
		Current int `json:"current"`
	} `json:"temperature"`
	PowerOnTime struct {
		Hours int `json:"hours"`
	} `json:"power_on_time"`
	ATASmartAttributes struct {
		Table []struct {
			ID    int    `json:"id"`
			Name  string `json:"name"`
			Value int    `json:"value"`
			Raw   struct {
				Value int `json:"value"`
			} `json:"raw"`
		} `json:"table"`
	} `json:"ata_smart_attributes"`
	NVMeSmartHealthLog struct {
		PercentageUsed int `json:"percentage_used"`
		Temperature    int `json:"temperature"`
	} `json:"nvme_smart_health_information_log"`
}

// ScanSMART queries every device smartctl can see. It returns nil when
// smartctl is not installed.
func ScanSMART(ctx context.Context) []model.SMARTDisk {
	path, err := exec.LookPath("smartctl")
	if err != nil {
		return nil
	}
	scanOut, err := exec.CommandContext(ctx, path, "--scan", "--json").Output()
	if err != nil {
		return nil
	}
	var scanResult struct {
		Devices []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"devices"`
	}
	if err := json.Unmarshal(scanOut, &scanResult); err != nil {
		return nil
	}

	var disks []model.SMARTDisk
	for _, dev := range scanResult.Devices {
		args := []string{"-a", "--json", dev.Name}
		if dev.Type != "" {
			args = []string{"-a", "--json", "-d", dev.Type, dev.Name}
		}
		out, err := exec.CommandContext(ctx, path, args...).Output()
		// smartctl exits non-zero for many non-error reasons
		if err != nil && len(out) == 0 {
			disks = append(disks, model.SMARTDisk{
				Device: dev.Name, Name: filepath.Base(dev.Name), WearLevelPct: -1, ErrorString: err.Error(),
			})
			continue
		}
		disks = append(disks, parseSMART(dev.Name, out))
	}
	return disks
}

func parseSMART(device string, out []byte) model.SMARTDisk {
	disk := model.SMARTDisk{
		Device:       device,
		Name:         filepath.Base(device),
		WearLevelPct: -1,
	}

	var data smartctlJSON
	if err := json.Unmarshal(out, &data); err != nil {
		disk.ErrorString = "parse error"
		return disk
	}
	if data.SmartStatus == nil {
		disk.ErrorString = "health status not reported"
	} else {
		disk.HealthOK = data.SmartStatus.Passed
	}
	disk.ModelFamily = data.ModelFamily
	disk.ModelNumber = data.ModelName
	disk.Temperature = data.Temperature.Current
	disk.PowerOnHours = data.PowerOnTime.Hours

	if data.NVMeSmartHealthLog.PercentageUsed > 0 || data.NVMeSmartHealthLog.Temperature > 0 {
		disk.WearLevelPct = 100 - data.NVMeSmartHealthLog.PercentageUsed
		if disk.WearLevelPct < 0 {
			disk.WearLevelPct = 0
		}
		if disk.Temperature == 0 {
			disk.Temperature = data.NVMeSmartHealthLog.Temperature
		}
	}

	for _, attr := range data.ATASmartAttributes.Table {
		switch attr.ID {
		case 5: // Reallocated_Sector_Ct
			disk.ReallocSectors = attr.Raw.Value
		case 197: // Current_Pending_Sector
			disk.PendingSectors = attr.Raw.Value
		case 177, 231: // Wear_Leveling_Count / SSD_Life_Left
			if attr.Value > 0 && attr.Value <= 100 {
				disk.WearLevelPct = attr.Value
			}
		case 194: // Temperature_Celsius
			if disk.Temperature == 0 {
				disk.Temperature = attr.Raw.Value
			}
		}
	}
	return disk
}
