package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ftahirops/perfdiag/collector"
	"github.com/ftahirops/perfdiag/model"
)

const rule = "================================================================================"

// Render returns the plain-text report. The same report always renders to
// the same bytes.
func (r *Report) Render() []byte {
	var b bytes.Buffer

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, " %s diagnostic report\n", r.tool)
	fmt.Fprintln(&b, rule)
	status := "COMPLETE"
	if r.incomplete {
		status = "INCOMPLETE (run interrupted; results are partial)"
	}
	fmt.Fprintf(&b, "Run ID:    %s\n", r.runID)
	fmt.Fprintf(&b, "Tool:      %s %s\n", r.tool, r.version)
	fmt.Fprintf(&b, "Mode:      %s\n", r.mode)
	fmt.Fprintf(&b, "Status:    %s\n", status)
	fmt.Fprintf(&b, "Started:   %s\n", r.started.Format(time.RFC3339))
	fmt.Fprintf(&b, "Ended:     %s\n", r.ended.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:  %s\n", r.ended.Sub(r.started).Round(time.Second))
	fmt.Fprintf(&b, "Artifact:  %s\n", r.path)

	r.renderSystem(&b)
	r.renderFindings(&b)
	r.renderGaps(&b)
	for _, res := range r.results {
		renderDomain(&b, res)
	}
	return b.Bytes()
}

func section(b *bytes.Buffer, title string) {
	fmt.Fprintf(b, "\n-- %s %s\n", title, strings.Repeat("-", max(0, len(rule)-len(title)-4)))
}

func (r *Report) renderSystem(b *bytes.Buffer) {
	id := r.identity
	section(b, "System")
	fmt.Fprintf(b, "Hostname:        %s\n", id.Hostname)
	fmt.Fprintf(b, "OS:              %s %s (%s)\n", id.Platform, id.PlatformVer, id.OS)
	fmt.Fprintf(b, "Kernel:          %s\n", id.Kernel)
	fmt.Fprintf(b, "CPU:             %s (%d logical)\n", id.CPUModel, id.LogicalCPUs)
	fmt.Fprintf(b, "Memory:          %s\n", FormatBytes(id.TotalMemory))
	fmt.Fprintf(b, "Uptime:          %s\n", (time.Duration(id.UptimeSec) * time.Second).String())
	fmt.Fprintf(b, "Virtualization:  %s\n", id.Virtualization)
	if len(id.IPs) > 0 {
		fmt.Fprintf(b, "IPs:             %s\n", strings.Join(id.IPs, ", "))
	}
	switch id.Cloud.Status {
	case model.OutcomeOK:
		c := id.Cloud.Value
		fmt.Fprintf(b, "Cloud:           %s %s (%s, %s)\n", c.Provider, c.InstanceID, c.InstanceType, c.AvailabilityZone)
	default:
		detail := id.Cloud.Detail
		if detail == "" {
			detail = "no metadata"
		}
		fmt.Fprintf(b, "Cloud:           %s (%s)\n", id.Cloud.Status, detail)
	}
}

func (r *Report) renderFindings(b *bytes.Buffer) {
	section(b, fmt.Sprintf("Findings (%d)", len(r.findings)))
	if r.Healthy() {
		if r.incomplete {
			fmt.Fprintln(b, "No bottlenecks detected in the domains that completed.")
		} else {
			fmt.Fprintln(b, "No bottlenecks detected. All checked metrics are within thresholds.")
		}
		return
	}
	for _, g := range r.Grouped() {
		fmt.Fprintf(b, "\n[%s]\n", g.Impact)
		for _, f := range g.Findings {
			fmt.Fprintf(b, "  %s: %s\n", f.Category, f.Issue)
			fmt.Fprintf(b, "      %s [%s] = %s (threshold %s %s)\n",
				f.Counter, f.Instance, FormatValue(f.Observed, f.Unit), f.Comparator, FormatValue(f.Threshold, f.Unit))
			fmt.Fprintf(b, "      Detected: %s\n", f.DetectedAt.Format(time.RFC3339))
			if f.Recommendation != "" {
				fmt.Fprintf(b, "      -> %s\n", f.Recommendation)
			}
		}
	}
}

func (r *Report) renderGaps(b *bytes.Buffer) {
	var lines []string
	for _, res := range r.results {
		if res.Err != "" {
			lines = append(lines, fmt.Sprintf("  %s: collector error: %s", res.Domain, res.Err))
		}
		if len(res.Gaps) > 0 {
			lines = append(lines, fmt.Sprintf("  %s: %s", res.Domain, strings.Join(res.Gaps, ", ")))
		}
	}
	if len(lines) == 0 {
		return
	}
	section(b, "Collection gaps")
	fmt.Fprintln(b, "  Counters below could not be read; no conclusion was drawn from them.")
	for _, l := range lines {
		fmt.Fprintln(b, l)
	}
}

func renderDomain(b *bytes.Buffer, res model.DomainResult) {
	if res.Domain == model.DomainSystemInfo {
		return
	}
	section(b, fmt.Sprintf("%s (%s)", res.Domain, res.Duration.Round(time.Millisecond)))
	for _, k := range res.Snapshot.Keys() {
		v, _ := res.Snapshot.Get(k.Counter, k.Instance)
		fmt.Fprintf(b, "  %-34s %-22s %14.2f\n", k.Counter, k.Instance, v)
	}
	switch det := res.Details.(type) {
	case model.CPUDetails:
		fmt.Fprintf(b, "\n  Total threads: %d\n", det.TotalThreads)
		processTable(b, "Top processes by CPU", det.TopByCPU)
		processTable(b, "Top processes by threads", det.TopByThreads)
	case model.MemoryDetails:
		processTable(b, "Top processes by working set", det.TopByWorkingSet)
		processTable(b, "Top processes by virtual size", det.TopByVirtual)
		if len(det.LeakSuspects) > 0 {
			processTable(b, "Possible leaks (virtual > 2GB, working set < 30%)", det.LeakSuspects)
		}
	case model.NetworkDetails:
		if len(det.Interfaces) > 0 {
			fmt.Fprintf(b, "\n  Interfaces: %s\n", strings.Join(det.Interfaces, ", "))
		}
	case model.DatabaseDetails:
		if len(det.Engines) == 0 {
			fmt.Fprintln(b, "  No database engines detected.")
		}
		for _, e := range det.Engines {
			fmt.Fprintf(b, "  %-12s %-15s port %-5d pids %v established %d (threshold %d)\n",
				e.Engine, e.Kind, e.Port, e.PIDs, e.Established, e.Threshold)
		}
	case model.StorageDetails:
		renderStorage(b, det)
	case model.BenchmarkDetails:
		mode := "buffered"
		if det.Direct {
			mode = "direct"
		}
		fmt.Fprintf(b, "\n  Scratch file %s, %s I/O\n", FormatBytes(uint64(det.FileBytes)), mode)
		fmt.Fprintf(b, "  %-6s %-6s %12s %12s %14s\n", "Block", "Op", "MB/s", "IOPS", "Avg lat (ms)")
		for _, br := range det.Results {
			fmt.Fprintf(b, "  %-6s %-6s %12.1f %12.0f %14.3f\n",
				collector.BlockLabel(br.BlockSize), br.Op, br.MBPerSec, br.IOPS, br.AvgLatencyMs)
		}
	}
}

func renderStorage(b *bytes.Buffer, det model.StorageDetails) {
	if len(det.Partitions) > 0 {
		fmt.Fprintln(b, "\n  Partitions:")
		for _, p := range det.Partitions {
			fmt.Fprintf(b, "    %-12s %-8s %-4s offset %-12d 4K:%-5v 1M:%v\n",
				p.Name, p.Disk, p.Scheme, p.OffsetBytes, p.Aligned4K, p.Aligned1M)
		}
	}
	if len(det.Arrays) > 0 {
		fmt.Fprintln(b, "\n  RAID arrays:")
		for _, a := range det.Arrays {
			fmt.Fprintf(b, "    %-8s %-8s %-8s degraded:%v\n", a.Name, a.Level, a.Status, a.Degraded)
		}
	}
	if len(det.SMART) > 0 {
		fmt.Fprintln(b, "\n  SMART:")
		for _, d := range det.SMART {
			if d.ErrorString != "" {
				fmt.Fprintf(b, "    %-10s error: %s\n", d.Name, d.ErrorString)
				continue
			}
			wear := "n/a"
			if d.WearLevelPct >= 0 {
				wear = fmt.Sprintf("%d%%", d.WearLevelPct)
			}
			fmt.Fprintf(b, "    %-10s healthy:%-5v temp:%dC life:%s realloc:%d pending:%d\n",
				d.Name, d.HealthOK, d.Temperature, wear, d.ReallocSectors, d.PendingSectors)
		}
	}
	if len(det.Sessions) > 0 {
		fmt.Fprintln(b, "\n  iSCSI sessions:")
		for _, s := range det.Sessions {
			fmt.Fprintf(b, "    %-10s %-10s %s\n", s.Name, s.State, s.Target)
		}
	}
}

func processTable(b *bytes.Buffer, title string, procs []model.ProcessInfo) {
	if len(procs) == 0 {
		return
	}
	fmt.Fprintf(b, "\n  %s:\n", title)
	fmt.Fprintf(b, "    %-8s %-20s %8s %8s %12s %12s\n", "PID", "Name", "CPU%", "Threads", "WorkingSet", "Virtual")
	for _, p := range procs {
		fmt.Fprintf(b, "    %-8d %-20s %8.1f %8d %12s %12s\n",
			p.PID, truncate(p.Name, 20), p.CPUPct, p.Threads, FormatBytes(p.WorkingSet), FormatBytes(p.VirtualSize))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

// FormatValue renders a value with its unit.
func FormatValue(v float64, unit string) string {
	switch unit {
	case "":
		return fmt.Sprintf("%.2f", v)
	case "%", "/sec":
		return fmt.Sprintf("%.2f%s", v, unit)
	case "connections", "bytes":
		return fmt.Sprintf("%.0f %s", v, unit)
	}
	return fmt.Sprintf("%.2f %s", v, unit)
}

// FormatBytes formats bytes with binary prefixes.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
