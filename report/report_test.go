package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ftahirops/perfdiag/model"
)

var started = time.Date(2026, 10, 14, 9, 30, 5, 0, time.UTC)

func finding(d model.Domain, issue string, impact model.Impact) model.Bottleneck {
	return model.Bottleneck{Category: d, Issue: issue, Counter: "c", Instance: model.TotalInstance,
		Observed: 2, Comparator: ">", Threshold: 1, Impact: impact, DetectedAt: started}
}

func testInput(findings ...model.Bottleneck) Input {
	snap := model.NewDomainSnapshot()
	snap.Set("% Processor Time", model.TotalInstance, 85)
	snap.Set("% Processor Time", "0", 90)
	return Input{
		RunID:   "3f1c2e7a-0000-4000-8000-000000000001",
		Tool:    "perfdiag",
		Version: "1.0.0",
		Mode:    "Quick",
		Identity: model.SystemIdentity{
			Hostname: "db01", Platform: "ubuntu", PlatformVer: "24.04", OS: "linux",
			Cloud: model.Unavailable[model.CloudIdentity]("metadata service not reachable within 2s"),
		},
		Results: []model.DomainResult{
			{Domain: model.DomainCPU, Snapshot: snap, Duration: 3 * time.Second,
				Details: model.CPUDetails{TopByCPU: []model.ProcessInfo{{PID: 42, Name: "postgres", CPUPct: 55}}}},
			{Domain: model.DomainMemory, Snapshot: model.NewDomainSnapshot(), Gaps: []string{"Pages/sec"}},
		},
		Findings: findings,
		Started:  started,
		Ended:    started.Add(20 * time.Second),
	}
}

func TestGroupedOrdersBySeverityThenDetection(t *testing.T) {
	r := Finalize(testInput(
		finding(model.DomainCPU, "High CPU utilization", model.ImpactHigh),
		finding(model.DomainMemory, "Low available memory", model.ImpactCritical),
		finding(model.DomainDisk, "High write latency", model.ImpactHigh),
		finding(model.DomainStorage, "Partition not aligned to 1MB boundary", model.ImpactLow),
	), t.TempDir())

	groups := r.Grouped()
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want Critical, High, Low", len(groups))
	}
	if groups[0].Impact != model.ImpactCritical || groups[1].Impact != model.ImpactHigh || groups[2].Impact != model.ImpactLow {
		t.Errorf("group order = %s, %s, %s", groups[0].Impact, groups[1].Impact, groups[2].Impact)
	}
	if groups[1].Findings[0].Issue != "High CPU utilization" || groups[1].Findings[1].Issue != "High write latency" {
		t.Error("detection order not kept within a group")
	}
	if top, ok := r.HighestImpact(); !ok || top != model.ImpactCritical {
		t.Errorf("HighestImpact = %s, %v", top, ok)
	}
}

func TestReportIsImmutable(t *testing.T) {
	in := testInput(finding(model.DomainCPU, "High CPU utilization", model.ImpactHigh))
	r := Finalize(in, t.TempDir())
	in.Findings[0].Issue = "changed"
	got := r.Findings()
	got[0].Issue = "changed again"
	if r.Findings()[0].Issue != "High CPU utilization" {
		t.Error("report findings changed after Finalize")
	}
}

func TestFinalizedResultsAreDetached(t *testing.T) {
	in := testInput(finding(model.DomainCPU, "High CPU utilization", model.ImpactHigh))
	r := Finalize(in, t.TempDir())
	before := r.Render()

	in.Results[0].Snapshot.Set("% Processor Time", model.TotalInstance, 1)
	in.Results[0].Details.(model.CPUDetails).TopByCPU[0].Name = "from input"
	got := r.Results()
	got[0].Snapshot.Set("% Processor Time", model.TotalInstance, 2)
	got[0].Snapshot.Set("Threads", model.TotalInstance, 3)
	got[0].Details.(model.CPUDetails).TopByCPU[0].Name = "from copy"
	got[1].Gaps[0] = "from copy"
	id := r.Identity()
	id.IPs = append(id.IPs, "10.0.0.9")

	if after := r.Render(); !bytes.Equal(before, after) {
		t.Errorf("render changed after mutating inputs and copies:\n%s", after)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	in := testInput(finding(model.DomainCPU, "High CPU utilization", model.ImpactHigh))
	a := Finalize(in, "/var/tmp").Render()
	b := Finalize(in, "/var/tmp").Render()
	if !bytes.Equal(a, b) {
		t.Error("rendering the same run twice differs")
	}
}

func TestRenderContents(t *testing.T) {
	out := string(Finalize(testInput(finding(model.DomainCPU, "High CPU utilization", model.ImpactHigh)), "/tmp").Render())
	for _, want := range []string{
		"Run ID:    3f1c2e7a-0000-4000-8000-000000000001",
		"Status:    COMPLETE",
		"Artifact:  /tmp/perfdiag-20261014-093005.txt",
		"Hostname:        db01",
		"Cloud:           not available (metadata service not reachable within 2s)",
		"Findings (1)",
		"[High]",
		"CPU: High CPU utilization",
		"Detected: 2026-10-14T09:30:05Z",
		"Collection gaps",
		"Memory: Pages/sec",
		"Top processes by CPU",
		"postgres",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
}

func TestRenderHealthyAndIncomplete(t *testing.T) {
	in := testInput()
	out := string(Finalize(in, "/tmp").Render())
	if !strings.Contains(out, "Findings (0)") || !strings.Contains(out, "No bottlenecks detected.") {
		t.Error("healthy report should state zero findings")
	}
	in.Incomplete = true
	out = string(Finalize(in, "/tmp").Render())
	if !strings.Contains(out, "INCOMPLETE") {
		t.Error("incomplete run not marked")
	}
}

func TestArtifactPath(t *testing.T) {
	dir := t.TempDir()
	r := Finalize(testInput(), dir)
	if got, want := r.Path(), filepath.Join(dir, "perfdiag-20261014-093005.txt"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if err := r.WriteArtifact(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, r.Render()) {
		t.Error("artifact differs from Render")
	}
}

func TestMarshalJSON(t *testing.T) {
	r := Finalize(testInput(finding(model.DomainCPU, "High CPU utilization", model.ImpactHigh)), "/tmp")
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Healthy bool `json:"healthy"`
		Groups  []struct {
			Impact   string `json:"impact"`
			Findings []struct {
				Issue string `json:"issue"`
			} `json:"findings"`
		} `json:"findings_by_impact"`
		Domains []struct {
			Domain string `json:"domain"`
			Values []struct {
				Counter string  `json:"counter"`
				Value   float64 `json:"value"`
			} `json:"values"`
		} `json:"domains"`
		System struct {
			Cloud struct {
				Status string `json:"status"`
			} `json:"cloud"`
		} `json:"system"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Healthy || len(got.Groups) != 1 || got.Groups[0].Impact != "High" {
		t.Errorf("groups = %+v", got.Groups)
	}
	if len(got.Domains) != 2 || len(got.Domains[0].Values) != 2 {
		t.Errorf("domains = %+v", got.Domains)
	}
	if got.System.Cloud.Status != "not available" {
		t.Errorf("cloud status = %q", got.System.Cloud.Status)
	}
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfdiag.prom")
	r := Finalize(testInput(finding(model.DomainCPU, "High CPU utilization", model.ImpactHigh)), "/tmp")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`perfdiag_findings{impact="High"} 1`,
		`perfdiag_findings{impact="Critical"} 0`,
		`perfdiag_metric_value{counter="% Processor Time",domain="CPU",instance="_Total"} 85`,
		`perfdiag_collection_gaps{domain="Memory"} 1`,
		`perfdiag_run_incomplete 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q\n%s", want, out)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    float64
		unit string
		want string
	}{
		{25, "ms", "25.00 ms"},
		{85.5, "%", "85.50%"},
		{600, "connections", "600 connections"},
		{2.5, "", "2.50"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v, tt.unit); got != tt.want {
			t.Errorf("FormatValue(%v, %q) = %q, want %q", tt.v, tt.unit, got, tt.want)
		}
	}
}
