// Package report assembles the results of one run into an immutable report
// and renders it as text, JSON or a node-exporter textfile.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ftahirops/perfdiag/model"
)

// Input is what a finished run hands to Finalize.
type Input struct {
	RunID      string
	Tool       string
	Version    string
	Mode       string
	Identity   model.SystemIdentity
	Results    []model.DomainResult
	Findings   []model.Bottleneck
	Started    time.Time
	Ended      time.Time
	Incomplete bool
}

// Report is a finalized run. It does not change after Finalize.
type Report struct {
	runID      string
	tool       string
	version    string
	mode       string
	identity   model.SystemIdentity
	results    []model.DomainResult
	findings   []model.Bottleneck
	started    time.Time
	ended      time.Time
	incomplete bool
	path       string
}

// Group is the findings of one impact level.
type Group struct {
	Impact   model.Impact       `json:"impact"`
	Findings []model.Bottleneck `json:"findings"`
}

// Finalize freezes a run into a report whose artifact lives in outputDir.
func Finalize(in Input, outputDir string) *Report {
	r := &Report{
		runID:      in.RunID,
		tool:       in.Tool,
		version:    in.Version,
		mode:       in.Mode,
		identity:   in.Identity.Clone(),
		results:    cloneResults(in.Results),
		findings:   append([]model.Bottleneck(nil), in.Findings...),
		started:    in.Started,
		ended:      in.Ended,
		incomplete: in.Incomplete,
	}
	r.path = filepath.Join(outputDir, ArtifactName(in.Tool, in.Started))
	return r
}

// ArtifactName is <tool>-YYYYMMDD-HHMMSS.txt in local time.
func ArtifactName(tool string, started time.Time) string {
	return fmt.Sprintf("%s-%s.txt", tool, started.Format("20060102-150405"))
}

func (r *Report) RunID() string                  { return r.runID }
func (r *Report) Mode() string                   { return r.mode }
func (r *Report) Identity() model.SystemIdentity { return r.identity.Clone() }
func (r *Report) Started() time.Time             { return r.started }
func (r *Report) Ended() time.Time               { return r.ended }
func (r *Report) Incomplete() bool               { return r.incomplete }

// Path is where WriteArtifact writes.
func (r *Report) Path() string { return r.path }

// Findings returns a copy of the findings in detection order.
func (r *Report) Findings() []model.Bottleneck {
	return append([]model.Bottleneck(nil), r.findings...)
}

// Results returns a deep copy of the per-domain results.
func (r *Report) Results() []model.DomainResult {
	return cloneResults(r.results)
}

func cloneResults(in []model.DomainResult) []model.DomainResult {
	if in == nil {
		return nil
	}
	out := make([]model.DomainResult, len(in))
	for i, res := range in {
		out[i] = res.Clone()
	}
	return out
}

// Healthy reports whether the run found nothing.
func (r *Report) Healthy() bool { return len(r.findings) == 0 }

// Grouped returns findings by impact, Critical first, keeping detection
// order inside each group. Empty groups are omitted.
func (r *Report) Grouped() []Group {
	var out []Group
	for _, impact := range model.ImpactsBySeverity {
		var g Group
		for _, f := range r.findings {
			if f.Impact == impact {
				g.Findings = append(g.Findings, f)
			}
		}
		if len(g.Findings) > 0 {
			g.Impact = impact
			out = append(out, g)
		}
	}
	return out
}

// Counts returns the number of findings per impact.
func (r *Report) Counts() map[model.Impact]int {
	out := make(map[model.Impact]int, len(model.ImpactsBySeverity))
	for _, f := range r.findings {
		out[f.Impact]++
	}
	return out
}

// HighestImpact is the most severe impact present; ok is false when healthy.
func (r *Report) HighestImpact() (model.Impact, bool) {
	for _, impact := range model.ImpactsBySeverity {
		for _, f := range r.findings {
			if f.Impact == impact {
				return impact, true
			}
		}
	}
	return 0, false
}

// WriteArtifact writes the text rendering to Path, creating the directory.
func (r *Report) WriteArtifact() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(r.path, r.Render(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

type jsonValue struct {
	Counter  string  `json:"counter"`
	Instance string  `json:"instance"`
	Value    float64 `json:"value"`
}

type jsonDomain struct {
	model.DomainResult
	Values []jsonValue `json:"values"`
}

type jsonReport struct {
	RunID      string               `json:"run_id"`
	Tool       string               `json:"tool"`
	Version    string               `json:"version"`
	Mode       string               `json:"mode"`
	Started    time.Time            `json:"started"`
	Ended      time.Time            `json:"ended"`
	Incomplete bool                 `json:"incomplete"`
	Healthy    bool                 `json:"healthy"`
	Artifact   string               `json:"artifact"`
	System     model.SystemIdentity `json:"system"`
	Groups     []Group              `json:"findings_by_impact"`
	Domains    []jsonDomain         `json:"domains"`
}

// MarshalJSON renders the report view used by --json.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := jsonReport{
		RunID:      r.runID,
		Tool:       r.tool,
		Version:    r.version,
		Mode:       r.mode,
		Started:    r.started,
		Ended:      r.ended,
		Incomplete: r.incomplete,
		Healthy:    r.Healthy(),
		Artifact:   r.path,
		System:     r.identity,
		Groups:     r.Grouped(),
	}
	if out.Groups == nil {
		out.Groups = []Group{}
	}
	for _, res := range r.results {
		d := jsonDomain{DomainResult: res, Values: []jsonValue{}}
		for _, k := range res.Snapshot.Keys() {
			v, _ := res.Snapshot.Get(k.Counter, k.Instance)
			d.Values = append(d.Values, jsonValue{Counter: k.Counter, Instance: k.Instance, Value: v})
		}
		out.Domains = append(out.Domains, d)
	}
	return json.Marshal(out)
}
