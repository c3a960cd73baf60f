package ui

import (
	"fmt"
	"strings"

	"github.com/ftahirops/perfdiag/collector"
	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/report"
)

// maxSummaryFindings caps the findings listed on the console; the artifact
// has all of them.
const maxSummaryFindings = 8

// Summary renders the end-of-run console panel.
func Summary(r *report.Report) string {
	var sb strings.Builder
	id := r.Identity()
	sb.WriteString(headerStyle.Render("Diagnostic summary") + "\n")
	fmt.Fprintf(&sb, "%s %s  %s %s\n",
		labelStyle.Render("host"), valueStyle.Render(id.Hostname),
		labelStyle.Render("mode"), valueStyle.Render(r.Mode()))
	if id.Cloud.Ok() {
		c := id.Cloud.Value
		fmt.Fprintf(&sb, "%s %s (%s, %s)\n", labelStyle.Render("instance"),
			valueStyle.Render(c.InstanceID), c.InstanceType, c.AvailabilityZone)
	}

	for _, u := range utilization(r) {
		fmt.Fprintf(&sb, "%s %s %s\n", labelStyle.Render(padRight(u.label, 8)), bar(u.pct, colBar), fmtPct(u.pct))
	}

	if r.Incomplete() {
		sb.WriteString(warnStyle.Render("Run interrupted: results are partial") + "\n")
	}

	if r.Healthy() {
		sb.WriteString(okStyle.Render("No performance bottlenecks detected") + "\n")
	} else {
		counts := r.Counts()
		var parts []string
		for _, imp := range model.ImpactsBySeverity {
			if n := counts[imp]; n > 0 {
				parts = append(parts, impactStyle(imp).Render(fmt.Sprintf("%d %s", n, imp)))
			}
		}
		sb.WriteString(strings.Join(parts, dimStyle.Render(" · ")) + "\n")

		shown := 0
		for _, g := range r.Grouped() {
			for _, f := range g.Findings {
				if shown == maxSummaryFindings {
					break
				}
				fmt.Fprintf(&sb, " %s%s %s %s\n",
					styledPad(impactStyle(g.Impact).Render(g.Impact.String()), colImpact),
					valueStyle.Render(f.Issue),
					dimStyle.Render("["+string(f.Category)+" "+f.Instance+"]"),
					report.FormatValue(f.Observed, f.Unit))
				shown++
			}
		}
		if total := len(r.Findings()); total > shown {
			sb.WriteString(dimStyle.Render(fmt.Sprintf(" ... %d more in the report", total-shown)) + "\n")
		}
	}

	fmt.Fprintf(&sb, "%s %s", labelStyle.Render("report"), valueStyle.Render(r.Path()))
	return panelStyle.Render(sb.String())
}

type gauge struct {
	label string
	pct   float64
}

// utilization picks the headline CPU and memory figures from the results.
func utilization(r *report.Report) []gauge {
	var out []gauge
	for _, res := range r.Results() {
		switch res.Domain {
		case model.DomainCPU:
			if v, ok := res.Snapshot.Get(collector.CtrProcessorTime, model.TotalInstance); ok {
				out = append(out, gauge{"cpu", v})
			}
		case model.DomainMemory:
			if v, ok := res.Snapshot.Get(collector.CtrAvailablePct, model.TotalInstance); ok {
				out = append(out, gauge{"memory", 100 - v})
			}
		}
	}
	return out
}

func fmtPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
