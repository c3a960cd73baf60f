// Package support files a support case carrying a finalized report.
package support

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/report"
)

// Severities accepted by --severity, lowest first.
var Severities = []string{"low", "normal", "high", "urgent", "critical"}

// ValidSeverity reports whether s is an accepted severity code.
func ValidSeverity(s string) bool {
	for _, v := range Severities {
		if v == s {
			return true
		}
	}
	return false
}

// SuggestSeverity maps the most severe finding to a severity code.
func SuggestSeverity(r *report.Report) string {
	top, ok := r.HighestImpact()
	if !ok {
		return "low"
	}
	switch top {
	case model.ImpactCritical:
		return "urgent"
	case model.ImpactHigh:
		return "high"
	case model.ImpactMedium:
		return "normal"
	}
	return "low"
}

// Attachment is a file attached to a case.
type Attachment struct {
	FileName string
	Data     []byte
}

// Case is the ticket payload.
type Case struct {
	Subject      string
	Body         string
	ServiceCode  string
	CategoryCode string
	Severity     string
	Language     string
	IssueType    string
	Attachment   Attachment
}

// Settings are the account-specific case fields.
type Settings struct {
	ServiceCode  string
	CategoryCode string
	Language     string
	IssueType    string
}

// Submitter files a case and returns its identifier.
type Submitter interface {
	Submit(ctx context.Context, c Case) (caseID string, err error)
}

// ShouldSubmit reports whether a case may be filed for r. Healthy and
// interrupted runs are never submitted.
func ShouldSubmit(r *report.Report, requested bool) bool {
	return requested && !r.Healthy() && !r.Incomplete()
}

// Compose builds the case for a report. The full text report is attached.
func Compose(r *report.Report, severity string, s Settings) (Case, error) {
	if !ValidSeverity(severity) {
		return Case{}, fmt.Errorf("invalid severity %q (want one of %s)", severity, strings.Join(Severities, ", "))
	}
	id := r.Identity()
	findings := r.Findings()

	host := id.Hostname
	if id.Cloud.Ok() {
		host = fmt.Sprintf("%s (%s)", id.Cloud.Value.InstanceID, host)
	}
	subject := fmt.Sprintf("Performance bottlenecks on %s: %d finding(s) [%s]", host, len(findings), r.Mode())

	var b strings.Builder
	fmt.Fprintf(&b, "Automated performance diagnostic (run %s, mode %s).\n\n", r.RunID(), r.Mode())
	fmt.Fprintf(&b, "Host: %s\n", id.Hostname)
	fmt.Fprintf(&b, "OS: %s %s, kernel %s\n", id.Platform, id.PlatformVer, id.Kernel)
	fmt.Fprintf(&b, "CPU: %s (%d logical), memory %s\n", id.CPUModel, id.LogicalCPUs, report.FormatBytes(id.TotalMemory))
	if id.Cloud.Ok() {
		c := id.Cloud.Value
		fmt.Fprintf(&b, "Instance: %s %s in %s\n", c.InstanceID, c.InstanceType, c.AvailabilityZone)
	}
	fmt.Fprintf(&b, "Collected: %s to %s\n\n", r.Started().Format("2006-01-02 15:04:05 MST"), r.Ended().Format("15:04:05 MST"))

	for _, g := range r.Grouped() {
		fmt.Fprintf(&b, "%s:\n", g.Impact)
		for _, f := range g.Findings {
			fmt.Fprintf(&b, "- %s / %s [%s]: %s (threshold %s %s)\n",
				f.Category, f.Issue, f.Instance,
				report.FormatValue(f.Observed, f.Unit), f.Comparator, report.FormatValue(f.Threshold, f.Unit))
		}
		b.WriteString("\n")
	}
	b.WriteString("The full report is attached.\n")

	return Case{
		Subject:      subject,
		Body:         b.String(),
		ServiceCode:  s.ServiceCode,
		CategoryCode: s.CategoryCode,
		Severity:     severity,
		Language:     s.Language,
		IssueType:    s.IssueType,
		Attachment:   Attachment{FileName: filepath.Base(r.Path()), Data: r.Render()},
	}, nil
}
