package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/collector"
	"github.com/ftahirops/perfdiag/config"
	"github.com/ftahirops/perfdiag/engine"
	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/support"
)

type stubCollector struct {
	domain  model.Domain
	values  map[string]float64 // counter -> _Total value
	details any
}

func (s *stubCollector) Domain() model.Domain { return s.domain }

func (s *stubCollector) Collect(context.Context, collector.Env) (model.DomainResult, error) {
	snap := model.NewDomainSnapshot()
	for k, v := range s.values {
		snap.Set(k, model.TotalInstance, v)
	}
	return model.DomainResult{Domain: s.domain, Snapshot: snap, Details: s.details}, nil
}

type stubSubmitter struct {
	id    string
	err   error
	calls int
	got   support.Case
}

func (s *stubSubmitter) Submit(_ context.Context, c support.Case) (string, error) {
	s.calls++
	s.got = c
	return s.id, s.err
}

type harness struct {
	app       *app
	stdout    bytes.Buffer
	stderr    bytes.Buffer
	dir       string
	built     int
	submitter *stubSubmitter
}

func newHarness(t *testing.T, cpuBusy float64) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir(), submitter: &stubSubmitter{id: "case-42"}}
	h.app = &app{
		stdout:  &h.stdout,
		stderr:  &h.stderr,
		geteuid: func() int { return 0 },
		isTTY:   func() bool { return false },
		buildRunner: func(config.Config, *zap.Logger) *engine.Runner {
			h.built++
			var reg collector.Registry
			reg.Add(&stubCollector{domain: model.DomainSystemInfo,
				details: model.SystemIdentity{Hostname: "db01", Cloud: model.Unavailable[model.CloudIdentity]("disabled")}})
			reg.Add(&stubCollector{domain: model.DomainCPU, values: map[string]float64{collector.CtrProcessorTime: cpuBusy}})
			reg.Add(&stubCollector{domain: model.DomainMemory, values: map[string]float64{collector.CtrAvailablePct: 60}})
			reg.Add(&stubCollector{domain: model.DomainDisk})
			return engine.NewRunner(&reg, nil, nil)
		},
		newSubmitter: func(context.Context, string, *zap.Logger) (support.Submitter, error) {
			return h.submitter, nil
		},
	}
	return h
}

func (h *harness) exec(args ...string) error {
	base := []string{"--mode", "Quick", "--output-path", h.dir, "--config", filepath.Join(h.dir, "absent.yaml"),
		"--log-level", "error", "--no-progress"}
	return h.app.execute(context.Background(), append(base, args...))
}

func (h *harness) artifact(t *testing.T) string {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(h.dir, "perfdiag-*.txt"))
	if len(matches) != 1 {
		t.Fatalf("artifacts = %v, want exactly one", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func exitCode(err error) int {
	var exit ExitCodeError
	if errors.As(err, &exit) {
		return exit.Code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestVersion(t *testing.T) {
	h := newHarness(t, 10)
	if err := h.app.execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.stdout.String(), "perfdiag v"+Version) {
		t.Errorf("stdout = %q", h.stdout.String())
	}
	if h.built != 0 {
		t.Error("--version started a run")
	}
}

func TestInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"--mode", "Turbo"}},
		{"unknown severity", []string{"--severity", "sev1"}},
		{"unsupported disk size", []string{"--disk-test-size-gb", "2"}},
		{"missing output dir", []string{"--output-path", "/nonexistent/perfdiag"}},
		{"bad log level", []string{"--log-level", "loud"}},
		{"positional argument", []string{"extra"}},
		{"unknown flag", []string{"--turbo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 10)
			if code := exitCode(h.exec(tt.args...)); code != exitInvalidArgs {
				t.Errorf("exit code = %d, want %d", code, exitInvalidArgs)
			}
			if h.built != 0 {
				t.Error("collection started despite invalid arguments")
			}
			if !strings.Contains(h.stderr.String(), "Error:") {
				t.Errorf("stderr = %q", h.stderr.String())
			}
		})
	}
}

func TestPrivilegePreflight(t *testing.T) {
	h := newHarness(t, 95)
	h.app.geteuid = func() int { return 1000 }
	if code := exitCode(h.exec()); code != exitPrivilege {
		t.Fatalf("exit code = %d, want %d", code, exitPrivilege)
	}
	if h.built != 0 {
		t.Error("collection started without privileges")
	}
	if !strings.Contains(h.stderr.String(), "root privileges required") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
	if matches, _ := filepath.Glob(filepath.Join(h.dir, "perfdiag-*.txt")); len(matches) != 0 {
		t.Errorf("report written: %v", matches)
	}
}

func TestHealthyRun(t *testing.T) {
	h := newHarness(t, 10)
	if err := h.exec("--create-support-case"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.stdout.String(), "Status: healthy") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
	if h.submitter.calls != 0 {
		t.Error("healthy run submitted a case")
	}
	if !strings.Contains(h.artifact(t), "db01") {
		t.Error("report misses the system identity")
	}
}

func TestFindingsWithoutSubmission(t *testing.T) {
	h := newHarness(t, 95)
	if err := h.exec(); err != nil {
		t.Fatal(err)
	}
	out := h.stdout.String()
	if !strings.Contains(out, "1 bottleneck(s) found") || !strings.Contains(out, "--create-support-case --severity high") {
		t.Errorf("stdout = %q", out)
	}
	if h.submitter.calls != 0 {
		t.Error("case submitted without being requested")
	}
	if !strings.Contains(h.artifact(t), "High CPU") {
		t.Error("report misses the CPU finding")
	}
}

func TestSubmission(t *testing.T) {
	h := newHarness(t, 95)
	if err := h.exec("--create-support-case", "--severity", "urgent"); err != nil {
		t.Fatal(err)
	}
	if h.submitter.calls != 1 {
		t.Fatalf("submit calls = %d", h.submitter.calls)
	}
	if h.submitter.got.Severity != "urgent" || len(h.submitter.got.Attachment.Data) == 0 {
		t.Errorf("case = %+v", h.submitter.got)
	}
	if h.submitter.got.ServiceCode != config.Default().Support.ServiceCode {
		t.Errorf("service code = %q", h.submitter.got.ServiceCode)
	}
	if !strings.Contains(h.stdout.String(), "Support case created: case-42") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestSubmissionFailureKeepsExitStatus(t *testing.T) {
	h := newHarness(t, 95)
	h.submitter.id = ""
	h.submitter.err = &model.SubmissionError{Kind: model.SubmissionIneligible, Advice: "upgrade the support plan",
		Err: errors.New("SubscriptionRequiredException")}
	if err := h.exec("--create-support-case"); err != nil {
		t.Fatalf("submission failure changed the exit status: %v", err)
	}
	out := h.stdout.String()
	if !strings.Contains(out, "WARNING: support case submission failed (support plan ineligible): upgrade the support plan") {
		t.Errorf("stdout = %q", out)
	}
	h.artifact(t)
}

func TestRunLogsToFile(t *testing.T) {
	h := newHarness(t, 95)
	h.submitter.err = errors.New("connection refused")
	logPath := filepath.Join(h.dir, "perfdiag.log")
	if err := h.exec("--create-support-case", "--log-level", "warn", "--log-file", logPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	type logEntry struct {
		Msg    string `json:"msg"`
		Caller string `json:"caller"`
		Error  string `json:"error"`
	}
	var entry logEntry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil && e.Msg == "support case submission failed" {
			entry = e
			break
		}
	}
	if entry.Msg == "" {
		t.Fatalf("submission warning not logged:\n%s", data)
	}
	if !strings.HasPrefix(entry.Caller, "cmd/diagnose.go:") || entry.Error != "connection refused" {
		t.Errorf("entry = %+v", entry)
	}
	if strings.Contains(string(data), "report written") {
		t.Error("info entry logged at warn level")
	}
}

func TestSubmitterUnavailable(t *testing.T) {
	h := newHarness(t, 95)
	h.app.newSubmitter = func(context.Context, string, *zap.Logger) (support.Submitter, error) {
		return nil, &model.SubmissionError{Kind: model.SubmissionAuth, Advice: "configure AWS credentials", Err: errors.New("no credentials")}
	}
	if err := h.exec("--create-support-case"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.stdout.String(), "(authentication failed): configure AWS credentials") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestJSONOutput(t *testing.T) {
	h := newHarness(t, 95)
	if err := h.exec("--json"); err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(h.stdout.Bytes(), &doc); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, h.stdout.String())
	}
	if doc["mode"] != "Quick" {
		t.Errorf("mode = %v", doc["mode"])
	}
	if !strings.Contains(h.stderr.String(), "bottleneck(s) found") {
		t.Errorf("status line not on stderr: %q", h.stderr.String())
	}
}

func TestPromTextfile(t *testing.T) {
	h := newHarness(t, 95)
	path := filepath.Join(h.dir, "perfdiag.prom")
	if err := h.exec("--prom-textfile", path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `perfdiag_findings{impact="High"} 1`) {
		t.Errorf("textfile:\n%s", data)
	}
}

func TestConfigOverrides(t *testing.T) {
	h := newHarness(t, 95)
	cfgPath := filepath.Join(h.dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("support:\n  service_code: custom-service\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := h.exec("--config", cfgPath, "--create-support-case"); err != nil {
		t.Fatal(err)
	}
	if h.submitter.got.ServiceCode != "custom-service" {
		t.Errorf("service code = %q", h.submitter.got.ServiceCode)
	}
}
