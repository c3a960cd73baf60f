package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/collector"
	"github.com/ftahirops/perfdiag/config"
	"github.com/ftahirops/perfdiag/engine"
	"github.com/ftahirops/perfdiag/logging"
	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/report"
	"github.com/ftahirops/perfdiag/support"
	"github.com/ftahirops/perfdiag/ui"
)

func (a *app) run(ctx context.Context, cmd *cobra.Command, opts options) error {
	mode, err := validate(opts)
	if err != nil {
		return err
	}
	if err := a.preflight(); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\nRun %s with sudo.\n", err, toolName)
		return ExitCodeError{Code: exitPrivilege}
	}

	cfg, cfgErr := config.Load(opts.configPath)
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Log.File = opts.logFile
	}

	log, err := logging.New(cfg.Log.Level, logging.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logging.SetGlobal(log)
	defer logging.Sync()
	if cfgErr != nil {
		logging.Warn("config file ignored, using defaults", zap.Error(cfgErr))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec, _ := engine.Lookup(mode)
	var progress *ui.Progress
	var observer engine.Observer
	if !opts.noProgress && !opts.jsonOut && a.isTTY() {
		progress = ui.StartProgress(a.stderr, string(mode), spec.Domains)
		observer = progress
	}

	runner := a.buildRunner(cfg, log)
	run, err := runner.Execute(ctx, engine.Options{
		Mode:             mode,
		Parallel:         opts.parallel,
		CollectorTimeout: cfg.Collector.Timeout,
		Bench: collector.BenchConfig{
			Dir:       cfg.Collector.ScratchDir,
			SizeBytes: int64(opts.diskSizeGB) << 30,
		},
		Observer: observer,
		Log:      log,
	})
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	rep := report.Finalize(report.Input{
		RunID:      run.ID,
		Tool:       toolName,
		Version:    Version,
		Mode:       string(run.Mode),
		Identity:   run.Identity,
		Results:    run.Results,
		Findings:   run.Findings,
		Started:    run.Started,
		Ended:      run.Ended,
		Incomplete: run.Incomplete,
	}, opts.outputPath)
	if err := rep.WriteArtifact(); err != nil {
		logging.Error("report not written", zap.String("path", rep.Path()), zap.Error(err))
		return fmt.Errorf("write report: %w", err)
	}
	logging.Info("report written", zap.String("path", rep.Path()), zap.Int("findings", len(rep.Findings())))

	if opts.promFile != "" {
		if err := rep.WriteTextfile(opts.promFile); err != nil {
			logging.Warn("prometheus textfile not written", zap.String("path", opts.promFile), zap.Error(err))
		}
	}

	// Status lines go to stderr when stdout carries JSON.
	status := a.stdout
	if opts.jsonOut {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		status = a.stderr
	} else {
		fmt.Fprintln(a.stdout, ui.Summary(rep))
	}

	switch {
	case rep.Incomplete():
		fmt.Fprintf(status, "Run interrupted: report %s is marked INCOMPLETE.\n", rep.Path())
	case rep.Healthy():
		fmt.Fprintln(status, "Status: healthy")
	case !opts.createCase:
		fmt.Fprintf(status, "Status: %d bottleneck(s) found. Re-run with --create-support-case --severity %s to open a support case.\n",
			len(rep.Findings()), support.SuggestSeverity(rep))
	}

	if support.ShouldSubmit(rep, opts.createCase) {
		a.submit(ctx, status, rep, opts.severity, cfg.Support)
	}
	return nil
}

// submit files the case. Failures are reported as warnings and never change
// the exit status: the report on disk is still the result of the run.
func (a *app) submit(ctx context.Context, out io.Writer, rep *report.Report, severity string, sc config.SupportConfig) {
	c, err := support.Compose(rep, severity, support.Settings{
		ServiceCode:  sc.ServiceCode,
		CategoryCode: sc.CategoryCode,
		Language:     sc.Language,
		IssueType:    sc.IssueType,
	})
	if err != nil {
		fmt.Fprintf(out, "WARNING: support case not created: %v\n", err)
		return
	}
	logging.Debug("support case composed",
		zap.String("subject", c.Subject),
		zap.String("severity", c.Severity),
		zap.Int("attachment_bytes", len(c.Attachment.Data)))
	sub, err := a.newSubmitter(ctx, sc.Region, logging.With(zap.String("component", "support")))
	if err == nil {
		var id string
		id, err = sub.Submit(ctx, c)
		if err == nil {
			fmt.Fprintf(out, "Support case created: %s\n", id)
			return
		}
		if id != "" {
			fmt.Fprintf(out, "Support case created: %s\n", id)
		}
	}

	logging.Warn("support case submission failed", zap.Error(err))
	var se *model.SubmissionError
	if errors.As(err, &se) {
		fmt.Fprintf(out, "WARNING: support case submission failed (%s): %s\n", se.Kind, se.Advice)
	} else {
		fmt.Fprintf(out, "WARNING: support case submission failed: %v\n", err)
	}
	fmt.Fprintf(out, "The report is still available at %s.\n", rep.Path())
}
