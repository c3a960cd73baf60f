package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/collector"
	"github.com/ftahirops/perfdiag/config"
	"github.com/ftahirops/perfdiag/engine"
	"github.com/ftahirops/perfdiag/model"
	"github.com/ftahirops/perfdiag/support"
	"github.com/ftahirops/perfdiag/ui"
)

// Version is set at build time via ldflags.
var Version = "1.0.0"

const toolName = "perfdiag"

const (
	exitInvalidArgs = 1
	exitPrivilege   = 3
)

// ExitCodeError signals a non-zero exit code without calling os.Exit directly.
type ExitCodeError struct{ Code int }

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

// options are the parsed command-line flags.
type options struct {
	mode        string
	createCase  bool
	severity    string
	outputPath  string
	diskSizeGB  int
	parallel    bool
	jsonOut     bool
	promFile    string
	logLevel    string
	logFile     string
	configPath  string
	noProgress  bool
	showVersion bool
}

// app holds the process-facing dependencies of a run.
type app struct {
	stdout       io.Writer
	stderr       io.Writer
	geteuid      func() int
	isTTY        func() bool
	buildRunner  func(cfg config.Config, log *zap.Logger) *engine.Runner
	newSubmitter func(ctx context.Context, region string, log *zap.Logger) (support.Submitter, error)
}

func newApp() *app {
	return &app{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		geteuid:     os.Geteuid,
		isTTY:       func() bool { return ui.IsTerminal(os.Stderr) },
		buildRunner: defaultRunner,
		newSubmitter: func(ctx context.Context, region string, log *zap.Logger) (support.Submitter, error) {
			return support.NewAWSSubmitter(ctx, region, log)
		},
	}
}

func defaultRunner(cfg config.Config, log *zap.Logger) *engine.Runner {
	var cloud collector.CloudProber
	if !cfg.Metadata.Disabled {
		cloud = collector.NewIMDSProber(cfg.Metadata.Timeout)
	}
	reg := collector.NewRegistry(collector.Options{Cloud: cloud, SMART: collector.ScanSMART})
	sampler := collector.NewSampler(collector.DefaultCatalog(), log)
	return engine.NewRunner(reg, sampler, nil)
}

// Run parses flags and runs one diagnostic.
func Run() error {
	return newApp().execute(context.Background(), os.Args[1:])
}

func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exit ExitCodeError
	if errors.As(err, &exit) {
		return exit
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return ExitCodeError{Code: exitInvalidArgs}
}

func (a *app) rootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   toolName,
		Short: "Point-in-time performance diagnostic for Linux servers",
		Long: `perfdiag samples CPU, memory, disk, network, database and storage counters
over a short window, classifies them against fixed thresholds and writes a
report grouped by impact. Findings can be filed as an AWS Support case.

Modes:
  Quick       SystemInfo, CPU, Memory, Disk (1s x 3)
  Standard    Quick + Network, Database (3s x 5)
  Deep        Standard + Storage, DiskBenchmark (5s x 10)
  DiskOnly    SystemInfo, Disk, Storage, DiskBenchmark (3s x 5)
  CPUOnly     SystemInfo, CPU (3s x 5)
  MemoryOnly  SystemInfo, Memory (3s x 5)`,
		Example: `  sudo perfdiag
  sudo perfdiag --mode Deep --disk-test-size-gb 5 --output-path /var/tmp
  sudo perfdiag --create-support-case --severity high
  sudo perfdiag --mode Quick --json | jq '.findings_by_impact'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.showVersion {
				fmt.Fprintf(a.stdout, "%s v%s\n", toolName, Version)
				return nil
			}
			return a.run(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", string(engine.ModeStandard), "Diagnostic mode: "+modeNames())
	f.BoolVar(&opts.createCase, "create-support-case", false, "File an AWS Support case when bottlenecks are found")
	f.StringVar(&opts.severity, "severity", "normal", "Support case severity: "+strings.Join(support.Severities, ", "))
	f.StringVar(&opts.outputPath, "output-path", ".", "Directory for the report file")
	f.IntVar(&opts.diskSizeGB, "disk-test-size-gb", collector.DefaultScratchGB, "Benchmark scratch file size in GB: "+sizeNames())
	f.BoolVar(&opts.parallel, "parallel", false, "Run independent collectors concurrently")
	f.BoolVar(&opts.jsonOut, "json", false, "Print the report as JSON to stdout")
	f.StringVar(&opts.promFile, "prom-textfile", "", "Also write metrics in node-exporter textfile format to PATH")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config: info)")
	f.StringVar(&opts.logFile, "log-file", "", "Write JSON logs to a rotating file")
	f.StringVar(&opts.configPath, "config", config.Path(), "Config file")
	f.BoolVar(&opts.noProgress, "no-progress", false, "Disable the live progress view")
	f.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	return cmd
}

func modeNames() string {
	var names []string
	for _, m := range engine.Modes() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func sizeNames() string {
	var names []string
	for _, n := range collector.ValidScratchSizesGB {
		names = append(names, strconv.Itoa(n))
	}
	return strings.Join(names, ", ")
}

// validate checks flags that no run could use.
func validate(opts options) (engine.Mode, error) {
	mode, err := engine.ParseMode(opts.mode)
	if err != nil {
		return "", err
	}
	if !support.ValidSeverity(opts.severity) {
		return "", fmt.Errorf("invalid severity %q (want one of %s)", opts.severity, strings.Join(support.Severities, ", "))
	}
	if !slices.Contains(collector.ValidScratchSizesGB, opts.diskSizeGB) {
		return "", fmt.Errorf("invalid disk test size %d GB (want one of %s)", opts.diskSizeGB, sizeNames())
	}
	switch opts.logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return "", fmt.Errorf("invalid log level %q", opts.logLevel)
	}
	st, err := os.Stat(opts.outputPath)
	if err != nil {
		return "", fmt.Errorf("output path: %w", err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("output path %s is not a directory", opts.outputPath)
	}
	return mode, nil
}

// preflight fails before any collection when the process is not root.
func (a *app) preflight() error {
	if euid := a.geteuid(); euid != 0 {
		return &model.PrivilegeError{Euid: euid}
	}
	return nil
}
