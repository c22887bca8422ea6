package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Mindburn-Labs/docreg/pkg/artifacts"
	"github.com/Mindburn-Labs/docreg/pkg/config"
	"github.com/Mindburn-Labs/docreg/pkg/inputs"
	"github.com/Mindburn-Labs/docreg/pkg/observability"
	"github.com/Mindburn-Labs/docreg/pkg/pipeline"

	_ "github.com/lib/pq" // Postgres Driver
	_ "modernc.org/sqlite"
)

const version = "1.0.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing. Exit codes: 0 success, 1 run failure,
// 2 usage error.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "ingest":
		return runIngestCmd(args[2:], stdout, stderr)
	case "link":
		return runLinkCmd(args[2:], stdout, stderr)
	case "report":
		return runReportCmd(args[2:], stdout, stderr)
	case "run":
		return runAllCmd(args[2:], stdout, stderr)
	case "controls":
		return runControlsCmd(args[2:], stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "export-registry":
		return runExportCmd(args[2:], stdout, stderr)
	case "version":
		_, _ = fmt.Fprintf(stdout, "docreg %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "docreg %s\n", version)
	fmt.Fprintln(w, "Compliance document registry.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  docreg <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "PIPELINE")
	printCommand(w, "ingest", "Merge department baselines into the registry (--replace, --dept)")
	printCommand(w, "link", "Attach regulatory obligations to documents")
	printCommand(w, "report", "Write the gap analysis and compliance matrix (--out, --json, --filter, --publish)")
	printCommand(w, "run", "ingest, link and report in one pass")

	printSection(w, "QUERIES")
	printCommand(w, "controls", "Query the control library (--framework, --category, --id, --stats, --coverage)")

	printSection(w, "UTILITIES")
	printCommand(w, "validate", "Schema-check the configured JSON inputs")
	printCommand(w, "export-registry", "Dump the registry as canonical JSON (--out)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Every command accepts --config <profile.yaml>.")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s:\n", title)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-16s %s\n", name, desc)
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// session is the run context shared by the pipeline commands.
type session struct {
	cfg    *config.Config
	obs    *observability.Provider
	runner *pipeline.Runner
	close  func()
}

type sessionOptions struct {
	mustExist bool
	publish   bool
}

func openSession(ctx context.Context, configPath string, opts sessionOptions, stderr io.Writer) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	observability.SetupLogging(stderr, cfg.LogLevel)

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, err
	}

	reg, closeStore, err := pipeline.OpenRegistry(ctx, cfg, opts.mustExist)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	runnerOpts := []pipeline.Option{}
	if opts.publish {
		store, err := artifacts.NewStoreFromEnv(ctx)
		if err != nil {
			_ = closeStore()
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("artifact store: %w", err)
		}
		runnerOpts = append(runnerOpts, pipeline.WithPublisher(store))
	}
	runner, err := pipeline.NewRunner(cfg, reg, obs, runnerOpts...)
	if err != nil {
		_ = closeStore()
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	return &session{
		cfg:    cfg,
		obs:    obs,
		runner: runner,
		close: func() {
			_ = closeStore()
			_ = obs.Shutdown(context.Background())
		},
	}, nil
}

func (s *session) paths() inputs.Paths {
	return inputs.Paths{
		Universe:     s.cfg.Inputs.Universe,
		Requirements: s.cfg.Inputs.Requirements,
		Obligations:  s.cfg.Inputs.Obligations,
		Controls:     s.cfg.Inputs.Controls,
	}
}

func fail(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(stderr)
	configPath := cmd.String("config", os.Getenv("DOCREG_CONFIG"), "Path to the run profile (YAML)")
	return cmd, configPath
}
