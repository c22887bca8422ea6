package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/docreg/pkg/inputs"
	"github.com/Mindburn-Labs/docreg/pkg/pipeline"
)

// runIngestCmd implements `docreg ingest`.
func runIngestCmd(args []string, stdout, stderr io.Writer) int {
	cmd, configPath := newFlagSet("ingest", stderr)
	var (
		replace bool
		depts   stringList
	)
	cmd.BoolVar(&replace, "replace", false, "Replace the documents of every loaded department instead of merging")
	cmd.Var(&depts, "dept", "Department code to ingest (repeatable; default all)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	s, err := openSession(ctx, *configPath, sessionOptions{}, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.close()

	sum, err := s.runner.Ingest(ctx, pipeline.IngestOptions{Replace: replace, Departments: depts})
	if sum != nil {
		sum.WriteText(stdout)
	}
	if err != nil {
		return fail(stderr, err)
	}
	return 0
}

// runLinkCmd implements `docreg link`.
func runLinkCmd(args []string, stdout, stderr io.Writer) int {
	cmd, configPath := newFlagSet("link", stderr)
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	s, err := openSession(ctx, *configPath, sessionOptions{mustExist: true}, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.close()

	b, err := inputs.Load(s.paths(), inputs.Need{Requirements: true, Obligations: true})
	if err != nil {
		return fail(stderr, err)
	}
	sum, err := s.runner.Link(ctx, b)
	if sum != nil {
		sum.WriteText(stdout)
	}
	if err != nil {
		return fail(stderr, err)
	}
	return 0
}

type reportFlags struct {
	out     string
	json    string
	filter  string
	publish bool
}

func (f *reportFlags) options() pipeline.ReportOptions {
	return pipeline.ReportOptions{Out: f.out, JSON: f.json, Filter: f.filter, Publish: f.publish}
}

// withDefaults fills unset report flags from the run profile.
func (f *reportFlags) withDefaults(s *session) {
	if f.out == "" {
		f.out = s.cfg.Report.Out
	}
	if f.json == "" {
		f.json = s.cfg.Report.JSON
	}
	if f.filter == "" {
		f.filter = s.cfg.Report.Filter
	}
}

func bindReportFlags(cmd *flag.FlagSet) *reportFlags {
	f := &reportFlags{}
	cmd.StringVar(&f.out, "out", "", "Workbook output path (default from profile)")
	cmd.StringVar(&f.json, "json", "", "Also write the report as JSON to this path")
	cmd.StringVar(&f.filter, "filter", "", `CEL filter over gap rows, e.g. 'row.status == "Missing"'`)
	cmd.BoolVar(&f.publish, "publish", false, "Publish the outputs to the artifact store (ARTIFACT_STORAGE_TYPE)")
	return f
}

// runReportCmd implements `docreg report`.
func runReportCmd(args []string, stdout, stderr io.Writer) int {
	cmd, configPath := newFlagSet("report", stderr)
	rf := bindReportFlags(cmd)
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	s, err := openSession(ctx, *configPath, sessionOptions{mustExist: true, publish: rf.publish}, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.close()
	rf.withDefaults(s)

	b, err := inputs.Load(s.paths(), inputs.Need{Universe: true, Requirements: true})
	if err != nil {
		return fail(stderr, err)
	}
	sum, err := s.runner.Report(ctx, b, rf.options())
	if sum != nil {
		sum.WriteText(stdout)
	}
	if err != nil {
		return fail(stderr, err)
	}
	return 0
}

// runAllCmd implements `docreg run`: every static input is loaded before the
// registry is touched.
func runAllCmd(args []string, stdout, stderr io.Writer) int {
	cmd, configPath := newFlagSet("run", stderr)
	var (
		replace bool
		depts   stringList
	)
	cmd.BoolVar(&replace, "replace", false, "Replace the documents of every loaded department instead of merging")
	cmd.Var(&depts, "dept", "Department code to ingest (repeatable; default all)")
	rf := bindReportFlags(cmd)
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	s, err := openSession(ctx, *configPath, sessionOptions{publish: rf.publish}, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.close()
	rf.withDefaults(s)

	b, err := inputs.Load(s.paths(), inputs.Need{Universe: true, Requirements: true, Obligations: true})
	if err != nil {
		return fail(stderr, err)
	}
	sum, err := s.runner.Run(ctx, b, pipeline.RunOptions{
		Ingest: pipeline.IngestOptions{Replace: replace, Departments: depts},
		Report: rf.options(),
	})
	sum.WriteText(stdout)
	if err != nil {
		return fail(stderr, err)
	}
	return 0
}

// runExportCmd implements `docreg export-registry`.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd, configPath := newFlagSet("export-registry", stderr)
	out := cmd.String("out", "", "Output path for the canonical registry JSON (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *out == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --out is required")
		return 2
	}

	ctx := context.Background()
	s, err := openSession(ctx, *configPath, sessionOptions{mustExist: true}, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer s.close()

	if err := s.runner.ExportRegistry(*out); err != nil {
		return fail(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "Exported %d documents from %s to %s\n", s.runner.Registry().Len(), s.runner.Registry().Location(), *out)
	return 0
}
