// Package pipeline runs the docreg stages over one registry: ingest the
// department baselines, link obligations and derive the compliance report.
//
// A Runner carries the run context explicitly (configuration, registry,
// adapter, telemetry) so stages can be composed by the CLI or by tests
// without package state. Static inputs are loaded once by the caller and
// passed in as an inputs.Bundle.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/docreg/pkg/artifacts"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/ingest"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/matching"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/matrix"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/normalize"
	"github.com/Mindburn-Labs/docreg/pkg/compliance/obligations"
	"github.com/Mindburn-Labs/docreg/pkg/config"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
	"github.com/Mindburn-Labs/docreg/pkg/inputs"
	"github.com/Mindburn-Labs/docreg/pkg/observability"
	"github.com/Mindburn-Labs/docreg/pkg/registry"
)

// ErrUnknownDepartment is returned when a requested department code is not
// configured.
var ErrUnknownDepartment = errors.New("unknown department")

// ErrNoPublisher is returned when publication is requested without a store.
var ErrNoPublisher = errors.New("no artifact store configured")

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Runner executes pipeline stages against one registry.
type Runner struct {
	cfg       *config.Config
	reg       *registry.Registry
	obs       *observability.Provider
	adapter   *ingest.Adapter
	publisher artifacts.Store
	clock     func() time.Time
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithAdapter replaces the default spreadsheet adapter.
func WithAdapter(a *ingest.Adapter) Option {
	return func(r *Runner) { r.adapter = a }
}

// WithPublisher sets the store reports are published to.
func WithPublisher(s artifacts.Store) Option {
	return func(r *Runner) { r.publisher = s }
}

// WithClock sets the clock used for report timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) { r.clock = clock }
}

// NewRunner creates a runner. obs may be nil, in which case a no-op
// provider is created.
func NewRunner(cfg *config.Config, reg *registry.Registry, obs *observability.Provider, opts ...Option) (*Runner, error) {
	if obs == nil {
		var err error
		if obs, err = observability.New(context.Background(), observability.DefaultConfig()); err != nil {
			return nil, err
		}
	}
	r := &Runner{
		cfg:     cfg,
		reg:     reg,
		obs:     obs,
		adapter: ingest.NewAdapter(),
		clock:   time.Now,
		logger:  slog.Default().With("component", "pipeline"),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// RunID identifies this run in provenance and published artifact keys.
func (r *Runner) RunID() string { return r.adapter.RunID }

// Registry returns the registry the runner works on.
func (r *Runner) Registry() *registry.Registry { return r.reg }

// IngestOptions selects what Ingest reads and how it merges.
type IngestOptions struct {
	// Replace drops the existing documents of every loaded department
	// before inserting the new rows.
	Replace bool
	// Departments restricts the run to these codes; empty means all.
	Departments []string
}

// Ingest loads every selected department and merges the documents into the
// registry. A missing department source is reported and skipped; any other
// read error aborts before the registry is touched.
func (r *Runner) Ingest(ctx context.Context, opts IngestOptions) (_ *IngestSummary, err error) {
	ctx, done := r.obs.TrackStage(ctx, "ingest", attribute.Bool("replace", opts.Replace))
	defer func() { done(err) }()

	sources, err := r.departments(opts.Departments)
	if err != nil {
		return nil, err
	}

	sum := &IngestSummary{Replace: opts.Replace}
	prior := normalize.Fingerprints(r.reg.Documents())

	var (
		results []ingest.Result
		loaded  []string
		all     []contracts.Document
	)
	for _, src := range sources {
		res, err := r.adapter.LoadDepartment(ctx, src)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
		if !res.Missing {
			loaded = append(loaded, res.Department)
			all = append(all, res.Docs...)
		}
		r.obs.RecordDropped(ctx, res.Department, res.Stats.Dropped)
	}

	var merge registry.MergeResult
	if opts.Replace {
		var rep registry.ReplaceResult
		rep, err = r.reg.ReplaceDepartment(ctx, loaded, all)
		sum.Removed = rep.Removed
		merge = rep.MergeResult
	} else {
		merge, err = r.reg.Merge(ctx, all)
	}
	sum.fill(results, merge)
	if err != nil {
		return sum, err
	}

	for _, d := range sum.Departments {
		r.obs.RecordDocuments(ctx, d.Code, d.Added, d.Skipped)
	}
	sum.Changes = normalize.DetectChanges("ingest:"+r.RunID(), prior, normalize.Fingerprints(r.reg.Documents()))
	sum.Total = r.reg.Len()

	r.logger.Info("ingest complete",
		"departments", len(sources),
		"documents", len(all),
		"added", sum.Added,
		"skipped", sum.Skipped,
		"removed", sum.Removed,
	)
	return sum, nil
}

func (r *Runner) departments(codes []string) ([]ingest.DepartmentSource, error) {
	selected := r.cfg.Departments
	if len(codes) > 0 {
		selected = make([]config.Department, 0, len(codes))
		for _, code := range codes {
			d, ok := r.cfg.Department(code)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownDepartment, code)
			}
			selected = append(selected, d)
		}
	}
	out := make([]ingest.DepartmentSource, 0, len(selected))
	for _, d := range selected {
		out = append(out, ingest.DepartmentSource{
			Code:    d.Code,
			Path:    d.Path,
			Sheets:  d.Sheets,
			Folder:  d.Folder,
			Headers: d.Headers,
		})
	}
	return out, nil
}

// Link resolves the obligations of b against the registry and attaches the
// new links. Running it twice attaches nothing the second time.
func (r *Runner) Link(ctx context.Context, b *inputs.Bundle) (_ *LinkSummary, err error) {
	ctx, done := r.obs.TrackStage(ctx, "link")
	defer func() { done(err) }()

	docs := r.reg.Documents()
	titleLinks := matching.LinkRequirementsToDocuments(b.Requirements, docs)
	plan := obligations.Plan(b.Obligations, docs, &titleLinks)

	sum := &LinkSummary{
		Obligations: len(b.Obligations),
		Linked:      plan.Linked,
		Planned:     plan.NewLinks,
		Unresolved:  plan.Unresolved,
		Resolved:    plan.Resolved,
	}
	sum.Applied, err = r.reg.ApplyLinks(ctx, plan.Links)
	if err != nil {
		return sum, err
	}
	r.obs.RecordLinks(ctx, sum.Applied)
	for _, u := range plan.Unresolved {
		r.logger.Debug("unresolved artifact", "obligation", u.ObligationID, "artifact", u.Artifact)
	}
	r.logger.Info("obligations linked", "obligations", sum.Obligations, "linked", sum.Linked, "new", sum.Applied, "unresolved", len(sum.Unresolved))
	return sum, nil
}

// ReportOptions controls where the derived views go.
type ReportOptions struct {
	Out     string // workbook path
	JSON    string // optional JSON report path
	Filter  string // optional CEL expression over gap rows
	Publish bool   // also upload the outputs to the artifact store
}

// Report derives the gap analysis and the compliance matrix from the
// current registry and writes them out.
func (r *Runner) Report(ctx context.Context, b *inputs.Bundle, opts ReportOptions) (*ReportSummary, error) {
	filter, err := r.checkReport(opts)
	if err != nil {
		return nil, err
	}
	return r.report(ctx, b, opts, filter)
}

// checkReport validates opts and compiles the filter. It touches nothing,
// so Run calls it before the first registry write.
func (r *Runner) checkReport(opts ReportOptions) (*matrix.Filter, error) {
	if opts.Out == "" {
		return nil, errors.New("report: output path is required")
	}
	if opts.Publish && r.publisher == nil {
		return nil, ErrNoPublisher
	}
	if opts.Filter == "" {
		return nil, nil
	}
	return matrix.NewFilter(opts.Filter)
}

func (r *Runner) report(ctx context.Context, b *inputs.Bundle, opts ReportOptions, filter *matrix.Filter) (_ *ReportSummary, err error) {
	ctx, done := r.obs.TrackStage(ctx, "report")
	defer func() { done(err) }()

	links := matching.LinkRequirementsToDocuments(b.Requirements, r.reg.Documents())
	gaps := matrix.BuildGapAnalysis(b.Requirements, links)
	rows := matrix.BuildComplianceMatrix(b.Laws, links)

	if filter != nil {
		if gaps, err = filter.Apply(gaps); err != nil {
			return nil, err
		}
	}

	report := matrix.NewReport(r.RunID(), r.clock(), gaps, rows)
	report.Filter = opts.Filter

	var wb bytes.Buffer
	if err := matrix.WriteWorkbook(&wb, report.GapAnalysis, report.Matrix); err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	if err := writeOutput(opts.Out, wb.Bytes()); err != nil {
		return nil, err
	}
	sum := &ReportSummary{Out: opts.Out, Summary: report.Summary}

	var js bytes.Buffer
	if opts.JSON != "" {
		if err := report.WriteJSON(&js); err != nil {
			return nil, fmt.Errorf("render json report: %w", err)
		}
		if err := writeOutput(opts.JSON, js.Bytes()); err != nil {
			return nil, err
		}
		sum.JSON = opts.JSON
	}

	if opts.Publish {
		ref, err := r.publisher.Put(ctx, artifacts.ReportKey(r.RunID(), opts.Out), wb.Bytes(), xlsxContentType)
		if err != nil {
			return sum, fmt.Errorf("publish workbook: %w", err)
		}
		sum.Published = append(sum.Published, ref)
		if opts.JSON != "" {
			ref, err := r.publisher.Put(ctx, artifacts.ReportKey(r.RunID(), opts.JSON), js.Bytes(), "application/json")
			if err != nil {
				return sum, fmt.Errorf("publish json report: %w", err)
			}
			sum.Published = append(sum.Published, ref)
		}
	}

	r.obs.RecordGaps(ctx, report.Summary.Missing)
	r.logger.Info("report written",
		"out", opts.Out,
		"requirements", report.Summary.Requirements,
		"missing", report.Summary.Missing,
		"articles", report.Summary.Articles,
		"gaps", report.Summary.Gaps,
	)
	return sum, nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output dir for %s: %w", path, err)
	}
	//nolint:gosec // G306: reports are meant to be shared
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RunOptions combines the options of a full run.
type RunOptions struct {
	Ingest IngestOptions
	Report ReportOptions
}

// Run executes ingest, link and report in order. The caller loads b before
// calling and the report options are checked up front, so a missing static
// input or a bad filter fails before anything is written.
func (r *Runner) Run(ctx context.Context, b *inputs.Bundle, opts RunOptions) (*RunSummary, error) {
	sum := &RunSummary{RunID: r.RunID()}
	filter, err := r.checkReport(opts.Report)
	if err != nil {
		return sum, err
	}
	if sum.Ingest, err = r.Ingest(ctx, opts.Ingest); err != nil {
		return sum, err
	}
	if sum.Link, err = r.Link(ctx, b); err != nil {
		return sum, err
	}
	if sum.Report, err = r.report(ctx, b, opts.Report, filter); err != nil {
		return sum, err
	}
	return sum, nil
}

// ExportRegistry writes the current registry snapshot as canonical JSON to
// path.
func (r *Runner) ExportRegistry(path string) error {
	data, err := registry.Encode(r.reg.Snapshot())
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	return writeOutput(path, data)
}
