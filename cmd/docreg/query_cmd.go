package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Mindburn-Labs/docreg/pkg/compliance/controls"
	"github.com/Mindburn-Labs/docreg/pkg/config"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
	"github.com/Mindburn-Labs/docreg/pkg/contracts/schemas"
	"github.com/Mindburn-Labs/docreg/pkg/inputs"
	"github.com/Mindburn-Labs/docreg/pkg/observability"
	"github.com/Mindburn-Labs/docreg/pkg/pipeline"
)

// runControlsCmd implements `docreg controls`. It reads the control library
// only; --coverage additionally reads the registry.
func runControlsCmd(args []string, stdout, stderr io.Writer) int {
	cmd, configPath := newFlagSet("controls", stderr)
	var (
		frameworks stringList
		category   string
		id         string
		stats      bool
		coverage   bool
	)
	cmd.Var(&frameworks, "framework", "Framework id (repeatable)")
	cmd.StringVar(&category, "category", "", "Control category")
	cmd.StringVar(&id, "id", "", "Show a single control")
	cmd.BoolVar(&stats, "stats", false, "Print per-category and per-framework counts")
	cmd.BoolVar(&coverage, "coverage", false, "Print framework coverage from Approved/Active documents")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(stderr, err)
	}
	observability.SetupLogging(stderr, cfg.LogLevel)

	lib, err := inputs.LoadControls(cfg.Inputs.Controls)
	if err != nil {
		return fail(stderr, err)
	}
	idx, err := controls.NewIndex(*lib)
	if err != nil {
		return fail(stderr, err)
	}

	switch {
	case id != "":
		c, ok := idx.ByID(id)
		if !ok {
			return fail(stderr, fmt.Errorf("control %s not found", id))
		}
		printControl(stdout, c)
	case stats:
		printStats(stdout, idx)
	case coverage:
		ctx := context.Background()
		reg, closeStore, err := pipeline.OpenRegistry(ctx, cfg, false)
		if err != nil {
			return fail(stderr, err)
		}
		defer func() { _ = closeStore() }()
		printCoverage(stdout, idx, controls.ImplementedControls(reg.Documents()), frameworks)
	default:
		printControls(stdout, selectControls(idx, frameworks, category))
	}
	return 0
}

func selectControls(idx *controls.Index, frameworks []string, category string) []contracts.Control {
	switch {
	case len(frameworks) > 0 && category != "":
		return idx.ByFrameworksAndCategory(frameworks, category)
	case category != "":
		return idx.ByCategory(category)
	case len(frameworks) > 0:
		seen := make(map[string]struct{})
		var out []contracts.Control
		for _, fw := range frameworks {
			for _, c := range idx.ByFramework(fw) {
				if _, dup := seen[c.ID]; !dup {
					seen[c.ID] = struct{}{}
					out = append(out, c)
				}
			}
		}
		return out
	default:
		return idx.All()
	}
}

func printControl(w io.Writer, c contracts.Control) {
	fmt.Fprintf(w, "%s  %s\n", c.ID, c.Title)
	fmt.Fprintf(w, "  category: %s\n", c.Category)
	for _, m := range c.Mappings {
		ref := m.ControlID
		if m.ControlCode != "" {
			ref += " (" + m.ControlCode + ")"
		}
		rel := m.Relationship
		if rel == "" {
			rel = "-"
		}
		fmt.Fprintf(w, "  %-12s %-24s %s\n", m.Framework, ref, rel)
	}
}

func printControls(w io.Writer, list []contracts.Control) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tFRAMEWORKS\tTITLE")
	for _, c := range list {
		fws := make([]string, 0, len(c.Mappings))
		for _, m := range c.Mappings {
			fws = append(fws, m.Framework)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Category, strings.Join(fws, ","), c.Title)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d controls\n", len(list))
}

func printStats(w io.Writer, idx *controls.Index) {
	printCounts(w, "Categories", idx.CategoryStats())
	printCounts(w, "Frameworks", idx.FrameworkStats())
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-24s %d\n", k, counts[k])
	}
}

func printCoverage(w io.Writer, idx *controls.Index, implemented map[string]struct{}, only []string) {
	var rows []controls.FrameworkCoverage
	if len(only) == 0 {
		rows = idx.CoverageAll(implemented)
	} else {
		for _, fw := range only {
			rows = append(rows, idx.Coverage(fw, implemented))
		}
	}
	fmt.Fprintln(w, "Framework coverage:")
	for _, c := range rows {
		fmt.Fprintf(w, "  %-16s %d/%d (%.1f%%)\n", c.Framework, c.Implemented, c.Total, c.Percent)
	}
}

// runValidateCmd implements `docreg validate`. Exit code 1 when any
// configured JSON input is missing or fails its schema.
func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd, configPath := newFlagSet("validate", stderr)
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(stderr, err)
	}
	observability.SetupLogging(stderr, cfg.LogLevel)

	results := inputs.Validate(inputs.Paths{
		Universe:     cfg.Inputs.Universe,
		Requirements: cfg.Inputs.Requirements,
		Obligations:  cfg.Inputs.Obligations,
		Controls:     cfg.Inputs.Controls,
	})
	if cfg.Registry.Backend == config.BackendFile {
		results[schemas.KindRegistry] = validateRegistryFile(cfg.Registry.Path)
	}

	failed := 0
	for _, kind := range schemas.Kinds {
		err, checked := results[kind]
		if !checked {
			continue
		}
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(stdout, "  FAIL %-13s %v\n", kind, err)
			continue
		}
		_, _ = fmt.Fprintf(stdout, "  ok   %s\n", kind)
	}
	for _, d := range cfg.Departments {
		if _, err := os.Stat(d.Path); err != nil {
			_, _ = fmt.Fprintf(stdout, "  warn department %s: source %s not found\n", d.Code, d.Path)
		}
	}
	if failed > 0 {
		_, _ = fmt.Fprintf(stderr, "Error: %d input(s) invalid\n", failed)
		return 1
	}
	return 0
}

// validateRegistryFile schema-checks an existing registry file. A registry
// that does not exist yet is valid.
func validateRegistryFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return schemas.Validate(schemas.KindRegistry, data)
}
