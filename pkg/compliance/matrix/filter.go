package matrix

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Filter selects gap rows with a CEL boolean expression over the variable
// `row`, e.g. `row.status == "Missing" && row.priority == "High"`.
type Filter struct {
	expr string
	prg  cel.Program
}

// NewFilter compiles expr. The expression must evaluate to a bool; dyn
// expressions are checked per row.
func NewFilter(expr string) (*Filter, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("filter %q must return bool, got %s", expr, t)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Match evaluates the filter against one row.
func (f *Filter) Match(row GapRow) (bool, error) {
	val, _, err := f.prg.Eval(map[string]any{"row": rowInput(row)})
	if err != nil {
		return false, fmt.Errorf("evaluate filter on %s: %w", row.ID, err)
	}
	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter on %s returned %T", row.ID, val.Value())
	}
	return b, nil
}

// Apply returns the rows the filter matches, preserving order.
func (f *Filter) Apply(rows []GapRow) ([]GapRow, error) {
	out := make([]GapRow, 0, len(rows))
	for _, r := range rows {
		ok, err := f.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func rowInput(r GapRow) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"domain":     r.Domain,
		"title":      r.Title,
		"priority":   r.Priority,
		"status":     r.Status,
		"actualFile": r.ActualFile,
		"documentId": r.DocumentID,
		"matched":    r.Matched(),
	}
}
