package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

func writeWorkbook(t *testing.T, dir, name string, sheets map[string][][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := true
	for sheet, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", sheet))
			first = false
		} else {
			_, err := f.NewSheet(sheet)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cellRef, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(sheet, cellRef, &r))
		}
	}
	p := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(p))
	return p
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func fixedAdapter() *Adapter {
	a := NewAdapter()
	a.RunID = "run-1"
	a.Now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return a
}

func TestReadTable_CSV(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "risk.csv", "\ufeffDocument ID,Title\n\n RISK-POL-001 ,Risk Policy\n,,\nRISK-PRO-002,Risk Procedure\n")

	tbl, err := ReadTable(p, nil)
	require.NoError(t, err)
	require.Equal(t, "risk", tbl.Sheet)
	require.Equal(t, []string{"Document ID", "Title"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	require.Equal(t, "RISK-POL-001", cell(tbl.Rows[0], 0))
	require.Equal(t, "", cell(tbl.Rows[0], 7))
}

func TestReadTable_WorkbookSheetSelection(t *testing.T) {
	dir := t.TempDir()
	p := writeWorkbook(t, dir, "hr.xlsx", map[string][][]any{
		"Cover":    {{"HR baseline"}},
		"Baseline": {{"Document ID", "Title"}, {"HR-POL-001", "Leave Policy"}},
	})

	tbl, err := ReadTable(p, []string{"missing", "baseline"})
	require.NoError(t, err)
	require.Equal(t, "Baseline", tbl.Sheet)
	require.Len(t, tbl.Rows, 1)
}

func TestReadTable_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadTable(filepath.Join(dir, "nope.xlsx"), nil)
	require.ErrorIs(t, err, ErrSourceMissing)
	require.ErrorIs(t, err, fs.ErrNotExist)

	p := writeFile(t, dir, "notes.txt", "hello")
	_, err = ReadTable(p, nil)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	bad := writeFile(t, dir, "broken.xlsx", "not a zip")
	_, err = ReadTable(bad, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrSourceMissing))
}

func TestHeaderIndex_BilingualAndOverrides(t *testing.T) {
	h := NewHeaderIndex([]string{"Document ID / رقم الوثيقة", "عنوان الوثيقة", "  STATUS: ", "Status"})
	require.Equal(t, 0, h.Resolve([]string{"رقم الوثيقة"}))
	require.Equal(t, 0, h.Resolve([]string{"document id"}))
	require.Equal(t, 1, h.Resolve(DefaultDocumentProfile().Fields[FieldTitle]))
	require.Equal(t, 2, h.Resolve([]string{"Status"}), "leftmost column wins")
	require.Equal(t, -1, h.Resolve([]string{"Owner"}))

	p := DefaultDocumentProfile().WithOverrides(map[string][]string{FieldTitle: {"Doc Label"}})
	require.Equal(t, "Doc Label", p.Fields[FieldTitle][0])
	require.NotEqual(t, "Doc Label", DefaultDocumentProfile().Fields[FieldTitle][0])
}

func TestAdapter_DocumentsDefaults(t *testing.T) {
	tbl := &Table{
		Source: "risk.xlsx",
		Sheet:  "Baseline",
		Header: []string{"Document ID", "Title", "Status", "Path", "Last Updated", "Frameworks"},
		Rows: [][]string{
			{"RISK-POL-001", "Risk Policy", "Approved (reviewed)", `Policies\Risk Policy.docx`, "44927", "ISO27001; NCA-ECC, ISO27001"},
			{"RISK-PRO-002", "", "", "", "2024-03-05"},
			{"", "Orphan row", "Draft"},
			{"RISK-UNK-003", "Register of risks", "archived"},
		},
	}

	docs, stats := fixedAdapter().Documents(tbl, "RISK", "01_Risk")
	require.Equal(t, Stats{Rows: 4, Dropped: 1}, stats)
	require.Len(t, docs, 3)

	d := docs[0]
	require.Equal(t, contracts.TypePolicy, d.Type)
	require.Equal(t, contracts.StatusApproved, d.Status)
	require.Equal(t, "Risk Policy.docx", d.Filename)
	require.Equal(t, "Policies", d.Folder)
	require.Equal(t, "2023-01-01", d.LastUpdated)
	require.Equal(t, []string{"ISO27001", "NCA-ECC"}, d.Frameworks)
	require.Equal(t, "RISK", d.Department)
	require.Equal(t, "risk.xlsx#Baseline", d.Provenance.Source)
	require.Equal(t, "run-1", d.Provenance.RunID)

	d = docs[1]
	require.Equal(t, "Untitled", d.Title)
	require.Equal(t, contracts.StatusMissing, d.Status)
	require.Equal(t, contracts.TypeProcedure, d.Type)
	require.Equal(t, "", d.Filename)
	require.Equal(t, "01_Risk", d.Folder)
	require.Equal(t, "2024-03-05", d.LastUpdated)

	require.Equal(t, contracts.StatusArchived, docs[2].Status)
	require.Equal(t, contracts.TypeDoc, docs[2].Type, "type comes from the id when no type column exists")
}

func TestAdapter_ExplicitTypeColumn(t *testing.T) {
	tbl := &Table{
		Header: []string{"ID", "Type"},
		Rows:   [][]string{{"OPS-POL-001", "Standard Operating Procedure (SOP)"}},
	}
	docs, _ := fixedAdapter().Documents(tbl, "OPS", "")
	require.Equal(t, contracts.TypeProcedure, docs[0].Type)
}

func TestAdapter_NoStatusColumn(t *testing.T) {
	tbl := &Table{Header: []string{"ID"}, Rows: [][]string{{"A-1"}}}
	docs, _ := fixedAdapter().Documents(tbl, "A", "")
	require.Equal(t, contracts.StatusMissing, docs[0].Status)
	require.Equal(t, "Untitled", docs[0].Title)
}

func TestAdapter_RequiredDocuments(t *testing.T) {
	tbl := &Table{
		Header: []string{"Doc ID", "Required Document", "Domain", "Priority"},
		Rows: [][]string{
			{"R1", "Data Retention Policy", "Data", "High"},
			{"R1", "Duplicate", "Data", "Low"},
			{"R1", "Same id other domain", "Risk", "Low"},
			{"", "no id", "Data", ""},
			{"R2", "Access Control Policy", "", "Medium"},
		},
	}
	reqs, stats := fixedAdapter().RequiredDocuments(tbl, "General")
	require.Equal(t, Stats{Rows: 5, Dropped: 2}, stats)
	require.Len(t, reqs, 3)
	require.Equal(t, "Data Retention Policy", reqs[0].Title)
	require.Equal(t, "Risk", reqs[1].Domain)
	require.Equal(t, "General", reqs[2].Domain)
}

func TestLoadDepartment(t *testing.T) {
	dir := t.TempDir()
	p := writeWorkbook(t, dir, "legal.xlsx", map[string][][]any{
		"Docs": {
			{"Ref / المرجع", "Doc Label", "Status"},
			{"LEG-POL-001", "Contract Policy", "Under Review"},
		},
	})
	a := fixedAdapter()

	res, err := a.LoadDepartment(context.Background(), DepartmentSource{
		Code:    "LEGAL",
		Path:    p,
		Headers: map[string][]string{FieldTitle: {"Doc Label"}},
	})
	require.NoError(t, err)
	require.False(t, res.Missing)
	require.Equal(t, "Docs", res.Sheet)
	require.Len(t, res.Docs, 1)
	require.Equal(t, "Contract Policy", res.Docs[0].Title)
	require.Equal(t, contracts.StatusUnderReview, res.Docs[0].Status)

	res, err = a.LoadDepartment(context.Background(), DepartmentSource{Code: "HR", Path: filepath.Join(dir, "hr.xlsx")})
	require.NoError(t, err, "a missing source never aborts the run")
	require.True(t, res.Missing)
	require.Empty(t, res.Docs)

	bad := writeFile(t, dir, "ops.xlsx", "garbage")
	_, err = a.LoadDepartment(context.Background(), DepartmentSource{Code: "OPS", Path: bad})
	require.Error(t, err)
	require.Contains(t, err.Error(), "department OPS")
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"":                    "",
		"2024-03-05":          "2024-03-05",
		"2024-03-05 10:11:12": "2024-03-05",
		"05/03/2024":          "2024-03-05",
		"44927":               "2023-01-01",
		"Q3 2024":             "Q3 2024",
	}
	for in, want := range tests {
		require.Equal(t, want, normalizeDate(in), "input %q", in)
	}
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"A", "B", "C"}, splitList("A, B;C\nA|"))
	require.Nil(t, splitList("  "))
}
