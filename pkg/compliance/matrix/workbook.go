package matrix

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetGapAnalysis      = "Gap Analysis"
	SheetComplianceMatrix = "Compliance Matrix"
)

var (
	gapHeader    = []string{"ID", "Domain", "Title", "Priority", "Status", "Actual File"}
	matrixHeader = []string{"Law", "Article", "Requirement", "Related Doc IDs", "Fulfilling Files", "Status"}
)

// WriteWorkbook renders both views as a two-sheet xlsx workbook to w.
func WriteWorkbook(w io.Writer, gaps []GapRow, rows []MatrixRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetGapAnalysis); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetComplianceMatrix); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	gapCells := make([][]any, 0, len(gaps))
	for _, g := range gaps {
		gapCells = append(gapCells, []any{g.ID, g.Domain, g.Title, g.Priority, g.Status, g.ActualFile})
	}
	if err := writeSheet(f, SheetGapAnalysis, gapHeader, gapCells, bold); err != nil {
		return err
	}

	matrixCells := make([][]any, 0, len(rows))
	for _, r := range rows {
		matrixCells = append(matrixCells, []any{
			r.Law, r.Article, r.Requirement,
			strings.Join(r.RelatedDocIDs, ", "),
			strings.Join(r.FulfillingFiles, ", "),
			string(r.Status),
		})
	}
	if err := writeSheet(f, SheetComplianceMatrix, matrixHeader, matrixCells, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	for i, r := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := r
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 24); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1), nil)
}
