package matrix

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Mindburn-Labs/docreg/pkg/compliance/matching"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

func fixture() ([]contracts.RequiredDocument, []contracts.Document, []contracts.Law) {
	register := []contracts.RequiredDocument{
		{Domain: "Data", DocID: "R1", Title: "Data Retention Policy", Priority: "High"},
		{Domain: "Data", DocID: "R2", Title: "Business Continuity Plan", Priority: "Medium"},
		{Domain: "Access", DocID: "R3", Title: "Access Control Policy", Priority: "High"},
	}
	docs := []contracts.Document{
		{ID: "D1", Title: "Enterprise Data Retention Policy", Status: contracts.StatusApproved, Filename: "X.docx"},
		{ID: "D3", Title: "Access Control Policy"},
	}
	laws := []contracts.Law{
		{Title: "PDPL", Articles: []contracts.Article{
			{Article: "12", Text: "Retain data no longer than needed", RelatedDocIDs: []string{"R1", "R1"}},
			{Article: "13", Text: "Plan for continuity", RelatedDocIDs: []string{"R2"}},
			{Article: "14", Text: "Article with no references", RelatedDocIDs: []string{}},
			{Article: "15", Text: "Access", RelatedDocIDs: []string{"R3"}},
		}},
	}
	return register, docs, laws
}

func TestBuildGapAnalysis(t *testing.T) {
	register, docs, _ := fixture()
	links := matching.LinkRequirementsToDocuments(register, docs)

	gaps := BuildGapAnalysis(register, links)
	require.Len(t, gaps, 3)

	require.Equal(t, "Approved", gaps[0].Status, "superset title containment resolves the requirement")
	require.Equal(t, "X.docx", gaps[0].ActualFile)
	require.True(t, gaps[0].Matched())

	require.Equal(t, "Missing", gaps[1].Status)
	require.Empty(t, gaps[1].ActualFile)
	require.False(t, gaps[1].Matched())

	require.Equal(t, "Draft", gaps[2].Status, "a matched document without status reads as Draft")
	require.Equal(t, "Access", gaps[2].Domain)
}

func TestBuildGapAnalysis_SharedDocIDAcrossDomains(t *testing.T) {
	register := []contracts.RequiredDocument{
		{Domain: "HR", DocID: "D1", Title: "Leave Policy"},
		{Domain: "IT", DocID: "D1", Title: "Backup Procedure"},
	}
	docs := []contracts.Document{{ID: "HR-POL-001", Title: "Leave Policy", Status: contracts.StatusApproved, Filename: "leave.docx"}}

	gaps := BuildGapAnalysis(register, matching.LinkRequirementsToDocuments(register, docs))
	require.Len(t, gaps, 2)
	require.Equal(t, "Approved", gaps[0].Status)
	require.Equal(t, "leave.docx", gaps[0].ActualFile)
	require.Equal(t, "Missing", gaps[1].Status, "each domain matches against its own title")
	require.Empty(t, gaps[1].ActualFile)
	require.False(t, gaps[1].Matched())
}

func TestBuildComplianceMatrix(t *testing.T) {
	register, docs, laws := fixture()
	links := matching.LinkRequirementsToDocuments(register, docs)

	rows := BuildComplianceMatrix(laws, links)
	require.Len(t, rows, 4)

	require.Equal(t, StatusImplemented, rows[0].Status)
	require.Equal(t, []string{"X.docx"}, rows[0].FulfillingFiles)
	require.Equal(t, []string{"R1", "R1"}, rows[0].RelatedDocIDs)

	require.Equal(t, StatusGap, rows[1].Status, "unresolved requirement")
	require.Equal(t, StatusGap, rows[2].Status, "no related ids")
	require.Empty(t, rows[2].FulfillingFiles)
	require.Equal(t, StatusGap, rows[3].Status, "resolved document without a filename is not evidence")
}

func TestSummarize(t *testing.T) {
	register, docs, laws := fixture()
	links := matching.LinkRequirementsToDocuments(register, docs)

	s := Summarize(BuildGapAnalysis(register, links), BuildComplianceMatrix(laws, links))
	require.Equal(t, 3, s.Requirements)
	require.Equal(t, 2, s.Matched)
	require.Equal(t, 1, s.Missing)
	require.InDelta(t, 66.7, s.Coverage, 0.001)
	require.Equal(t, map[string]int{"Approved": 1, "Missing": 1, "Draft": 1}, s.ByStatus)
	require.Equal(t, []DomainSummary{
		{Domain: "Access", Total: 1, Matched: 1, Coverage: 100},
		{Domain: "Data", Total: 2, Matched: 1, Coverage: 50},
	}, s.ByDomain)
	require.Equal(t, 4, s.Articles)
	require.Equal(t, 1, s.Implemented)
	require.Equal(t, 3, s.Gaps)

	empty := Summarize(nil, nil)
	require.Zero(t, empty.Coverage)
}

func TestFilter(t *testing.T) {
	register, docs, _ := fixture()
	gaps := BuildGapAnalysis(register, matching.LinkRequirementsToDocuments(register, docs))

	tests := []struct {
		expr string
		want []string
	}{
		{`row.status == "Missing"`, []string{"R2"}},
		{`row.priority == "High" && row.matched`, []string{"R1", "R3"}},
		{`row.domain.startsWith("Acc")`, []string{"R3"}},
		{`row.matched`, []string{"R1", "R3"}},
	}
	for _, tt := range tests {
		f, err := NewFilter(tt.expr)
		require.NoError(t, err, tt.expr)
		got, err := f.Apply(gaps)
		require.NoError(t, err, tt.expr)
		ids := make([]string, 0, len(got))
		for _, g := range got {
			ids = append(ids, g.ID)
		}
		require.Equal(t, tt.want, ids, tt.expr)
	}

	_, err := NewFilter(`row.status ==`)
	require.Error(t, err)
	_, err = NewFilter(`"not a bool"`)
	require.Error(t, err)

	f, err := NewFilter(`row.title`)
	require.NoError(t, err, "dyn expressions are checked at evaluation")
	_, err = f.Apply(gaps)
	require.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	register, docs, laws := fixture()
	links := matching.LinkRequirementsToDocuments(register, docs)

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, BuildGapAnalysis(register, links), BuildComplianceMatrix(laws, links)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, []string{SheetGapAnalysis, SheetComplianceMatrix}, f.GetSheetList())

	gapRows, err := f.GetRows(SheetGapAnalysis)
	require.NoError(t, err)
	require.Len(t, gapRows, 4)
	require.Equal(t, gapHeader, gapRows[0])
	require.Equal(t, []string{"R1", "Data", "Data Retention Policy", "High", "Approved", "X.docx"}, gapRows[1])

	matrixRows, err := f.GetRows(SheetComplianceMatrix)
	require.NoError(t, err)
	require.Len(t, matrixRows, 5)
	require.Equal(t, "R1, R1", matrixRows[1][3])
	require.Equal(t, "Implemented", matrixRows[1][5])
}

func TestReport_WriteJSON(t *testing.T) {
	register, docs, laws := fixture()
	links := matching.LinkRequirementsToDocuments(register, docs)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	r := NewReport("run-7", at, BuildGapAnalysis(register, links), BuildComplianceMatrix(laws, links))
	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "run-7", decoded["runId"])
	require.Len(t, decoded["gapAnalysis"], 3)
	require.Len(t, decoded["complianceMatrix"], 4)

	empty := NewReport("", at, nil, nil)
	buf.Reset()
	require.NoError(t, empty.WriteJSON(&buf))
	require.Contains(t, buf.String(), `"gapAnalysis": []`)
}
