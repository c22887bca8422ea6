package normalize

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want contracts.Status
	}{
		{"APPROVED", contracts.StatusApproved},
		{"Approved (reviewed)", contracts.StatusApproved},
		{"approved", contracts.StatusApproved},
		{"Under Review", contracts.StatusUnderReview},
		{"pending REVIEW by legal", contracts.StatusUnderReview},
		{"Draft v2", contracts.StatusDraft},
		{"review of draft", contracts.StatusUnderReview},
		{"", contracts.StatusDraft},
		{"??", contracts.StatusDraft},
		{"Active", contracts.StatusDraft},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeStatus(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in   string
		want contracts.DocType
	}{
		{"X-POL-003", contracts.TypePolicy},
		{"X-PRO-003", contracts.TypeProcedure},
		{"X-UNK-003", contracts.TypeDoc},
		{"Information Security Policy", contracts.TypePolicy},
		{"Policies", contracts.TypePolicy},
		{"Procedure", contracts.TypeProcedure},
		{"Policy and Procedure", contracts.TypePolicy},
		{"SOP", contracts.TypeSOP},
		{"HR-SOP-12", contracts.TypeSOP},
		{"Template", contracts.TypeTemplate},
		{"FIN-TPL-01", contracts.TypeTemplate},
		{"Risk Register", contracts.TypeRegister},
		{"OPS-REG-9", contracts.TypeRegister},
		{"Approval Log", contracts.TypeDoc},
		{"", contracts.TypeDoc},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeType(tt.in), "input %q", tt.in)
	}
}

func TestCanonicalStatus(t *testing.T) {
	s, ok := CanonicalStatus(" under review ")
	require.True(t, ok)
	require.Equal(t, contracts.StatusUnderReview, s)

	s, ok = CanonicalStatus("ARCHIVED")
	require.True(t, ok)
	require.Equal(t, contracts.StatusArchived, s)

	_, ok = CanonicalStatus("Approved (reviewed)")
	require.False(t, ok)
}

func TestNormalizers_TotalProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	validStatus := map[contracts.Status]bool{
		contracts.StatusApproved: true, contracts.StatusUnderReview: true, contracts.StatusDraft: true,
	}
	validType := map[contracts.DocType]bool{
		contracts.TypePolicy: true, contracts.TypeProcedure: true, contracts.TypeSOP: true,
		contracts.TypeTemplate: true, contracts.TypeRegister: true, contracts.TypeDoc: true,
	}

	properties.Property("NormalizeStatus always returns a vocabulary value", prop.ForAll(
		func(s string) bool { return validStatus[NormalizeStatus(s)] },
		gen.AnyString(),
	))
	properties.Property("NormalizeType always returns a vocabulary value", prop.ForAll(
		func(s string) bool { return validType[NormalizeType(s)] },
		gen.AnyString(),
	))
	properties.Property("NormalizeStatus is deterministic", prop.ForAll(
		func(s string) bool { return NormalizeStatus(s) == NormalizeStatus(s) },
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestDetectChanges(t *testing.T) {
	prior := map[string]string{"a": "h1", "b": "h2", "c": "h3"}
	current := map[string]string{"a": "h1", "b": "h2x", "d": "h4"}

	cs := DetectChanges("registry", prior, current)
	require.False(t, cs.IsEmpty)
	require.Len(t, cs.Changes, 3)
	require.Equal(t, 1, cs.Count(ChangeAdded))
	require.Equal(t, 1, cs.Count(ChangeModified))
	require.Equal(t, 1, cs.Count(ChangeRemoved))

	// ordered by record id
	require.Equal(t, "b", cs.Changes[0].RecordID)
	require.Equal(t, "c", cs.Changes[1].RecordID)
	require.Equal(t, "d", cs.Changes[2].RecordID)
}

func TestDetectChanges_NoChanges(t *testing.T) {
	m := map[string]string{"a": "h1"}
	cs := DetectChanges("registry", m, m)
	require.True(t, cs.IsEmpty)
	require.Equal(t, cs.PriorHash, cs.CurrentHash)
}

func TestFingerprint_IgnoresProvenance(t *testing.T) {
	d1 := contracts.Document{ID: "RISK-POL-001", Title: "Risk Policy", Provenance: contracts.Provenance{Source: "a.xlsx"}}
	d2 := d1
	d2.Provenance.Source = "b.xlsx"
	require.Equal(t, Fingerprint(d1), Fingerprint(d2))

	d2.Title = "Risk Management Policy"
	require.NotEqual(t, Fingerprint(d1), Fingerprint(d2))
}
