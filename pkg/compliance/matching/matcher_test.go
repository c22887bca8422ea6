package matching

import (
	"testing"
	"unicode"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: "Data-Retention  Policy", want: "dataretentionpolicy"},
		{in: "ＩＳＯ２７００１ Policy", want: "iso27001policy"},
		{in: "سياسة الأمن", want: "سياسةالأمن"},
		{in: "  --  ", want: ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeTitle(tt.in), "input %q", tt.in)
	}
}

func TestLinkRequirementsToDocuments(t *testing.T) {
	actual := []contracts.Document{
		{ID: "D0", Title: "---"},
		{ID: "D1", Title: "Enterprise Data Retention Policy", Filename: "retention.docx"},
		{ID: "D2", Title: "Data Retention Policy v2"},
		{ID: "D3", Title: "Access"},
	}
	required := []contracts.RequiredDocument{
		{DocID: "R1", Title: "Data Retention Policy"},
		{DocID: "R2", Title: "Access Control Policy"},
		{DocID: "R3", Title: "Business Continuity Plan"},
		{DocID: "R4", Title: "!!"},
	}

	links := LinkRequirementsToDocuments(required, actual)
	require.Equal(t, 2, links.Len())
	require.Equal(t, []string{"R1", "R2"}, links.IDs())

	d, ok := links.Get("R1")
	require.True(t, ok)
	require.Equal(t, "D1", d.ID, "first match in registry order wins")
	require.Equal(t, "retention.docx", links.Filename("R1"))

	d, ok = links.Get("R2")
	require.True(t, ok)
	require.Equal(t, "D3", d.ID, "a shorter actual title contained in the requirement matches")

	_, ok = links.Get("R3")
	require.False(t, ok)
	_, ok = links.Get("R4")
	require.False(t, ok, "empty normalized titles never match")
}

func TestLinkRequirements_SharedDocIDAcrossDomains(t *testing.T) {
	actual := []contracts.Document{
		{ID: "IT-PRO-001", Title: "Backup Procedure"},
		{ID: "HR-POL-001", Title: "Leave Policy"},
	}
	hr := contracts.RequiredDocument{Domain: "HR", DocID: "D1", Title: "Leave Policy"}
	it := contracts.RequiredDocument{Domain: "IT", DocID: "D1", Title: "Backup Procedure"}
	ops := contracts.RequiredDocument{Domain: "Ops", DocID: "D1", Title: "Runbook"}

	links := LinkRequirementsToDocuments([]contracts.RequiredDocument{hr, it, ops}, actual)

	d, ok := links.Lookup(hr)
	require.True(t, ok)
	require.Equal(t, "HR-POL-001", d.ID)
	d, ok = links.Lookup(it)
	require.True(t, ok)
	require.Equal(t, "IT-PRO-001", d.ID)
	_, ok = links.Lookup(ops)
	require.False(t, ok)

	d, ok = links.Get("D1")
	require.True(t, ok)
	require.Equal(t, "HR-POL-001", d.ID, "the docId view keeps the first domain's match")
	require.Equal(t, 1, links.Len())
}

func TestLinks_Immutable(t *testing.T) {
	actual := []contracts.Document{{ID: "D1", Title: "Risk Policy", Obligations: []string{"O1"}}}
	links := LinkRequirementsToDocuments([]contracts.RequiredDocument{{DocID: "R", Title: "risk policy"}}, actual)

	actual[0].Title = "changed"
	actual[0].Obligations[0] = "X"
	d, _ := links.Get("R")
	d.Obligations[0] = "Y"

	again, _ := links.Get("R")
	require.Equal(t, "Risk Policy", again.Title)
	require.Equal(t, []string{"O1"}, again.Obligations)
}

func TestLinkRequirements_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a document titled exactly like the requirement always matches", prop.ForAll(
		func(title string) bool {
			if NormalizeTitle(title) == "" {
				return true
			}
			links := LinkRequirementsToDocuments(
				[]contracts.RequiredDocument{{DocID: "R", Title: title}},
				[]contracts.Document{{ID: "D", Title: title}},
			)
			d, ok := links.Get("R")
			return ok && d.ID == "D"
		},
		gen.AnyString(),
	))
	properties.Property("normalized titles contain only lower-case letters and digits", prop.ForAll(
		func(s string) bool {
			for _, r := range NormalizeTitle(s) {
				if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
