package schemas

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		data    string
		wantErr bool
	}{
		{"registry ok", KindRegistry, `{"lastUpdated":"2024-01-01T00:00:00Z","documents":[{"id":"RISK-POL-001","title":"Risk Policy"}]}`, false},
		{"registry missing id", KindRegistry, `{"documents":[{"title":"x"}]}`, true},
		{"registry duplicate obligations", KindRegistry, `{"documents":[{"id":"a","obligations":["o1","o1"]}]}`, true},
		{"obligations ok", KindObligations, `{"obligations":[{"id":"OBL-1","requiredArtifacts":["R1"]}]}`, false},
		{"universe numeric article", KindUniverse, `{"laws":[{"title":"PDPL","articles":[{"article":5,"relatedDocIds":[]}]}]}`, false},
		{"universe missing laws", KindUniverse, `{}`, true},
		{"requirements ok", KindRequirements, `{"domains":[{"name":"Privacy","requiredDocuments":[{"docId":"R1","title":"Data Retention Policy"}]}]}`, false},
		{"controls missing category", KindControls, `{"controls":[{"id":"C1"}]}`, true},
		{"not json", KindControls, `{`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.kind, []byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateUnknownKind(t *testing.T) {
	require.Error(t, Validate(Kind("nope"), []byte(`{}`)))
}
