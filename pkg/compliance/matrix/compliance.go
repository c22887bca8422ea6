package matrix

import (
	"github.com/Mindburn-Labs/docreg/pkg/compliance/matching"
	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// ArticleStatus is the derived status of one law article.
type ArticleStatus string

const (
	StatusImplemented ArticleStatus = "Implemented"
	StatusGap         ArticleStatus = "Gap"
)

// MatrixRow is one law article with its fulfilling evidence.
type MatrixRow struct {
	Law             string        `json:"law"`
	Article         string        `json:"article"`
	Requirement     string        `json:"requirement"`
	RelatedDocIDs   []string      `json:"relatedDocIds"`
	FulfillingFiles []string      `json:"fulfillingFiles"`
	Status          ArticleStatus `json:"status"`
}

// BuildComplianceMatrix emits one row per article in universe order. An
// article is Implemented when at least one related requirement resolves to a
// document with a non-empty filename, otherwise it is a Gap.
func BuildComplianceMatrix(laws []contracts.Law, links matching.Links) []MatrixRow {
	var rows []MatrixRow
	for _, law := range laws {
		for _, art := range law.Articles {
			row := MatrixRow{
				Law:             law.Title,
				Article:         string(art.Article),
				Requirement:     art.Text,
				RelatedDocIDs:   append([]string{}, art.RelatedDocIDs...),
				FulfillingFiles: []string{},
				Status:          StatusGap,
			}
			seen := make(map[string]struct{})
			for _, id := range art.RelatedDocIDs {
				file := links.Filename(id)
				if file == "" {
					continue
				}
				if _, dup := seen[file]; dup {
					continue
				}
				seen[file] = struct{}{}
				row.FulfillingFiles = append(row.FulfillingFiles, file)
			}
			if len(row.FulfillingFiles) > 0 {
				row.Status = StatusImplemented
			}
			rows = append(rows, row)
		}
	}
	return rows
}
