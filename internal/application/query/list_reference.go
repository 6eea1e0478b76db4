package query

import (
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFERENCE DATA QUERIES
// Static definitions consumers need to label summaries.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogResult lists the activity columns in display order.
type CatalogResult struct {
	Entries []catalog.Entry `json:"entries"`
	Groups  []GroupDTO      `json:"groups"`
}

// GroupDTO lists the activity types of one group.
type GroupDTO struct {
	Group catalog.Group          `json:"group"`
	Types []catalog.ActivityType `json:"types"`
}

// ListCatalog describes the injected catalog.
func ListCatalog(cat *catalog.Catalog) CatalogResult {
	res := CatalogResult{Entries: cat.Entries()}

	seen := make(map[catalog.Group]int)
	for _, e := range res.Entries {
		i, ok := seen[e.Group]
		if !ok {
			i = len(res.Groups)
			seen[e.Group] = i
			res.Groups = append(res.Groups, GroupDTO{Group: e.Group})
		}
		res.Groups[i].Types = append(res.Groups[i].Types, e.Type)
	}
	return res
}

// InstrumentsResult lists the survey instruments.
type InstrumentsResult struct {
	Questionnaires []survey.Questionnaire `json:"questionnaires"`
}

// ListInstruments describes the registered questionnaires.
func ListInstruments(r *survey.Registry) InstrumentsResult {
	return InstrumentsResult{Questionnaires: r.All()}
}
