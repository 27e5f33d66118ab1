package service

import (
	"sort"
	"strings"

	"smogwatch/internal/core/classify"
	"smogwatch/internal/core/normalize"
	"smogwatch/internal/services/cities/domain"
)

// snapshot is the progressive accumulation state for one country.
// lastPage only moves forward; complete only flips false to true
type snapshot struct {
	entities   []domain.City
	seen       map[string]struct{}
	lastPage   int
	totalPages int
	complete   bool
}

func newSnapshot() snapshot {
	return snapshot{seen: map[string]struct{}{}}
}

// candidate is a classified, deduplicated record awaiting validation
type candidate struct {
	display string
	lookup  string
	value   float64
}

// dedupKey identifies the same place across pages and passes
func dedupKey(ascii, country string) string {
	return strings.ToLower(ascii) + "|" + country
}

// candidates classifies one page of records and dedups them against the
// snapshot, marking keys as seen even before validation so a rejected
// name is never re-validated on a later page
func candidates(country string, recs []domain.Measurement, seen map[string]struct{}) []candidate {
	var out []candidate
	for _, rec := range recs {
		res := classify.Classify(rec.Name, country)
		if res.Verdict == classify.VerdictDiscard {
			continue
		}
		key := dedupKey(res.ASCII, country)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, candidate{
			display: res.Name,
			lookup:  lookupTitle(res.Name),
			value:   rec.Value,
		})
	}
	return out
}

// lookupTitle picks the knowledge source query for a display name.
// Two word names go underscore joined with each word capitalized,
// anything else is queried as displayed
func lookupTitle(display string) string {
	if len(strings.Fields(display)) == 2 {
		return normalize.Underscored(display)
	}
	return display
}

// merge folds validated candidates into the snapshot, keeping only
// those with a non-empty description. Returns how many were appended
func merge(snap *snapshot, country string, cands []candidate, descs map[string]string) int {
	appended := 0
	for _, c := range cands {
		d := descs[c.lookup]
		if d == "" {
			continue
		}
		snap.entities = append(snap.entities, domain.City{
			Name:        c.display,
			Country:     country,
			Pollution:   c.value,
			Description: d,
		})
		appended++
	}
	return appended
}

// advance records a processed page and decides completeness: the final
// page, or an empty page at the end of data, closes the country
func advance(snap *snapshot, page domain.MeasurementPage, gotCandidates bool) {
	if page.Page > snap.lastPage {
		snap.lastPage = page.Page
	}
	if page.TotalPages > 0 {
		snap.totalPages = page.TotalPages
	}
	switch {
	case snap.totalPages > 0 && snap.lastPage >= snap.totalPages:
		snap.complete = true
	case len(page.Records) == 0 && !gotCandidates:
		snap.complete = true
	}
}

// ranked returns the entities sorted by value descending, ties stable
// in discovery order
func ranked(ents []domain.City) []domain.City {
	out := make([]domain.City, len(ents))
	copy(out, ents)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pollution > out[j].Pollution })
	return out
}
