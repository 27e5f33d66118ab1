package wiki

import (
	"regexp"
	"strings"
)

// Phrase lists below are hand tuned configuration, not guaranteed-correct
// classification. Recalibrate against real knowledge source content when
// they drift. The deny list always beats the allow list
var (
	denyCategoryRe = regexp.MustCompile(`(?i)\b(` +
		`disambiguation|districts|boroughs|suburbs|neighbourhoods|neighborhoods|` +
		`airports|railway stations|metro stations|bus stations|stations|` +
		`power stations|power plants|mines|factories|` +
		`rivers|lakes|mountains|parks|forests|` +
		`companies|stadiums|arenas|universities|hospitals|museums` +
		`)\b`)

	allowCategoryRe = regexp.MustCompile(`(?i)\b(cities|towns|municipalities|capitals|communes|villages)\s+(in|of)\b`)

	positiveIntroRe = regexp.MustCompile(`(?i)^[^.]{0,240}\b(is|was)\b[^.]{0,120}\b` +
		`(city|town|capital|municipality|commune|village|urban area|seat)\b`)

	negativeIntroRe = regexp.MustCompile(`(?i)^[^.]{0,240}\b(is|was)\b[^.]{0,120}\b` +
		`(district|airport|station|park|river|lake|mountain|forest|company|stadium|arena|` +
		`university|hospital|museum|power plant|mine|borough|suburb|neighbourhood|neighborhood)\b`)
)

// classifyPage applies the validity heuristic to one resolved page.
// Category signal wins over the intro sentence; pages with no decisive
// signal or no extract stay pending for the second pass
func classifyPage(p wikiPage) resolution {
	if p.missing() || p.NS != 0 {
		return resolution{state: statePending}
	}
	if p.disambiguation() {
		return resolution{state: statePending}
	}

	for _, cat := range p.Categories {
		if denyCategoryRe.MatchString(cat.Title) {
			return resolution{state: stateFailed}
		}
	}
	allowed := false
	for _, cat := range p.Categories {
		if allowCategoryRe.MatchString(cat.Title) {
			allowed = true
			break
		}
	}

	extract := strings.TrimSpace(p.Extract)
	if extract == "" {
		return resolution{state: statePending}
	}
	if allowed {
		return resolution{state: stateResolved, description: extract}
	}

	intro := firstSentence(extract)
	switch {
	case negativeIntroRe.MatchString(intro):
		return resolution{state: stateFailed}
	case positiveIntroRe.MatchString(intro):
		return resolution{state: stateResolved, description: extract}
	default:
		return resolution{state: statePending}
	}
}

// firstSentence cuts the extract at the first period followed by a space
// or end of text, tolerating abbreviations poorly but cheaply
func firstSentence(s string) string {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '.' && (s[i+1] == ' ' || s[i+1] == '\n') {
			return s[:i+1]
		}
	}
	return s
}
