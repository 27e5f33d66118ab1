// Package classify turns raw measurement record names into place name
// verdicts. The pipeline is heuristic and total: it never fails, it only
// accepts, cleans, or discards
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"smogwatch/internal/core/normalize"
)

// Verdict says whether a raw name is usable as a place name
type Verdict uint8

const (
	// VerdictDiscard marks a name that cannot be used
	VerdictDiscard Verdict = iota
	// VerdictAccept marks a name usable as is
	VerdictAccept
	// VerdictAcceptCleaned marks a name usable after cleanup
	VerdictAcceptCleaned
)

// String implements fmt.Stringer
func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictAcceptCleaned:
		return "accept-cleaned"
	default:
		return "discard"
	}
}

// Result is the classification outcome for one record name
type Result struct {
	Verdict    Verdict
	Name       string // cleaned, locale proper-cased display name
	ASCII      string // ASCII fold of Name, for dedup keys and lookups
	Reason     string
	Confidence float64
}

const (
	minNameLen = 2
	maxNameLen = 64
)

// Phrase lists below are hand tuned configuration, not guaranteed-correct
// classification. Recalibrate against real upstream content when they drift
var (
	// facility, administrative and sub locality vocabulary across the four locales
	facilityRe = regexp.MustCompile(`(?i)\b(` +
		`station|monitoring|sensor|measurement|plant|factory|works|refinery|mine|` +
		`airport|terminal|district|ward|zone|area|region|sector|suburb|borough|` +
		`campus|site|laboratory|institute|university|hospital|` +
		`stacja|pomiar|pomiarowa|elektrownia|kopalnia|huta|zaklad|dzielnica|osiedle|strefa|` +
		`messstation|kraftwerk|werk|fabrik|bezirk|viertel|gebiet|hafen|flughafen|` +
		`estacion|central|planta|fabrica|distrito|barrio|zona|puerto|aeropuerto|` +
		`usine|centrale|quartier|arrondissement|secteur|aeroport` +
		`)\b`)

	parenRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

	directionRe = regexp.MustCompile(`(?i)[\s-]+(` +
		`east|west|north|south|centre|center|central|` +
		`est|ouest|nord|sud|norte|sur|este|oeste|ost|` +
		`polnoc|poludnie|wschod|zachod|północ|południe|wschód|zachód` +
		`)$`)

	cityPrefixRe = regexp.MustCompile(`(?i)^(city of|ciudad de|ville de|miasto|stadt)\s+`)
	citySuffixRe = regexp.MustCompile(`(?i)\s+city$`)

	disallowedSymbols = `#@$%^&*_=+[]{}|\<>/;:~` + "`\""
)

// Classify runs the heuristic pipeline over one raw record name for a locale.
// Pure function: the verdict carries the proper cased and ASCII folded
// variants of the cleaned name
func Classify(name, locale string) Result {
	raw := strings.TrimSpace(name)

	if reason, ok := shapeReject(raw); ok {
		return Result{Verdict: VerdictDiscard, Reason: reason}
	}

	base, tags := stripQualifiers(raw)
	if reason, ok := shapeReject(base); ok {
		return Result{Verdict: VerdictDiscard, Reason: "stripped:" + reason}
	}

	display := normalize.ProperCase(base, locale)
	ascii := normalize.Fold(display)

	origFacility := facilityRe.MatchString(strings.ToLower(normalize.Fold(raw)))
	baseFacility := facilityRe.MatchString(strings.ToLower(ascii))
	baseDigits := containsDigit(base)

	if origFacility {
		if baseFacility || baseDigits {
			return Result{Verdict: VerdictDiscard, Reason: "facility/admin"}
		}
		return Result{
			Verdict:    VerdictAcceptCleaned,
			Name:       display,
			ASCII:      ascii,
			Reason:     "salvaged:" + strings.Join(tags, ","),
			Confidence: 0.7,
		}
	}

	if baseDigits {
		return Result{Verdict: VerdictDiscard, Reason: "digits"}
	}

	if len(tags) == 0 && display == raw {
		return Result{
			Verdict:    VerdictAccept,
			Name:       display,
			ASCII:      ascii,
			Reason:     "heuristic",
			Confidence: 0.9,
		}
	}

	if len(tags) == 0 {
		tags = append(tags, "case")
	}
	return Result{
		Verdict:    VerdictAcceptCleaned,
		Name:       display,
		ASCII:      ascii,
		Reason:     "normalized:" + strings.Join(tags, ","),
		Confidence: 0.7,
	}
}

// shapeReject applies the cheap structural rejections of step one
func shapeReject(s string) (string, bool) {
	runes := []rune(s)
	switch {
	case len(runes) < minNameLen:
		return "too-short", true
	case len(runes) > maxNameLen:
		return "too-long", true
	}
	if strings.ContainsAny(s, disallowedSymbols) {
		return "symbols", true
	}
	letters, other := 0, 0
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsSpace(r):
			// spaces are neutral
		default:
			other++
		}
	}
	if letters == 0 {
		return "no-letters", true
	}
	if other > letters {
		return "mostly-non-letter", true
	}
	return "", false
}

// stripQualifiers removes a trailing parenthetical, a trailing directional
// suffix, and a City-of wrapper, recording a tag per applied strip
func stripQualifiers(s string) (string, []string) {
	var tags []string

	if out := parenRe.ReplaceAllString(s, ""); out != s {
		s = strings.TrimSpace(out)
		tags = append(tags, "paren")
	}
	if out := directionRe.ReplaceAllString(s, ""); out != s {
		s = strings.TrimSpace(out)
		tags = append(tags, "direction")
	}
	if out := cityPrefixRe.ReplaceAllString(s, ""); out != s {
		s = strings.TrimSpace(out)
		tags = append(tags, "wrapper")
	} else if out := citySuffixRe.ReplaceAllString(s, ""); out != s {
		s = strings.TrimSpace(out)
		tags = append(tags, "wrapper")
	}
	return s, tags
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
