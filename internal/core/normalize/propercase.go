package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// localeRule is the per locale casing configuration: which language tag the
// titlecaser uses and which function words stay lowercase when not leading
type localeRule struct {
	tag           language.Tag
	label         string
	functionWords map[string]struct{}
}

// rules is the closed set of supported locales keyed by country code.
// Unrecognized locales fall back to simple capitalization
var rules = map[string]localeRule{
	"PL": {
		tag:           language.Polish,
		label:         "Poland",
		functionWords: wordSet("nad", "pod", "przy"),
	},
	"DE": {
		tag:           language.German,
		label:         "Germany",
		functionWords: wordSet("am", "an", "der", "im", "bei", "auf", "ob"),
	},
	"ES": {
		tag:           language.Spanish,
		label:         "Spain",
		functionWords: wordSet("de", "del", "la", "las", "los", "y"),
	},
	"FR": {
		tag:           language.French,
		label:         "France",
		functionWords: wordSet("de", "du", "des", "le", "la", "les", "en", "au", "aux", "sur", "sous"),
	},
}

var fallbackRule = localeRule{tag: language.Und, functionWords: map[string]struct{}{}}

// casers are built once per rule, cases.Title construction is not free
var casers = func() map[string]cases.Caser {
	m := make(map[string]cases.Caser, len(rules)+1)
	for cc, r := range rules {
		m[cc] = cases.Title(r.tag)
	}
	m[""] = cases.Title(language.Und)
	return m
}()

func wordSet(ws ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		m[w] = struct{}{}
	}
	return m
}

// Locales returns the supported country codes
func Locales() []string {
	return []string{"DE", "ES", "FR", "PL"}
}

// Supported reports whether cc names a supported locale
func Supported(cc string) bool {
	_, ok := rules[strings.ToUpper(cc)]
	return ok
}

// Label returns the English country label for a supported locale code,
// or the code itself when unrecognized
func Label(cc string) string {
	if r, ok := rules[strings.ToUpper(cc)]; ok {
		return r.label
	}
	return strings.ToUpper(cc)
}

// ProperCase applies locale specific capitalization preserving diacritics.
// Function words of the locale (articles, prepositions) are lowercased unless
// they lead the name: "jerez DE LA frontera"/"ES" -> "Jerez de la Frontera".
// Hyphenated compounds are cased per segment. Pure function, never fails
func ProperCase(name, locale string) string {
	rule, ok := rules[strings.ToUpper(locale)]
	caser, has := casers[strings.ToUpper(locale)]
	if !ok || !has {
		rule = fallbackRule
		caser = casers[""]
	}

	words := strings.Fields(name)
	for i, w := range words {
		lower := strings.ToLower(w)
		if i > 0 {
			if _, fn := rule.functionWords[lower]; fn {
				words[i] = lower
				continue
			}
		}
		words[i] = caseWord(caser, rule, lower)
	}
	return strings.Join(words, " ")
}

// caseWord titlecases one word, keeping hyphenated segments independent and
// lowercasing inner function word segments ("aix-en-provence" -> "Aix-en-Provence")
func caseWord(caser cases.Caser, rule localeRule, w string) string {
	if !strings.Contains(w, "-") {
		return caser.String(w)
	}
	parts := strings.Split(w, "-")
	for i, p := range parts {
		if i > 0 {
			if _, fn := rule.functionWords[p]; fn {
				parts[i] = p
				continue
			}
		}
		parts[i] = caser.String(p)
	}
	return strings.Join(parts, "-")
}
