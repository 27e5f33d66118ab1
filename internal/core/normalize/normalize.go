// Package normalize provides deterministic place name normalization
// Pipeline order for Fold
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKD decomposition
// 3 Remove combining marks
// 4 Width fold fullwidth to ASCII
// 5 Latin fold for letters with no decomposition eg ł->l ß->ss œ->oe
// 6 Drop any remaining non ASCII runes
// 7 Collapse whitespace to single spaces and trim
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKD,
			runes.Remove(runes.In(unicode.Mn)), // strip combining marks
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			width.Fold,                         // map fullwidth forms to ASCII
		)
	},
}

// Fold returns the pure Latin comparable form of name. It never fails:
// malformed input yields the best effort fold of its Unicode letters.
// Case is preserved so callers can lowercase for dedup keys and keep
// capitalization for lookup titles
func Fold(name string) string {
	if name == "" {
		return ""
	}

	// 1 repair UTF-8 drop invalid bytes
	s := strings.ToValidUTF8(name, "")

	// 2-4 transform via pooled chain then reset and return it
	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	// 5-6 latin fold leftovers and drop what still is not ASCII
	ns = latinFold(ns)

	// 7 collapse whitespace and trim
	return collapseSpaces(ns)
}

// latinFold maps letters with no canonical decomposition to ASCII lookalikes
// and drops anything that still falls outside ASCII
func latinFold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 'ł':
			b.WriteRune('l')
		case 'Ł':
			b.WriteRune('L')
		case 'ß':
			b.WriteString("ss")
		case 'ø':
			b.WriteRune('o')
		case 'Ø':
			b.WriteRune('O')
		case 'đ', 'ð':
			b.WriteRune('d')
		case 'Đ', 'Ð':
			b.WriteRune('D')
		case 'æ':
			b.WriteString("ae")
		case 'Æ':
			b.WriteString("Ae")
		case 'œ':
			b.WriteString("oe")
		case 'Œ':
			b.WriteString("Oe")
		case 'þ':
			b.WriteString("th")
		case 'Þ':
			b.WriteString("Th")
		case 'ı':
			b.WriteRune('i')
		default:
			if r < 128 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// collapseSpaces converts whitespace runs to a single ASCII space and trims the edges
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}

// Underscored builds a knowledge source lookup title: every word capitalized,
// words joined with underscores ("frankfurt am main" -> "Frankfurt_Am_Main")
func Underscored(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = capitalizeASCII(w)
	}
	return strings.Join(words, "_")
}

func capitalizeASCII(w string) string {
	if w == "" {
		return w
	}
	r := []rune(strings.ToLower(w))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
