package pollution

import (
	"encoding/json"
	"math"
	"strings"
)

// Record is one usable measurement row: a raw name plus a finite,
// non-negative pollution value
type Record struct {
	Name      string
	Pollution float64
}

// Page is the parsed form of one upstream results page. Dropped counts
// rows the tolerant parse rejected (missing name, non-numeric, negative
// or non-finite pollution)
type Page struct {
	Page       int
	TotalPages int
	Records    []Record
	Dropped    int
}

// wire shapes

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Token        string `json:"token"`
	ExpiresIn    int    `json:"expiresIn"`
	RefreshToken string `json:"refreshToken"`
}

type pageResponse struct {
	Meta struct {
		Page       int `json:"page"`
		TotalPages int `json:"totalPages"`
	} `json:"meta"`
	Results []rawRow `json:"results"`
}

// rawRow keeps pollution as raw JSON so a malformed value drops the row
// instead of failing the whole page
type rawRow struct {
	Name      string          `json:"name"`
	Pollution json.RawMessage `json:"pollution"`
}

// parsePage converts the wire response into a Page, dropping rows the
// upstream sent malformed rather than rejecting the page
func parsePage(body []byte) (Page, error) {
	var pr pageResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return Page{}, err
	}
	p := Page{Page: pr.Meta.Page, TotalPages: pr.Meta.TotalPages}
	for _, row := range pr.Results {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			p.Dropped++
			continue
		}
		v, ok := numericValue(row.Pollution)
		if !ok || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			p.Dropped++
			continue
		}
		p.Records = append(p.Records, Record{Name: name, Pollution: v})
	}
	return p, nil
}

// numericValue accepts a JSON number or a numeric string; anything else
// (null, objects, word strings) is rejected
func numericValue(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		if err := json.Unmarshal([]byte(s), &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
