// Package domain holds cities core types independent of transport or upstreams
package domain

// City is one validated, describable place in a country ranking
type City struct {
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	Pollution   float64 `json:"pollution"`
	Description string  `json:"description"`
}

// Measurement is one usable upstream row after the tolerant parse
type Measurement struct {
	Name  string
	Value float64
}

// MeasurementPage is one page of measurements for a country.
// TotalPages is zero until the upstream reports it
type MeasurementPage struct {
	Page       int
	TotalPages int
	Records    []Measurement
}

// Diagnostics is a live snapshot of the three cache tiers
type Diagnostics struct {
	PageEntries        int `json:"page_entries"`
	DescriptionEntries int `json:"description_entries"`
	CountryEntries     int `json:"country_entries"`
}
