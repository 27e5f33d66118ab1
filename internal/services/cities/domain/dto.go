package domain

// RankedQuery asks for one page of the ranked listing for a country
type RankedQuery struct {
	Country string `json:"country" validate:"required,len=2"`
	Limit   int    `json:"limit"   validate:"omitempty,min=1,max=50"`
	Page    int    `json:"page"    validate:"omitempty,min=1"`
}

// RankedPage is one page of the ranked listing
type RankedPage struct {
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
	HasMore bool   `json:"has_more"`
	Cities  []City `json:"cities"`
}

// TopQuery is the legacy form: the first N entries for a country
type TopQuery struct {
	Country string `json:"country" validate:"required,len=2"`
	Limit   int    `json:"limit"   validate:"omitempty,min=1,max=50"`
}
