package domain

import "context"

// ServicePort is the interface implemented by the cities service
type ServicePort interface {
	Ranked(ctx context.Context, q RankedQuery) (RankedPage, error)
	Top(ctx context.Context, q TopQuery) ([]City, error)
	Diagnostics(ctx context.Context) (Diagnostics, error)
}

// MeasurementPort pulls pages of raw measurements for a country
type MeasurementPort interface {
	FetchPage(ctx context.Context, country string, page, limit int) (MeasurementPage, error)
	CachedPages() int
}

// DescriptionPort resolves candidate names to descriptions, empty string
// meaning the name was rejected or could not be resolved
type DescriptionPort interface {
	Describe(ctx context.Context, country string, names []string) (map[string]string, error)
	CachedDescriptions() int
}
