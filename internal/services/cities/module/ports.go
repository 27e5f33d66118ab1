package module

import (
	"smogwatch/internal/services/cities/domain"
)

// Ports exposes the cities service for cross-module usage
type Ports struct {
	Cities domain.ServicePort
}

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return m.ports }
