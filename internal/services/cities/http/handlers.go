// Package http provides http transport for cities
package http

import (
	stdhttp "net/http"

	"smogwatch/internal/modkit/httpkit"
	"smogwatch/internal/services/cities/domain"
	svc "smogwatch/internal/services/cities/service"
)

// Register mounts the router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	httpkit.PostJSON[domain.RankedQuery](r, "/ranked", h.ranked)
	httpkit.PostJSON[domain.TopQuery](r, "/top", h.top)
	httpkit.Get(r, "/diagnostics", h.diagnostics)
}

type handlers struct{ svc svc.Service }

// swagger:route POST /cities/ranked Cities citiesRanked
// @Summary Ranked polluted cities page for a country
// @Tags cities
// @Accept json
// @Produce json
// @Param payload body domain.RankedQuery true "Ranked"
// @Success 200 {object} domain.RankedPage "ok"
// @Router /cities/ranked [post]
func (h *handlers) ranked(r *stdhttp.Request, in domain.RankedQuery) (any, error) {
	return h.svc.Ranked(r.Context(), in)
}

// swagger:route POST /cities/top Cities citiesTop
// @Summary Most polluted cities for a country
// @Tags cities
// @Accept json
// @Produce json
// @Param payload body domain.TopQuery true "Top"
// @Success 200 {object} []domain.City "ok"
// @Router /cities/top [post]
func (h *handlers) top(r *stdhttp.Request, in domain.TopQuery) (any, error) {
	return h.svc.Top(r.Context(), in)
}

// swagger:route GET /cities/diagnostics Cities citiesDiagnostics
// @Summary Live cache tier entry counts
// @Tags cities
// @Produce json
// @Success 200 {object} domain.Diagnostics "ok"
// @Router /cities/diagnostics [get]
func (h *handlers) diagnostics(r *stdhttp.Request) (any, error) {
	return h.svc.Diagnostics(r.Context())
}
