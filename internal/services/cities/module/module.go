// Package module wires cities into the API using modkit
package module

import (
	"context"
	"net/http"

	"smogwatch/internal/adapters/upstream/pollution"
	"smogwatch/internal/adapters/upstream/wiki"
	modkit "smogwatch/internal/modkit"
	"smogwatch/internal/modkit/httpkit"

	"smogwatch/internal/services/cities/domain"
	chttp "smogwatch/internal/services/cities/http"
	csvc "smogwatch/internal/services/cities/service"
)

// Module implements the cities API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc csvc.Service
}

// measurementSource adapts the pollution client to the domain port
type measurementSource struct{ c *pollution.Client }

func (m measurementSource) FetchPage(ctx context.Context, country string, page, limit int) (domain.MeasurementPage, error) {
	p, err := m.c.FetchPage(ctx, country, page, limit)
	if err != nil {
		return domain.MeasurementPage{}, err
	}
	out := domain.MeasurementPage{Page: p.Page, TotalPages: p.TotalPages}
	for _, r := range p.Records {
		out.Records = append(out.Records, domain.Measurement{Name: r.Name, Value: r.Pollution})
	}
	return out, nil
}

func (m measurementSource) CachedPages() int { return m.c.CachedPages() }

// descriptionSource adapts the wiki client to the domain port
type descriptionSource struct{ c *wiki.Client }

func (d descriptionSource) Describe(ctx context.Context, country string, names []string) (map[string]string, error) {
	return d.c.Describe(ctx, country, names)
}

func (d descriptionSource) CachedDescriptions() int { return d.c.CachedDescriptions() }

// New constructs the cities module (config-driven, parity with other API modules)
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("cities"),
		modkit.WithPrefix("/cities"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	pc := pollution.NewClient(cfg.Pollution)
	wc := wiki.NewClient(cfg.Wiki)

	svc := csvc.New(measurementSource{c: pc}, descriptionSource{c: wc}, csvc.Options{
		FetchLimit:  cfg.FetchLimit,
		SnapshotTTL: cfg.SnapshotTTL,
		SnapshotCap: cfg.SnapshotCap,
	})

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = Ports{Cities: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		chttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }
