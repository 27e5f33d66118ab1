// Package api provides the HTTP API for the application
package api

import (
	"smogwatch/internal/platform/config"
	"smogwatch/internal/platform/logger"
	phttp "smogwatch/internal/platform/net/http"

	"smogwatch/internal/modkit"
	"smogwatch/internal/modkit/httpkit"
	"smogwatch/internal/modkit/module"
	"smogwatch/internal/modkit/swaggerkit"

	citiesmod "smogwatch/internal/services/cities/module"

	metamod "smogwatch/internal/services/api/meta/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	mods := []module.Module{
		metamod.New(deps),
		citiesmod.New(deps),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
}
