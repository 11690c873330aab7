// Package api provides the HTTP API for the application
package api

import (
	"hushcut/internal/platform/config"
	"hushcut/internal/platform/logger"
	phttp "hushcut/internal/platform/net/http"
	"hushcut/internal/platform/store"

	"hushcut/internal/modkit"
	"hushcut/internal/modkit/httpkit"
	"hushcut/internal/modkit/module"

	metahttp "hushcut/internal/services/api/meta/http"
	metamod "hushcut/internal/services/api/meta/module"
	moderationmod "hushcut/internal/services/moderation/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Cfg: opt.Config,
	}
	if opt.Store != nil {
		deps.PG = opt.Store.PG
	}

	moderation := moderationmod.New(deps)

	// surface the pipeline's collaborators in the readiness probe
	collaborators := make(metamod.Collaborators)
	for name, p := range module.MustPortsOf[moderationmod.Ports](moderation).Pingers {
		collaborators[name] = metahttp.Pinger(p)
	}

	mods := []module.Module{
		metamod.New(deps, collaborators),
		moderation,
	}

	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
}
