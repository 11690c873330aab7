// @title         Hushcut API
// @version       0.1.0
// @description   Audio moderation and redaction pipeline

package main

import (
	"context"

	"hushcut/internal/platform/config"
	"hushcut/internal/platform/logger"
	phttp "hushcut/internal/platform/net/http"
	"hushcut/internal/platform/store"

	"hushcut/internal/services/api"
	moderationrepo "hushcut/internal/services/moderation/repo"
)

func main() {
	// service-scoped config for HTTP etc (HUSHCUT_API_*)
	root := config.New()
	apiCfg := root.Prefix("HUSHCUT_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	st, err := store.Open(
		context.Background(),
		store.Config{
			AppName: "hushcut-api",
			PG: store.PGConfig{
				Enabled:     pgCfg.MayBool("ENABLED", pgCfg.MayString("DBURL", "") != ""),
				URL:         pgCfg.MayString("DBURL", ""),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if st.PG != nil {
		if err := moderationrepo.EnsureSchema(context.Background(), st.PG); err != nil {
			l.Panic().Err(err).Msg("ensure moderation schema")
		}
	}

	// http server (reads HUSHCUT_API_PORT)
	srv := phttp.NewServer(apiCfg)

	api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
		},
	)

	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
