package controllers

import (
	"net/http"

	"github.com/filmfusion-ai/filmfusion-backend/api/responses"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/bigquery"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FilmFusion-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing services. Nil pingers are reported as
// skipped so partial deployments can still come up.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger, bigqueryP bigquery.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FilmFusion-Env", cfg.App.Env)

		components := map[string]string{}
		healthy := true

		check := func(name string, ping func() error) {
			if ping == nil {
				components[name] = "skipped"
				return
			}
			if err := ping(); err != nil {
				healthy = false
				components[name] = "unavailable"
				if logg != nil {
					logg.Error(r.Context(), "readiness check failed for "+name, err)
				}
				return
			}
			components[name] = "ok"
		}

		var dbPing, redisPing, bqPing func() error
		if dbP != nil {
			dbPing = func() error { return dbP.Ping(r.Context()) }
		}
		if redisP != nil {
			redisPing = func() error { return redisP.Ping(r.Context()) }
		}
		if bigqueryP != nil {
			bqPing = func() error { return bigqueryP.Ping(r.Context()) }
		}
		check("postgres", dbPing)
		check("redis", redisPing)
		check("bigquery", bqPing)

		if !healthy {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(map[string]any{"components": components}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "components": components})
	}
}
