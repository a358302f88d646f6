package controllers

import (
	"net/http"

	"github.com/mhartwell/studioline-backend/api/responses"
	"github.com/mhartwell/studioline-backend/pkg/config"
	"github.com/mhartwell/studioline-backend/pkg/db"
	pkgerrors "github.com/mhartwell/studioline-backend/pkg/errors"
	"github.com/mhartwell/studioline-backend/pkg/logger"
	"github.com/mhartwell/studioline-backend/pkg/redis"
	"github.com/mhartwell/studioline-backend/pkg/storage/gcs"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Studioline-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger, gcsP gcs.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Studioline-Env", cfg.App.Env)

		checks := map[string]string{}
		failed := false

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["database"] = "unavailable"
				failed = true
			} else {
				checks["database"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = "unavailable"
				failed = true
			} else {
				checks["redis"] = "ok"
			}
		}
		if gcsP != nil {
			if err := gcsP.Ping(r.Context()); err != nil {
				checks["storage"] = "unavailable"
				failed = true
			} else {
				checks["storage"] = "ok"
			}
		}

		if failed {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
