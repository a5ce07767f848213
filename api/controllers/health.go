package controllers

import (
	"net/http"

	"go.uber.org/multierr"

	"github.com/lucasferreyra/seedmart-backend/api/responses"
	"github.com/lucasferreyra/seedmart-backend/pkg/config"
	pkgerrors "github.com/lucasferreyra/seedmart-backend/pkg/errors"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
	pkgredis "github.com/lucasferreyra/seedmart-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SeedMart-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks every backing dependency and combines failures.
func HealthReady(cfg *config.Config, db pkgredis.Pinger, cache pkgredis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SeedMart-Env", cfg.App.Env)

		var err error
		if db != nil {
			err = multierr.Append(err, db.Ping(r.Context()))
		}
		if cache != nil {
			err = multierr.Append(err, cache.Ping(r.Context()))
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependencies not ready"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
