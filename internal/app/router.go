package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/emiliopc17/redmil-crm/pkg/httpapi"
)

// NewRouter mounts every HTTP route behind the shared middleware stack.
func (d *Dependencies) NewRouter() http.Handler {
	mux := http.NewServeMux()

	d.ImportHandler.Register(mux)
	d.CatalogHandler.Register(mux)
	d.RatesHandler.Register(mux)

	mux.HandleFunc("GET /health", d.handleHealth)
	if d.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry}))
	}

	sc := d.Config.Server
	limiter := rate.NewLimiter(rate.Limit(sc.RateLimitPerSecond), sc.RateLimitBurst)

	c := cors.New(cors.Options{
		AllowedOrigins:   sc.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return httpapi.Chain(mux,
		httpapi.Recover(d.Logger),
		httpapi.Logging(d.Logger),
		c.Handler,
		httpapi.RateLimit(limiter),
	)
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := d.Health(ctx); err != nil {
		httpapi.WriteError(w, http.StatusServiceUnavailable, "database unavailable", nil)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
