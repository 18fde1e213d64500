// Package apihttp is the operator API: vault lookups, payments, key
// issuance and the approval dashboard endpoints.
package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/talos/internal/auth"
	"github.com/example/talos/internal/handlers"
	"github.com/example/talos/internal/rate"
	"github.com/example/talos/pkg/jsonutil"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check is one dependency checked by /healthz.
type Check func(ctx context.Context) error

// Deps are the pieces NewRouter mounts. Nil handlers leave their routes out.
type Deps struct {
	Vaults    *handlers.VaultHandler
	Payments  *handlers.PaymentHandler
	Admin     *handlers.AdminHandler
	Approvals *handlers.ApprovalHandler

	Limiter    *rate.LimiterMap
	Keys       auth.APIKeyStore
	AdminToken string
	Checks     map[string]Check
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp := healthResponse{Status: "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				if resp.Checks == nil {
					resp.Checks = map[string]string{}
				}
				resp.Checks[name] = err.Error()
				resp.Status = "unhealthy"
			}
		}
		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusInternalServerError
		}
		jsonutil.JSON(w, code, resp)
	}
}

// NewRouter wires routes and middlewares.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(d.Logger))
	r.Use(CORS)
	if d.Limiter != nil {
		r.Use(RateLimit(d.Limiter))
	}

	r.Get("/healthz", healthz(d.Checks))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	if d.Keys != nil {
		r.Route("/api", func(api chi.Router) {
			api.Use(Auth(d.Keys))
			if d.Vaults != nil {
				api.Get("/vaults/{owner}", d.Vaults.Get)
				api.Post("/vaults", d.Vaults.Batch)
			}
			if d.Payments != nil {
				api.Post("/payments", d.Payments.Send)
				api.Get("/payments/stats", d.Payments.Stats)
			}
		})
	}

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(AdminToken(d.AdminToken))
		if d.Admin != nil {
			admin.Post("/keys", d.Admin.CreateKey)
			admin.Delete("/keys", d.Admin.RevokeKey)
		}
		if d.Approvals != nil {
			admin.Get("/approvals", d.Approvals.List)
			admin.Post("/approvals/{id}", d.Approvals.Decide)
		}
	})

	return r
}
