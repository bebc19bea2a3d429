// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/diewo77/billing-core/internal/auth"
	"github.com/diewo77/billing-core/internal/handlers"
	"github.com/diewo77/billing-core/internal/httpx"
	"github.com/diewo77/billing-core/internal/obs"
	"github.com/diewo77/billing-core/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Deps are the collaborators the router needs. Gatherer defaults to the
// Prometheus default registry.
type Deps struct {
	DB       *gorm.DB
	Logger   zerolog.Logger
	Metrics  *obs.Metrics
	Gatherer prometheus.Gatherer
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(d Deps) http.Handler {
	bills := services.NewBillService(d.DB, d.Logger, d.Metrics)
	catalog := services.NewCatalogService(d.DB, bills)
	clients := services.NewClientService(d.DB)
	rep := services.NewReportService(d.DB)

	bh := handlers.NewBillHandler(bills, rep)
	ph := handlers.NewProductHandler(catalog)
	ch := handlers.NewClientHandler(clients)
	rh := handlers.NewReportHandler(rep)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(obs.RequestLogger{Logger: d.Logger, Metrics: d.Metrics}.Middleware)
	r.Use(recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware, auth.RequireAuth)

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", ch.List)
			r.Post("/", ch.Create)
			r.Get("/{id}", ch.Get)
			r.Put("/{id}", ch.Update)
			r.Delete("/{id}", ch.Delete)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", ph.List)
			r.Post("/", ph.Create)
			r.Get("/autocomplete", ph.Autocomplete)
			r.Get("/{id}", ph.Get)
			r.Put("/{id}", ph.Update)
			r.Delete("/{id}", ph.Delete)
		})
		r.Route("/bills", func(r chi.Router) {
			r.Get("/", bh.List)
			r.Post("/", bh.Create)
			r.Get("/{id}", bh.Get)
			r.Put("/{id}", bh.Update)
			r.Delete("/{id}", bh.Delete)
			r.Post("/{id}/items", bh.SaveItem)
			r.Get("/{id}/invoice", bh.Invoice)
		})
		r.Delete("/bill-items/{id}", bh.DeleteItem)
		r.Get("/reports/bills.csv", rh.BillsCSV)
		r.Get("/dashboard", rh.Dashboard)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zerolog.Ctx(r.Context()).Error().Interface("panic", rec).Msg("handler panicked")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
