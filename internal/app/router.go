package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-erp/comptoir-erp/internal/accounting"
	"github.com/comptoir-erp/comptoir-erp/internal/documents"
	"github.com/comptoir-erp/comptoir-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccountingHandler *accounting.Handler
	DocumentsHandler  *documents.Handler
	JobsHandler       *jobs.Handler
	Pool              *pgxpool.Pool
}

// NewRouter assembles the HTTP routes.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if p.Pool != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := p.Pool.Ping(ctx); err != nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/companies/{companyID}", func(r chi.Router) {
		if p.AccountingHandler != nil {
			p.AccountingHandler.Routes(r)
		}
		if p.DocumentsHandler != nil {
			p.DocumentsHandler.Routes(r)
		}
	})

	if p.JobsHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			p.JobsHandler.MountRoutes(r)
		})
	}

	return r
}
