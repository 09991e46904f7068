// Package api assembles the REST facade: routes, middleware chain and
// the Prometheus scrape endpoint.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/api/handlers"
	"github.com/dvloznov/openbanking-mcp/internal/api/middleware"
)

// RouterConfig carries the handlers and cross-cutting settings for the
// REST router.
type RouterConfig struct {
	Accounts     *handlers.AccountsHandler
	Transactions *handlers.TransactionsHandler
	Exports      *handlers.ExportsHandler

	// Registry backs /metrics; nil disables the endpoint.
	Registry *prometheus.Registry

	CORSOrigins []string
	Log         zerolog.Logger
}

// NewRouter builds the route table and wraps it in the middleware
// chain Recovery, RequestID, Logger, CORS (outermost first).
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts", cfg.Accounts.ListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/transactions", cfg.Transactions.ListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/api/exports/hmrc", cfg.Exports.CreateExport).Methods(http.MethodPost)
	r.HandleFunc("/api/exports/hmrc/download", cfg.Exports.DownloadExport).Methods(http.MethodGet)

	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return middleware.Recovery(cfg.Log)(
		middleware.RequestID(
			middleware.Logger(cfg.Log)(
				middleware.CORS(cfg.CORSOrigins)(r),
			),
		),
	)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
