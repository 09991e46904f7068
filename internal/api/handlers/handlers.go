package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/api/middleware"
	"github.com/dvloznov/openbanking-mcp/internal/domain"
	"github.com/dvloznov/openbanking-mcp/internal/export"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/metrics"
	"github.com/dvloznov/openbanking-mcp/internal/pipeline"
	"github.com/dvloznov/openbanking-mcp/internal/schema"
)

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	service *pipeline.Service
	log     zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(service *pipeline.Service, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{
		service: service,
		log:     log,
	}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.service.Accounts(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	valid := make([]domain.Account, 0, len(accounts))
	for _, acc := range accounts {
		if err := schema.ValidateAccount(acc); err != nil {
			h.log.Warn().Err(err).Str("account_id", acc.ID).Msg("Dropping invalid account")
			continue
		}
		valid = append(valid, acc)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": valid,
	})
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	service   *pipeline.Service
	table     *hmrc.CategoryTable
	collector metrics.Collector
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(service *pipeline.Service, table *hmrc.CategoryTable, collector metrics.Collector, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		service:   service,
		table:     table,
		collector: collector,
		log:       log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	accountID := query.Get("account_id")
	startDate := query.Get("start_date")
	endDate := query.Get("end_date")

	if accountID == "" || startDate == "" || endDate == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing required parameters: account_id, start_date, end_date")
		return
	}
	if !validDate(startDate) || !validDate(endDate) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
		return
	}

	limit := 50
	if limitStr := query.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 || n > 500 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		n, err := strconv.Atoi(offsetStr)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "offset must not be negative")
			return
		}
		offset = n
	}

	includeRaw := false
	if rawStr := query.Get("include_raw"); rawStr != "" {
		includeRaw, _ = strconv.ParseBool(rawStr)
	}

	result, err := h.service.List(ctx, pipeline.Query{
		AccountID:  accountID,
		StartDate:  startDate,
		EndDate:    endDate,
		Limit:      limit,
		Offset:     offset,
		IncludeRaw: includeRaw,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}

	if err := schema.ValidateListResult(result, h.table); err != nil {
		h.collector.RecordValidationFailure("list_transactions")
		h.log.Error().Err(err).Msg("List output failed validation")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}

	if includeRaw {
		middleware.WriteJSON(w, http.StatusOK, result)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result.Redacted())
}

// ExportsHandler handles HMRC CSV export endpoints.
type ExportsHandler struct {
	service   *pipeline.Service
	exporter  *export.Exporter
	collector metrics.Collector
	log       zerolog.Logger
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(service *pipeline.Service, exporter *export.Exporter, collector metrics.Collector, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{
		service:   service,
		exporter:  exporter,
		collector: collector,
		log:       log,
	}
}

// exportRequest carries the export parameters, from the JSON body on
// POST and from query parameters on download.
type exportRequest struct {
	AccountID string `json:"account_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Filename  string `json:"filename"`
}

// CreateExport handles POST /api/exports/hmrc
func (h *ExportsHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, ok := h.runExport(w, r, req)
	if !ok {
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"path":               result.CSVPath,
		"total_transactions": result.Metadata.TransactionCount,
		"total_amount":       result.Metadata.NetTotal,
		"summary":            result.Summary,
	})
}

// DownloadExport handles GET /api/exports/hmrc/download
func (h *ExportsHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := exportRequest{
		AccountID: query.Get("account_id"),
		StartDate: query.Get("start_date"),
		EndDate:   query.Get("end_date"),
		Filename:  query.Get("filename"),
	}

	result, ok := h.runExport(w, r, req)
	if !ok {
		return
	}

	// The retention sweeper may remove the file between write and read.
	if _, err := os.Stat(result.CSVPath); err != nil {
		middleware.WriteError(w, http.StatusNotFound, "CSV file not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(result.CSVPath)))
	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, result.CSVPath)
}

// runExport validates the request, runs the pipeline and writes the
// CSV. On failure it writes the error response and reports ok=false.
func (h *ExportsHandler) runExport(w http.ResponseWriter, r *http.Request, req exportRequest) (*export.Result, bool) {
	ctx := r.Context()

	if req.AccountID == "" || req.StartDate == "" || req.EndDate == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing required parameters: account_id, start_date, end_date")
		return nil, false
	}
	if !validDate(req.StartDate) || !validDate(req.EndDate) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
		return nil, false
	}

	fetched, err := h.service.Fetch(ctx, req.AccountID, req.StartDate, req.EndDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Export fetch failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return nil, false
	}

	result, err := h.exporter.Export(ctx, fetched.Transactions, req.AccountID, req.StartDate, req.EndDate, req.Filename)
	if err != nil {
		var writeErr *export.WriteError
		if errors.As(err, &writeErr) {
			middleware.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to write CSV file: %v", writeErr.Unwrap()))
			return nil, false
		}
		h.log.Error().Err(err).Msg("Export failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return nil, false
	}

	if err := schema.ValidateExportResult(result); err != nil {
		h.collector.RecordValidationFailure("export_hmrc_csv")
		h.log.Error().Err(err).Msg("Export output failed validation")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return nil, false
	}

	return result, true
}

// validDate reports whether s is a calendar date in YYYY-MM-DD form.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
