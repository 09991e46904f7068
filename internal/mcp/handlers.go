package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
	"github.com/dvloznov/openbanking-mcp/internal/export"
	"github.com/dvloznov/openbanking-mcp/internal/oauth"
	"github.com/dvloznov/openbanking-mcp/internal/pipeline"
	"github.com/dvloznov/openbanking-mcp/internal/schema"
)

const missingCredentialsMsg = "Missing TrueLayer credentials. Set TRUELAYER_CLIENT_ID and TRUELAYER_CLIENT_SECRET environment variables."

// dispatchTool runs one tool. Transport-level problems (bad arguments,
// unexpected failures) come back as an RPCError; business failures are
// encoded in-band so the caller sees a structured error object.
func (s *Server) dispatchTool(ctx context.Context, name string, args json.RawMessage) (*ToolResult, *RPCError) {
	switch name {
	case "create_data_auth_link":
		return s.createDataAuthLink()
	case "exchange_code":
		return s.exchangeCode(ctx, args)
	case "complete_code_exchange":
		return s.completeCodeExchange(ctx, args)
	case "get_accounts":
		return s.getAccounts(ctx)
	case "list_accounts":
		return s.listAccounts(ctx)
	case "get_transactions":
		return s.getTransactions(ctx, args)
	case "list_transactions":
		return s.listTransactions(ctx, args)
	case "export_hmrc_csv":
		return s.exportHMRCCSV(ctx, args)
	case "list_consents":
		return s.listConsents()
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("Unknown tool: %s", name)}
	}
}

func (s *Server) createDataAuthLink() (*ToolResult, *RPCError) {
	link, err := s.auth.CreateAuthLink()
	if errors.Is(err, oauth.ErrNotConfigured) {
		return s.jsonTool(map[string]any{
			"error":    "TRUELAYER_CLIENT_ID environment variable not set",
			"mock_url": oauth.MockAuthURL,
		})
	}
	if err != nil {
		return nil, &RPCError{Code: CodeToolError, Message: fmt.Sprintf("Tool execution error: %v", err)}
	}
	return s.jsonTool(link)
}

func (s *Server) exchangeCode(ctx context.Context, args json.RawMessage) (*ToolResult, *RPCError) {
	var in struct {
		Code string `json:"code"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Code == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Missing required parameter: code"}
	}

	result, err := s.auth.ExchangeCode(ctx, in.Code)
	if errors.Is(err, oauth.ErrNotConfigured) {
		return s.jsonTool(map[string]any{"error": missingCredentialsMsg})
	}
	if err != nil {
		return s.jsonTool(map[string]any{"error": fmt.Sprintf("Token exchange failed: %v", err)})
	}
	return s.jsonTool(result)
}

func (s *Server) completeCodeExchange(ctx context.Context, args json.RawMessage) (*ToolResult, *RPCError) {
	var in struct {
		Code  string `json:"code"`
		State string `json:"state"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Code == "" || in.State == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "Missing required parameters: code, state"}
	}

	result, err := s.auth.CompleteExchange(ctx, in.Code, in.State)
	switch {
	case errors.Is(err, oauth.ErrInvalidState):
		return s.jsonTool(map[string]any{
			"error": "Invalid or expired state parameter",
			"code":  CodeInvalidParams,
		})
	case errors.Is(err, oauth.ErrNotConfigured):
		return s.jsonTool(map[string]any{"error": missingCredentialsMsg})
	case err != nil:
		return s.jsonTool(map[string]any{"error": fmt.Sprintf("Token exchange failed: %v", err)})
	}
	return s.jsonTool(result)
}

func (s *Server) getAccounts(ctx context.Context) (*ToolResult, *RPCError) {
	accounts, err := s.service.Accounts(ctx)
	if err != nil {
		return nil, &RPCError{Code: CodeToolError, Message: fmt.Sprintf("Tool execution error: %v", err)}
	}
	return s.jsonTool(accounts)
}

// listAccounts returns the fixed demo accounts, each checked against
// the account schema before it is included.
func (s *Server) listAccounts(ctx context.Context) (*ToolResult, *RPCError) {
	accounts, err := s.demo.Accounts(ctx)
	if err != nil {
		return nil, &RPCError{Code: CodeToolError, Message: fmt.Sprintf("Tool execution error: %v", err)}
	}

	valid := make([]domain.Account, 0, len(accounts))
	for _, acc := range accounts {
		if err := schema.ValidateAccount(acc); err != nil {
			s.log.Warn().Err(err).Str("account_id", acc.ID).Msg("Dropping invalid account")
			continue
		}
		valid = append(valid, acc)
	}
	return s.jsonTool(map[string]any{"accounts": valid})
}

func (s *Server) getTransactions(ctx context.Context, args json.RawMessage) (*ToolResult, *RPCError) {
	var in struct {
		AccountID  string `json:"account_id"`
		StartDate  string `json:"start_date"`
		EndDate    string `json:"end_date"`
		Limit      *int   `json:"limit"`
		Page       *int   `json:"page"`
		IncludeRaw bool   `json:"include_raw"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if rpcErr := requireRange(in.AccountID, in.StartDate, in.EndDate); rpcErr != nil {
		return nil, rpcErr
	}

	limit := 50
	if in.Limit != nil {
		limit = *in.Limit
	}
	if limit < 1 || limit > 500 {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "limit must be between 1 and 500"}
	}
	page := 1
	if in.Page != nil {
		page = *in.Page
	}
	if page < 1 {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "page must be >= 1"}
	}

	result, err := s.service.Fetch(ctx, in.AccountID, in.StartDate, in.EndDate)
	if err != nil {
		return nil, &RPCError{Code: CodeToolError, Message: fmt.Sprintf("Tool execution error: %v", err)}
	}

	window, _ := pipeline.Paginate(result.Transactions, (page-1)*limit, limit)
	if in.IncludeRaw {
		return s.jsonTool(window)
	}
	redacted := make([]domain.RedactedTransaction, len(window))
	for i, tx := range window {
		redacted[i] = tx.Redacted()
	}
	return s.jsonTool(redacted)
}

func (s *Server) listTransactions(ctx context.Context, args json.RawMessage) (*ToolResult, *RPCError) {
	var in struct {
		AccountID  string `json:"account_id"`
		StartDate  string `json:"start_date"`
		EndDate    string `json:"end_date"`
		Limit      *int   `json:"limit"`
		Offset     *int   `json:"offset"`
		IncludeRaw bool   `json:"include_raw"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if rpcErr := requireRange(in.AccountID, in.StartDate, in.EndDate); rpcErr != nil {
		return nil, rpcErr
	}

	query := pipeline.Query{
		AccountID:  in.AccountID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Limit:      pipeline.DefaultLimit,
		IncludeRaw: in.IncludeRaw,
	}
	if in.Limit != nil {
		query.Limit = *in.Limit
	}
	if in.Offset != nil {
		query.Offset = *in.Offset
	}

	result, err := s.service.List(ctx, query)
	if err != nil {
		return nil, &RPCError{Code: CodeToolError, Message: fmt.Sprintf("Tool execution error: %v", err)}
	}
	if err := schema.ValidateListResult(result, s.table); err != nil {
		return s.jsonTool(map[string]any{
			"error":           err.Error(),
			"original_output": result,
		})
	}

	if in.IncludeRaw {
		return s.jsonTool(result)
	}
	return s.jsonTool(result.Redacted())
}

func (s *Server) exportHMRCCSV(ctx context.Context, args json.RawMessage) (*ToolResult, *RPCError) {
	var in struct {
		AccountID string `json:"account_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Filename  string `json:"filename"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if rpcErr := requireRange(in.AccountID, in.StartDate, in.EndDate); rpcErr != nil {
		return nil, rpcErr
	}

	fetched, err := s.service.Fetch(ctx, in.AccountID, in.StartDate, in.EndDate)
	if err != nil {
		return nil, &RPCError{Code: CodeToolError, Message: fmt.Sprintf("Tool execution error: %v", err)}
	}

	result, err := s.exporter.Export(ctx, fetched.Transactions, in.AccountID, in.StartDate, in.EndDate, in.Filename)
	var werr *export.WriteError
	if errors.As(err, &werr) {
		return s.jsonTool(map[string]any{
			"error":   fmt.Sprintf("Failed to write CSV file: %v", werr.Unwrap()),
			"export":  nil,
			"summary": "",
		})
	}
	if err != nil {
		return nil, &RPCError{Code: CodeToolError, Message: fmt.Sprintf("Tool execution error: %v", err)}
	}

	if err := schema.ValidateExportResult(result); err != nil {
		return s.jsonTool(map[string]any{
			"error":   fmt.Sprintf("Export validation failed: %v", err),
			"export":  nil,
			"summary": "",
		})
	}

	return s.jsonTool(map[string]any{
		"export":  result,
		"summary": result.Summary,
	})
}

func (s *Server) listConsents() (*ToolResult, *RPCError) {
	return textResult(oauth.RenderConsents(s.auth.Consents())), nil
}

// jsonTool wraps a payload as an indented JSON text block.
func (s *Server) jsonTool(v any) (*ToolResult, *RPCError) {
	result, err := jsonResult(v)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("Internal error: %v", err)}
	}
	return result, nil
}

// unmarshalArgs decodes tool arguments; absent arguments decode as the
// zero value so optional-only tools accept empty calls.
func unmarshalArgs(args json.RawMessage, v any) *RPCError {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("Invalid arguments: %v", err)}
	}
	return nil
}

// requireRange enforces the account/date-range triple shared by the
// transaction tools.
func requireRange(accountID, startDate, endDate string) *RPCError {
	if accountID == "" || startDate == "" || endDate == "" {
		return &RPCError{Code: CodeInvalidParams, Message: "Missing required parameters: account_id, start_date, end_date"}
	}
	if !validDate(startDate) || !validDate(endDate) {
		return &RPCError{Code: CodeInvalidParams, Message: "Invalid date format. Use YYYY-MM-DD"}
	}
	return nil
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
