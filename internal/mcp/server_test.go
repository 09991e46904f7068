package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/export"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/metrics"
	"github.com/dvloznov/openbanking-mcp/internal/oauth"
	"github.com/dvloznov/openbanking-mcp/internal/pipeline"
	"github.com/dvloznov/openbanking-mcp/internal/source"
)

// newTestServer wires a server over the mock source only: no fixture
// file, no credentials, so every fetch lands on the built-in records.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	log := zerolog.Nop()
	collector := metrics.NoOpCollector{}
	table := hmrc.NewCategoryTable()

	tokens := oauth.NewTokenStore()
	chain := source.NewChain(log, collector, source.NewMockSource())
	service := pipeline.NewService(chain, hmrc.NewCategorizer(table), collector, log)
	exporter := export.NewExporter(t.TempDir(), collector, log)

	client := oauth.NewClient("https://auth.truelayer-sandbox.com", "", "", "http://localhost:8080/callback", 0, log)
	auth := oauth.NewManager(client, tokens, oauth.NewConsentLedger(90), log)

	return NewServer(service, exporter, auth, table, "1.0.0", false, log)
}

func call(t *testing.T, s *Server, frame string) *Response {
	t.Helper()
	return s.Handle(context.Background(), []byte(frame))
}

// toolText extracts the text payload of a tools/call response.
func toolText(t *testing.T, resp *Response) string {
	t.Helper()
	if resp == nil {
		t.Fatal("nil response")
	}
	if resp.Error != nil {
		t.Fatalf("rpc error: %v", resp.Error)
	}
	result, ok := resp.Result.(*ToolResult)
	if !ok {
		t.Fatalf("result type = %T, want *ToolResult", resp.Result)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("content = %+v, want one text block", result.Content)
	}
	return result.Content[0].Text
}

func TestInitialize(t *testing.T) {
	s := newTestServer(t)

	resp := call(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error)
	}

	init, ok := resp.Result.(InitializeResult)
	if !ok {
		t.Fatalf("result type = %T", resp.Result)
	}
	if init.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocolVersion = %q", init.ProtocolVersion)
	}
	if init.ServerInfo.Name != "openbanking-mcp" {
		t.Errorf("server name = %q", init.ServerInfo.Name)
	}
	if string(resp.ID) != "1" {
		t.Errorf("id = %s, want 1", resp.ID)
	}
}

func TestInitializedNotificationHasNoResponse(t *testing.T) {
	s := newTestServer(t)
	if resp := call(t, s, `{"jsonrpc":"2.0","method":"notifications/initialized"}`); resp != nil {
		t.Errorf("notification produced a response: %+v", resp)
	}
}

func TestParseError(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{not json`)

	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("error = %+v, want code %d", resp.Error, CodeParseError)
	}
	if string(resp.ID) != "null" {
		t.Errorf("id = %s, want null", resp.ID)
	}
}

func TestMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{"jsonrpc":"2.0","id":5,"method":"resources/list"}`)

	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("error = %+v, want code %d", resp.Error, CodeMethodNotFound)
	}
}

func TestToolsList(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	list, ok := resp.Result.(ToolsListResult)
	if !ok {
		t.Fatalf("result type = %T", resp.Result)
	}

	want := []string{
		"create_data_auth_link",
		"exchange_code",
		"complete_code_exchange",
		"get_accounts",
		"list_accounts",
		"get_transactions",
		"list_transactions",
		"export_hmrc_csv",
		"list_consents",
	}
	if len(list.Tools) != len(want) {
		t.Fatalf("tools = %d, want %d", len(list.Tools), len(want))
	}
	for i, name := range want {
		if list.Tools[i].Name != name {
			t.Errorf("tools[%d] = %q, want %q", i, list.Tools[i].Name, name)
		}
		if list.Tools[i].InputSchema == nil || list.Tools[i].OutputSchema == nil {
			t.Errorf("tool %q missing schema metadata", name)
		}
	}
}

func TestUnknownTool(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"delete_everything","arguments":{}}}`)

	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("error = %+v, want code %d", resp.Error, CodeMethodNotFound)
	}
	if !strings.Contains(resp.Error.Message, "Unknown tool") {
		t.Errorf("message = %q", resp.Error.Message)
	}
}

func TestCreateDataAuthLinkUnconfigured(t *testing.T) {
	s := newTestServer(t)
	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"create_data_auth_link","arguments":{}}}`))

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["error"] == "" {
		t.Error("expected in-band error for missing credentials")
	}
	if !strings.Contains(payload["mock_url"].(string), "auth.truelayer-sandbox.com") {
		t.Errorf("mock_url = %v", payload["mock_url"])
	}
}

func TestListAccounts(t *testing.T) {
	s := newTestServer(t)
	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"list_accounts","arguments":{}}}`))

	var payload struct {
		Accounts []struct {
			ID       string  `json:"id"`
			Currency string  `json:"currency"`
			Balance  float64 `json:"balance"`
		} `json:"accounts"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if len(payload.Accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(payload.Accounts))
	}
	if payload.Accounts[0].ID != "acc001" || payload.Accounts[1].ID != "acc002" {
		t.Errorf("account ids = %s, %s", payload.Accounts[0].ID, payload.Accounts[1].ID)
	}
	if payload.Accounts[0].Balance != 2847.32 {
		t.Errorf("balance = %v, want 2847.32 as a JSON number", payload.Accounts[0].Balance)
	}
}

func TestGetTransactionsMissingParams(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"get_transactions","arguments":{"account_id":"acc1"}}}`)

	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("error = %+v, want code %d", resp.Error, CodeInvalidParams)
	}
}

func TestGetTransactionsBadDate(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"get_transactions","arguments":{"account_id":"acc1","start_date":"01/09/2024","end_date":"2024-09-30"}}}`)

	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("error = %+v, want code %d", resp.Error, CodeInvalidParams)
	}
	if !strings.Contains(resp.Error.Message, "YYYY-MM-DD") {
		t.Errorf("message = %q", resp.Error.Message)
	}
}

func TestGetTransactionsRedactsByDefault(t *testing.T) {
	s := newTestServer(t)
	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"get_transactions","arguments":{"account_id":"acc1","start_date":"2024-08-01","end_date":"2024-09-30"}}}`))

	if strings.Contains(text, "TESCO") || strings.Contains(text, "description") {
		t.Errorf("redacted payload leaks descriptions:\n%s", text)
	}

	var redacted []struct {
		ID       string `json:"id"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(text), &redacted); err != nil {
		t.Fatalf("payload not a JSON array: %v", err)
	}
	if len(redacted) != 5 {
		t.Fatalf("transactions = %d, want the 5 mock records", len(redacted))
	}
	for _, tx := range redacted {
		if !hmrc.NewCategoryTable().IsBucket(tx.Category) {
			t.Errorf("category %q outside the HMRC set", tx.Category)
		}
	}
}

func TestGetTransactionsIncludeRaw(t *testing.T) {
	s := newTestServer(t)
	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"get_transactions","arguments":{"account_id":"acc1","start_date":"2024-08-01","end_date":"2024-09-30","include_raw":true}}}`))

	if !strings.Contains(text, "TESCO STORES 1234 LONDON") {
		t.Errorf("raw payload missing description:\n%s", text)
	}
}

func TestGetTransactionsPaging(t *testing.T) {
	s := newTestServer(t)
	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":10,"method":"tools/call","params":{"name":"get_transactions","arguments":{"account_id":"acc1","start_date":"2024-08-01","end_date":"2024-09-30","limit":2,"page":2}}}`))

	var page []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(text), &page); err != nil {
		t.Fatalf("payload not a JSON array: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	if page[0].ID != "txn003" {
		t.Errorf("page 2 starts at %q, want txn003", page[0].ID)
	}
}

func TestGetTransactionsLimitBounds(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, `{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"get_transactions","arguments":{"account_id":"acc1","start_date":"2024-08-01","end_date":"2024-09-30","limit":501}}}`)

	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("error = %+v, want code %d", resp.Error, CodeInvalidParams)
	}
}

func TestListTransactionsEnvelope(t *testing.T) {
	s := newTestServer(t)
	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":12,"method":"tools/call","params":{"name":"list_transactions","arguments":{"account_id":"acc1","start_date":"2024-08-01","end_date":"2024-09-30","limit":2,"offset":2}}}`))

	var envelope struct {
		Transactions []struct {
			ID       string `json:"id"`
			Category string `json:"category"`
		} `json:"transactions"`
		Pagination struct {
			Total   int  `json:"total"`
			Page    int  `json:"page"`
			Limit   int  `json:"limit"`
			Offset  int  `json:"offset"`
			HasMore bool `json:"has_more"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		t.Fatalf("payload not an envelope: %v", err)
	}

	if envelope.Pagination.Total != 5 {
		t.Errorf("total = %d, want 5", envelope.Pagination.Total)
	}
	if envelope.Pagination.Page != 2 {
		t.Errorf("page = %d, want 2", envelope.Pagination.Page)
	}
	if !envelope.Pagination.HasMore {
		t.Error("has_more = false, want true with one record remaining")
	}
	if len(envelope.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(envelope.Transactions))
	}
	if strings.Contains(text, "description") {
		t.Error("default listing must be redacted")
	}
}

func TestExportHMRCCSV(t *testing.T) {
	s := newTestServer(t)
	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":13,"method":"tools/call","params":{"name":"export_hmrc_csv","arguments":{"account_id":"acc1","start_date":"2024-08-01","end_date":"2024-09-30"}}}`))

	var payload struct {
		Export *struct {
			CSVPath  string `json:"csv_path"`
			Metadata struct {
				TransactionCount int     `json:"transaction_count"`
				TotalIncome      float64 `json:"total_income"`
				TotalExpenses    float64 `json:"total_expenses"`
				NetTotal         float64 `json:"net_total"`
			} `json:"metadata"`
		} `json:"export"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload.Export == nil {
		t.Fatalf("export missing:\n%s", text)
	}
	if payload.Export.Metadata.TransactionCount != 5 {
		t.Errorf("transaction_count = %d, want 5", payload.Export.Metadata.TransactionCount)
	}
	// Mock records: income 2500.00, expenses 45.50+12.99+89.99+25.00.
	if payload.Export.Metadata.TotalIncome != 2500.00 {
		t.Errorf("total_income = %v", payload.Export.Metadata.TotalIncome)
	}
	if payload.Export.Metadata.TotalExpenses != 173.48 {
		t.Errorf("total_expenses = %v", payload.Export.Metadata.TotalExpenses)
	}
	if !strings.Contains(payload.Summary, "HMRC CSV Export Summary") {
		t.Errorf("summary = %q", payload.Summary)
	}
}

func TestExportHMRCCSVWriteFailure(t *testing.T) {
	s := newTestServer(t)
	// Point the exporter at a directory that does not exist.
	s.exporter = export.NewExporter("/nonexistent/export/dir", metrics.NoOpCollector{}, zerolog.Nop())

	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":14,"method":"tools/call","params":{"name":"export_hmrc_csv","arguments":{"account_id":"acc1","start_date":"2024-08-01","end_date":"2024-09-30"}}}`))

	var payload struct {
		Error   string          `json:"error"`
		Export  json.RawMessage `json:"export"`
		Summary string          `json:"summary"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if !strings.Contains(payload.Error, "Failed to write CSV file") {
		t.Errorf("error = %q", payload.Error)
	}
	if string(payload.Export) != "null" {
		t.Errorf("export = %s, want null", payload.Export)
	}
	if payload.Summary != "" {
		t.Errorf("summary = %q, want empty", payload.Summary)
	}
}

func TestListConsentsEmpty(t *testing.T) {
	s := newTestServer(t)
	text := toolText(t, call(t, s, `{"jsonrpc":"2.0","id":15,"method":"tools/call","params":{"name":"list_consents","arguments":{}}}`))

	if text != "No active consents found." {
		t.Errorf("text = %q", text)
	}
}

func TestRunLoop(t *testing.T) {
	s := newTestServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n"

	var out strings.Builder
	if err := s.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("responses = %d, want 2 (notification and blank line skipped)", len(lines))
	}
	for i, line := range lines {
		var resp map[string]any
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("response %d not JSON: %v", i, err)
		}
		if resp["jsonrpc"] != "2.0" {
			t.Errorf("response %d jsonrpc = %v", i, resp["jsonrpc"])
		}
		if _, ok := resp["error"]; ok {
			t.Errorf("response %d is an error: %s", i, line)
		}
	}
	if !strings.Contains(lines[1], "export_hmrc_csv") {
		t.Error("tools/list response missing tool catalog")
	}
}

func TestRedactFrame(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"exchange_code","arguments":{"code":"secret-auth-code"}}}`
	out := string(redactFrame([]byte(in)))

	if strings.Contains(out, "secret-auth-code") {
		t.Errorf("code leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("no redaction marker: %s", out)
	}

	resp := `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{\"access_token\":\"tl-secret\"}"}]}}`
	out = string(redactFrame([]byte(resp)))
	if strings.Contains(out, "tl-secret") {
		t.Errorf("token leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED_TOKEN_DATA]") {
		t.Errorf("no token redaction marker: %s", out)
	}
}
