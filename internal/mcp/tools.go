package mcp

// Tool describes one callable tool with its JSON schema metadata.
type Tool struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
}

// textOutputSchema is the shared output shape: every tool returns a
// content array of text blocks.
func textOutputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{"type": "string", "enum": []string{"text"}},
						"text": map[string]any{"type": "string"},
					},
					"required":             []string{"type", "text"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"content"},
		"additionalProperties": false,
	}
}

func noArgsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
}

func dateProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"format":      "date",
		"description": description,
	}
}

// buildTools returns the tool catalog served by tools/list.
func buildTools() []Tool {
	return []Tool{
		{
			Name:         "create_data_auth_link",
			Description:  "Create a TrueLayer OAuth authorization URL for data access.",
			InputSchema:  noArgsSchema(),
			OutputSchema: textOutputSchema(),
		},
		{
			Name:        "exchange_code",
			Description: "Exchange OAuth authorization code for access and refresh tokens (legacy alias).",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code": map[string]any{
						"type":        "string",
						"description": "The authorization code from OAuth callback",
					},
				},
				"required":             []string{"code"},
				"additionalProperties": false,
			},
			OutputSchema: textOutputSchema(),
		},
		{
			Name:        "complete_code_exchange",
			Description: "Complete PKCE OAuth authorization code exchange with state validation.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code": map[string]any{
						"type":        "string",
						"description": "The authorization code from OAuth callback",
					},
					"state": map[string]any{
						"type":        "string",
						"description": "The state parameter from OAuth callback",
					},
				},
				"required":             []string{"code", "state"},
				"additionalProperties": false,
			},
			OutputSchema: textOutputSchema(),
		},
		{
			Name:         "get_accounts",
			Description:  "List all user bank accounts.",
			InputSchema:  noArgsSchema(),
			OutputSchema: textOutputSchema(),
		},
		{
			Name:         "list_accounts",
			Description:  "Return 1-2 dummy accounts with proper schema validation.",
			InputSchema:  noArgsSchema(),
			OutputSchema: textOutputSchema(),
		},
		{
			Name:        "get_transactions",
			Description: "Get transactions for a specific account within a date range.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"account_id": map[string]any{
						"type":        "string",
						"description": "The account ID to fetch transactions for",
					},
					"start_date": dateProperty("Start date in YYYY-MM-DD format"),
					"end_date":   dateProperty("End date in YYYY-MM-DD format"),
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of transactions to return (default: 50)",
						"minimum":     1,
						"maximum":     500,
					},
					"page": map[string]any{
						"type":        "integer",
						"description": "Page number for pagination (default: 1)",
						"minimum":     1,
					},
					"include_raw": map[string]any{
						"type":        "boolean",
						"description": "Include full transaction payloads instead of redacted data (default: false)",
					},
				},
				"required":             []string{"account_id", "start_date", "end_date"},
				"additionalProperties": false,
			},
			OutputSchema: textOutputSchema(),
		},
		{
			Name:        "list_transactions",
			Description: "Fetch, normalize and categorize transactions, returned as a paginated envelope.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"account_id": map[string]any{
						"type":        "string",
						"description": "The account ID to fetch transactions for",
					},
					"start_date": dateProperty("Start date in YYYY-MM-DD format"),
					"end_date":   dateProperty("End date in YYYY-MM-DD format"),
					"limit": map[string]any{
						"type":        "integer",
						"description": "Page size (default: 10)",
						"minimum":     1,
					},
					"offset": map[string]any{
						"type":        "integer",
						"description": "Window start within the full set (default: 0)",
						"minimum":     0,
					},
					"include_raw": map[string]any{
						"type":        "boolean",
						"description": "Include full transaction payloads instead of redacted data (default: false)",
					},
				},
				"required":             []string{"account_id", "start_date", "end_date"},
				"additionalProperties": false,
			},
			OutputSchema: textOutputSchema(),
		},
		{
			Name:        "export_hmrc_csv",
			Description: "Export transactions as HMRC-ready CSV with categorization and summary.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"account_id": map[string]any{
						"type":        "string",
						"description": "The account ID to export transactions for",
					},
					"start_date": dateProperty("Start date in YYYY-MM-DD format"),
					"end_date":   dateProperty("End date in YYYY-MM-DD format"),
					"filename": map[string]any{
						"type":        "string",
						"description": "Optional filename for the CSV export (defaults to hmrc_export_<account>_<from>_<to>.csv)",
					},
				},
				"required":             []string{"account_id", "start_date", "end_date"},
				"additionalProperties": false,
			},
			OutputSchema: textOutputSchema(),
		},
		{
			Name:         "list_consents",
			Description:  "List all active user consents with their purposes and expiration dates.",
			InputSchema:  noArgsSchema(),
			OutputSchema: textOutputSchema(),
		},
	}
}
