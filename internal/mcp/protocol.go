// Package mcp implements the Model Context Protocol server: JSON-RPC
// 2.0 framed one request per line over stdin/stdout. All logging goes
// to stderr; stdout carries frames only.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// serverName identifies this server in the initialize handshake.
const serverName = "openbanking-mcp"

// JSON-RPC 2.0 error codes, plus the implementation-defined tool
// failure code.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeToolError      = -32000
)

// Request is one incoming JSON-RPC frame. ID is kept raw so string,
// number and null ids round-trip untouched; a missing ID marks a
// notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one outgoing JSON-RPC frame.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TextContent is the single content kind tool results carry.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult wraps tool output for the tools/call response.
type ToolResult struct {
	Content []TextContent `json:"content"`
}

// InitializeResult answers the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises what this server supports. Tools only.
type Capabilities struct {
	Tools struct{} `json:"tools"`
}

// ServerInfo names the server to the client.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsListResult answers tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// callParams is the tools/call parameter envelope.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// newResponse builds a success frame for the given request id.
func newResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// newErrorResponse builds an error frame for the given request id. The
// id may be nil when the request could not be parsed; it is then
// reported as null per the JSON-RPC spec.
func newErrorResponse(id json.RawMessage, code int, message string) *Response {
	if id == nil {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}

// textResult wraps plain text as a tool result.
func textResult(text string) *ToolResult {
	return &ToolResult{Content: []TextContent{{Type: "text", Text: text}}}
}

// jsonResult marshals v with two-space indentation and wraps it as a
// tool result.
func jsonResult(v any) (*ToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("jsonResult: %w", err)
	}
	return textResult(string(body)), nil
}
