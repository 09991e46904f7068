package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/export"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/oauth"
	"github.com/dvloznov/openbanking-mcp/internal/pipeline"
	"github.com/dvloznov/openbanking-mcp/internal/source"
)

// maxFrameBytes bounds one incoming JSON-RPC line.
const maxFrameBytes = 1 << 20

// Server dispatches MCP requests to the pipeline, exporter and oauth
// manager. One instance serves one stdio session; handlers run
// sequentially in frame order.
type Server struct {
	service  *pipeline.Service
	exporter *export.Exporter
	auth     *oauth.Manager
	demo     *source.MockSource
	table    *hmrc.CategoryTable
	tools    []Tool
	version  string
	debug    bool
	log      zerolog.Logger
}

// NewServer assembles a server over the pipeline service, exporter and
// oauth manager. debug enables frame logging, always redacted.
func NewServer(service *pipeline.Service, exporter *export.Exporter, auth *oauth.Manager, table *hmrc.CategoryTable, version string, debug bool, log zerolog.Logger) *Server {
	return &Server{
		service:  service,
		exporter: exporter,
		auth:     auth,
		demo:     source.NewMockSource(),
		table:    table,
		tools:    buildTools(),
		version:  version,
		debug:    debug,
		log:      log.With().Str("component", "mcp").Logger(),
	}
}

// Run reads newline-delimited JSON-RPC frames from r until EOF or
// context cancellation and writes responses to w. Malformed frames get
// a parse error response; they never stop the loop.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	s.log.Info().Str("version", s.version).Msg("MCP server started, waiting for requests")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := s.Handle(ctx, []byte(line))
		if resp == nil {
			continue
		}
		if err := s.write(w, resp); err != nil {
			return fmt.Errorf("Run: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("Run: %w", err)
	}

	s.log.Info().Msg("MCP input closed, shutting down")
	return nil
}

// Handle processes one frame and returns the response, or nil when the
// frame is a notification.
func (s *Server) Handle(ctx context.Context, frame []byte) *Response {
	s.logFrame("rpc_in", frame)

	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		return newErrorResponse(nil, CodeParseError, fmt.Sprintf("Parse error: %v", err))
	}

	switch req.Method {
	case "initialize":
		return newResponse(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: serverName, Version: s.version},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return newResponse(req.ID, struct{}{})
	case "tools/list":
		s.log.Debug().Int("tools", len(s.tools)).Msg("Tools list requested")
		return newResponse(req.ID, ToolsListResult{Tools: s.tools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return newErrorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) *Response {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return newErrorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("Invalid params: %v", err))
	}

	result, rpcErr := s.dispatchTool(ctx, params.Name, params.Arguments)
	if rpcErr != nil {
		s.log.Error().Str("tool", params.Name).Int("code", rpcErr.Code).Msg(rpcErr.Message)
		return newErrorResponse(req.ID, rpcErr.Code, rpcErr.Message)
	}
	return newResponse(req.ID, result)
}

func (s *Server) write(w io.Writer, resp *Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.logFrame("rpc_out", body)
	if _, err := w.Write(append(body, '\n')); err != nil {
		return err
	}
	return nil
}

// logFrame logs a frame to stderr with sensitive fields redacted. Only
// active in debug mode; frames can carry codes and token previews.
func (s *Server) logFrame(direction string, frame []byte) {
	if !s.debug {
		return
	}
	s.log.Debug().RawJSON("frame", redactFrame(frame)).Msg(direction)
}

// redactFrame blanks authorization codes and token-bearing content
// before a frame is logged. The frame itself is never modified.
func redactFrame(frame []byte) []byte {
	var data map[string]any
	if err := json.Unmarshal(frame, &data); err != nil {
		return []byte(`"unparsable frame"`)
	}

	if params, ok := data["params"].(map[string]any); ok {
		if args, ok := params["arguments"].(map[string]any); ok {
			if _, ok := args["code"]; ok {
				args["code"] = "[REDACTED]"
			}
		}
	}
	if result, ok := data["result"].(map[string]any); ok {
		if content, ok := result["content"].([]any); ok && len(content) > 0 {
			if block, ok := content[0].(map[string]any); ok {
				if text, ok := block["text"].(string); ok {
					if strings.Contains(text, "access_token") || strings.Contains(text, "refresh_token") {
						block["text"] = "[REDACTED_TOKEN_DATA]"
					}
				}
			}
		}
	}

	out, err := json.Marshal(data)
	if err != nil {
		return []byte(`"unparsable frame"`)
	}
	return out
}
