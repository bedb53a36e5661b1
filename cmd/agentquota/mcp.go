package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/config"
	"github.com/janekbaraniewski/agentquota/internal/core"
	"github.com/janekbaraniewski/agentquota/internal/version"
	"github.com/spf13/cobra"
)

func newMCPCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve quota status as an MCP tool over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			server := &mcpServer{
				engine: buildEngine(cfg),
				cfg:    cfg,
				in:     os.Stdin,
				out:    os.Stdout,
			}
			return server.serve(cmd.Context())
		},
	}
}

// mcpServer speaks newline-delimited JSON-RPC 2.0 on stdin/stdout and
// exposes one tool, quota_status, whose text content is the same table
// and summary the CLI prints.
type mcpServer struct {
	engine *core.Engine
	cfg    config.Config
	in     io.Reader
	out    io.Writer
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	rpcParseError     = -32700
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
)

func (s *mcpServer) serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.reply(rpcResponse{JSONRPC: "2.0", Error: &rpcError{rpcParseError, "parse error"}})
			continue
		}
		if req.ID == nil {
			// Notification; nothing to answer.
			continue
		}
		s.reply(s.handle(ctx, req))
	}
	return scanner.Err()
}

func (s *mcpServer) handle(ctx context.Context, req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    "agentquota",
				"version": version.Version,
			},
		}

	case "ping":
		resp.Result = map[string]any{}

	case "tools/list":
		resp.Result = map[string]any{"tools": []map[string]any{{
			"name":        "quota_status",
			"description": "Current rate-limit/quota status for local AI coding-assistant accounts (Claude, Codex, Copilot, Gemini).",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"providers": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Provider IDs to query; all when omitted.",
					},
				},
			},
		}}}

	case "tools/call":
		result, rpcErr := s.callTool(ctx, req.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}

	default:
		resp.Error = &rpcError{rpcMethodNotFound, fmt.Sprintf("method %q not found", req.Method)}
	}
	return resp
}

func (s *mcpServer) callTool(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var call struct {
		Name      string `json:"name"`
		Arguments struct {
			Providers []string `json:"providers"`
		} `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &rpcError{rpcInvalidParams, "invalid tool call params"}
	}
	if call.Name != "quota_status" {
		return nil, &rpcError{rpcInvalidParams, fmt.Sprintf("unknown tool %q", call.Name)}
	}

	opts := core.FetchOptions{Providers: call.Arguments.Providers}
	if len(opts.Providers) == 0 {
		opts.Providers = s.cfg.Providers
	}

	results, summary := s.engine.FetchAll(ctx, opts)

	order := opts.Providers
	if len(order) == 0 {
		order = s.engine.ProviderIDs()
	}
	rows := core.BuildRows(results, order, time.Now())
	text := core.FormatTable(rows, nil) + "\n" + summary.Message

	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"isError": core.HasErrors(results),
	}, nil
}

func (s *mcpServer) reply(resp rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("mcp: encoding response: %v", err)
		return
	}
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		log.Printf("mcp: writing response: %v", err)
	}
}
