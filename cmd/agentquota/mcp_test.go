package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/config"
	"github.com/janekbaraniewski/agentquota/internal/core"
)

type stubProvider struct {
	id    string
	usage *core.Usage
	err   error
}

func (p *stubProvider) ID() string { return p.id }

func (p *stubProvider) Describe() core.ProviderInfo {
	return core.ProviderInfo{Name: p.id}
}

func (p *stubProvider) Fetch(_ context.Context, _ core.AccountConfig) (*core.Usage, error) {
	return p.usage, p.err
}

func testUsage(percent float64) *core.Usage {
	reset := time.Now().Add(2 * time.Hour)
	minutes := 300
	return &core.Usage{
		Windows: core.WindowSet{
			Short: &core.ClassifiedWindow{
				Slot:          core.SlotShort,
				UsedPercent:   percent,
				WindowMinutes: &minutes,
				ResetAt:       reset,
			},
		},
	}
}

func newTestServer(t *testing.T, input string) (*mcpServer, *bytes.Buffer) {
	t.Helper()
	engine := core.NewEngine(time.Second)
	engine.RegisterProvider(&stubProvider{id: "claude", usage: testUsage(42)})
	engine.RegisterProvider(&stubProvider{
		id:  "codex",
		err: core.Errf(core.ReasonNoCredentials, "no auth file"),
	})

	out := &bytes.Buffer{}
	return &mcpServer{
		engine: engine,
		cfg:    config.DefaultConfig(),
		in:     strings.NewReader(input),
		out:    out,
	}, out
}

func decodeResponses(t *testing.T, out *bytes.Buffer) []rpcResponse {
	t.Helper()
	var responses []rpcResponse
	dec := json.NewDecoder(out)
	for dec.More() {
		var resp rpcResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestMCPInitializeAndToolsList(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}
{"jsonrpc":"2.0","method":"notifications/initialized"}
{"jsonrpc":"2.0","id":2,"method":"tools/list"}
`
	server, out := newTestServer(t, input)
	if err := server.serve(context.Background()); err != nil {
		t.Fatalf("serve returned error: %v", err)
	}

	responses := decodeResponses(t, out)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses (notification skipped), got %d", len(responses))
	}

	init, _ := json.Marshal(responses[0].Result)
	if !strings.Contains(string(init), `"agentquota"`) {
		t.Errorf("initialize result missing server name: %s", init)
	}

	tools, _ := json.Marshal(responses[1].Result)
	if !strings.Contains(string(tools), `"quota_status"`) {
		t.Errorf("tools/list missing quota_status: %s", tools)
	}
}

func TestMCPQuotaStatusCall(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"quota_status","arguments":{}}}
`
	server, out := newTestServer(t, input)
	if err := server.serve(context.Background()); err != nil {
		t.Fatalf("serve returned error: %v", err)
	}

	responses := decodeResponses(t, out)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if responses[0].Error != nil {
		t.Fatalf("unexpected error: %+v", responses[0].Error)
	}

	payload, _ := json.Marshal(responses[0].Result)
	text := string(payload)
	for _, want := range []string{"PROVIDER", "claude", "42% used", "codex", "login required"} {
		if !strings.Contains(text, want) {
			t.Errorf("tool result missing %q in %s", want, text)
		}
	}
	if strings.Contains(text, `"isError":true`) {
		t.Errorf("no-data result should not flag isError: %s", text)
	}
}

func TestMCPUnknownMethodAndTool(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":4,"method":"resources/list"}
{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope"}}
`
	server, out := newTestServer(t, input)
	if err := server.serve(context.Background()); err != nil {
		t.Fatalf("serve returned error: %v", err)
	}

	responses := decodeResponses(t, out)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].Error == nil || responses[0].Error.Code != rpcMethodNotFound {
		t.Errorf("expected method-not-found, got %+v", responses[0].Error)
	}
	if responses[1].Error == nil || responses[1].Error.Code != rpcInvalidParams {
		t.Errorf("expected invalid-params for unknown tool, got %+v", responses[1].Error)
	}
}

func TestMCPMalformedLine(t *testing.T) {
	server, out := newTestServer(t, "not json\n")
	if err := server.serve(context.Background()); err != nil {
		t.Fatalf("serve returned error: %v", err)
	}

	responses := decodeResponses(t, out)
	if len(responses) != 1 || responses[0].Error == nil || responses[0].Error.Code != rpcParseError {
		t.Fatalf("expected parse error response, got %+v", responses)
	}
}
