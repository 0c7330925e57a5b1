package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tturner/sftpsync/internal/agent"
	"github.com/tturner/sftpsync/internal/logging"
)

func newTestRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	registry := agent.NewRegistry(logger)
	registry.Register("ping", func(args json.RawMessage) any {
		return map[string]string{"pong": "ok"}
	})
	registry.Register("echo", func(args json.RawMessage) any {
		var payload map[string]any
		if err := json.Unmarshal(args, &payload); err != nil {
			return agent.Errorf("%v", err)
		}
		return payload
	})
	return registry
}

func TestRunAgentLoop_DispatchesRequests(t *testing.T) {
	in := strings.NewReader(`{"id": 1, "op": "ping"}
{"id": 2, "op": "echo", "args": {"msg": "hello"}}
`)
	var out bytes.Buffer

	if err := runAgentLoop(in, &out, newTestRegistry(t)); err != nil {
		t.Fatalf("runAgentLoop: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d response lines, want 2: %q", len(lines), out.String())
	}

	var first struct {
		ID     int               `json:"id"`
		Result map[string]string `json:"result"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first response: %v", err)
	}
	if first.ID != 1 {
		t.Errorf("first response id = %d, want 1", first.ID)
	}
	if first.Result["pong"] != "ok" {
		t.Errorf("first result = %v, want pong ok", first.Result)
	}

	var second struct {
		ID     int            `json:"id"`
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second response: %v", err)
	}
	if second.ID != 2 {
		t.Errorf("second response id = %d, want 2", second.ID)
	}
	if second.Result["msg"] != "hello" {
		t.Errorf("second result = %v, want msg hello", second.Result)
	}
}

func TestRunAgentLoop_MalformedLineContinues(t *testing.T) {
	in := strings.NewReader(`not json at all
{"id": 7, "op": "ping"}
`)
	var out bytes.Buffer

	if err := runAgentLoop(in, &out, newTestRegistry(t)); err != nil {
		t.Fatalf("runAgentLoop: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d response lines, want 2: %q", len(lines), out.String())
	}

	var bad struct {
		Result agent.ErrorResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &bad); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if !strings.Contains(bad.Result.Error, "malformed request") {
		t.Errorf("error = %q, want malformed request", bad.Result.Error)
	}

	if !strings.Contains(lines[1], `"pong":"ok"`) {
		t.Errorf("second line = %q, want pong response", lines[1])
	}
}

func TestRunAgentLoop_SkipsBlankLinesAndUnknownOps(t *testing.T) {
	in := strings.NewReader("\n\n" + `{"op": "bogus"}` + "\n")
	var out bytes.Buffer

	if err := runAgentLoop(in, &out, newTestRegistry(t)); err != nil {
		t.Fatalf("runAgentLoop: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d response lines, want 1: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "unknown operation: bogus") {
		t.Errorf("response = %q, want unknown operation error", lines[0])
	}
	if strings.Contains(lines[0], `"id"`) {
		t.Errorf("response = %q, want no id echoed for request without one", lines[0])
	}
}
