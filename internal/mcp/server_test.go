package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mtholland/briefgen/internal/llm"
	"github.com/mtholland/briefgen/internal/store"
)

const sampleBrief = `# Daily Brief — payments

## Top Priorities
1) Priority: Ship the payment audit (Ops)
2) Priority: Close the Fenwick contract (Legal)
3) Priority: Hire two data engineers (Hiring)

## Highlights
- Churn down 2% month over month
`

// fakeProvider always returns the same text.
type fakeProvider struct {
	response string
}

func (f *fakeProvider) Complete(_ context.Context, _ []llm.Message, _ llm.CompletionOpts) (string, error) {
	return f.response, nil
}

func (f *fakeProvider) Name() string { return "fake/test-model" }

// helper: create a test store with some data
func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewStore(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	briefs := []*store.Brief{
		{Topic: "payments", Content: sampleBrief, Accepted: true, CreatedAt: time.Now().UTC()},
		{Topic: "hiring", Content: "# Daily Brief — hiring\n\n## Top Priorities\n1) Priority: Screen backend candidates (Hiring)\n", Accepted: false, CreatedAt: time.Now().UTC()},
	}
	for _, b := range briefs {
		if _, err := s.AddBrief(ctx, b); err != nil {
			t.Fatalf("adding test brief: %v", err)
		}
	}
	return s
}

func TestNewServer(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool is a helper that invokes an MCP tool over the JSON-RPC surface.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}

	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}

func TestListTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "brief_list", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("brief_list returned error: %s", getTextContent(t, result))
	}

	var briefs []*store.Brief
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &briefs); err != nil {
		t.Fatalf("parsing list output: %v", err)
	}
	if len(briefs) != 2 {
		t.Fatalf("expected 2 briefs, got %d", len(briefs))
	}

	result = callTool(t, srv, "brief_list", map[string]interface{}{"topic": "payments"})
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &briefs); err != nil {
		t.Fatalf("parsing filtered list output: %v", err)
	}
	if len(briefs) != 1 || briefs[0].Topic != "payments" {
		t.Fatalf("topic filter failed: %+v", briefs)
	}
}

func TestSearchTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "brief_search", map[string]interface{}{"query": "payment audit"})
	if result.IsError {
		t.Fatalf("brief_search returned error: %s", getTextContent(t, result))
	}

	var hits []*store.SearchResult
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &hits); err != nil {
		t.Fatalf("parsing search output: %v", err)
	}
	if len(hits) != 1 || hits[0].Brief.Topic != "payments" {
		t.Fatalf("expected one payments hit, got %+v", hits)
	}
}

func TestSearchToolRequiresQuery(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "brief_search", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error for missing query")
	}
}

func TestClearTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "brief_clear", map[string]interface{}{"topic": "hiring"})
	if result.IsError {
		t.Fatalf("brief_clear returned error: %s", getTextContent(t, result))
	}
	if !strings.Contains(getTextContent(t, result), "1") {
		t.Fatalf("expected one removal, got: %s", getTextContent(t, result))
	}

	remaining, err := s.ListBriefs(context.Background(), store.ListOpts{})
	if err != nil {
		t.Fatalf("ListBriefs: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Topic != "payments" {
		t.Fatalf("unexpected remaining briefs: %+v", remaining)
	}
}

func TestStatsTool(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "brief_stats", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("brief_stats returned error: %s", getTextContent(t, result))
	}

	var stats store.Stats
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &stats); err != nil {
		t.Fatalf("parsing stats output: %v", err)
	}
	if stats.BriefCount != 2 || stats.AcceptedCount != 1 || stats.TopicCount != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestGenerateToolArchivesResult(t *testing.T) {
	s := setupTestStore(t)
	provider := &fakeProvider{response: sampleBrief}
	srv := NewServer(ServerConfig{Store: s, Provider: provider})

	result := callTool(t, srv, "brief_generate", map[string]interface{}{
		"topic":      "launch",
		"categories": "Ops, Legal, Hiring",
	})
	if result.IsError {
		t.Fatalf("brief_generate returned error: %s", getTextContent(t, result))
	}

	var out struct {
		Accepted   bool   `json:"accepted"`
		RetryCount int    `json:"retry_count"`
		UID        string `json:"uid"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &out); err != nil {
		t.Fatalf("parsing generate output: %v", err)
	}
	if !out.Accepted || out.RetryCount != 0 {
		t.Fatalf("expected first-attempt acceptance, got %+v", out)
	}
	if out.UID == "" {
		t.Fatal("expected archived brief UID")
	}

	stored, err := s.LatestBrief(context.Background(), "launch")
	if err != nil {
		t.Fatalf("LatestBrief: %v", err)
	}
	if stored == nil || stored.Content != sampleBrief || !stored.Accepted {
		t.Fatalf("brief not archived correctly: %+v", stored)
	}
}

func TestGenerateToolRequiresTopic(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s, Provider: &fakeProvider{response: sampleBrief}})

	result := callTool(t, srv, "brief_generate", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error for missing topic")
	}
}

func TestGenerateToolDisabledWithoutProvider(t *testing.T) {
	s := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      "brief_generate",
			"arguments": map[string]interface{}{"topic": "launch"},
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected JSON-RPC error for unregistered tool")
	}
}
