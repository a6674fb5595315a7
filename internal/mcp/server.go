// Package mcp provides a Model Context Protocol server for briefgen.
//
// It exposes brief generation and the brief archive (search, list, clear,
// stats) as MCP tools, plus archive statistics and recent briefs as MCP
// resources. Supports stdio transport for MCP-capable clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mtholland/briefgen/internal/llm"
	"github.com/mtholland/briefgen/internal/pipeline"
	"github.com/mtholland/briefgen/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store     store.Store
	Provider  llm.Provider // nil disables brief_generate
	ConfigDir string       // for custom templates; empty = builtins only
	Version   string
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines.
// SQLite (even with WAL) supports only one writer at a time, and concurrent
// reads during writes can return stale results. A global mutex ensures
// correct ordering: a generated brief is persisted before searches see it.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all briefgen tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Briefgen",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	if cfg.Provider != nil {
		registerGenerateTool(s, cfg.Store, cfg.Provider, cfg.ConfigDir)
	}
	registerSearchTool(s, cfg.Store)
	registerListTool(s, cfg.Store)
	registerClearTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	registerStatsResource(s, cfg.Store)
	registerRecentResource(s, cfg.Store)

	return s
}

// --- Tools ---

func registerGenerateTool(s *server.MCPServer, st store.Store, provider llm.Provider, configDir string) {
	tool := mcp.NewTool("brief_generate",
		mcp.WithDescription("Generate a structured daily brief for a topic. The draft is checked against structural rules and rewritten until it passes or the retry budget runs out. The result is archived and returned with its validation outcome."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Subject of the brief, e.g. 'payments launch'"),
		),
		mcp.WithString("context",
			mcp.Description("Background notes to summarize into the brief"),
		),
		mcp.WithString("template",
			mcp.Description("Template name (default: daily-brief)"),
		),
		mcp.WithNumber("item_count",
			mcp.Description("Number of ranked priority entries required (default: 3)"),
		),
		mcp.WithString("categories",
			mcp.Description("Comma-separated allowed category tags. Empty = any category accepted."),
		),
		mcp.WithNumber("max_retries",
			mcp.Description("Regeneration attempts after the first draft (default: 2)"),
		),
		mcp.WithBoolean("require_resolution",
			mcp.Description("Require a resolution statement when a prior brief exists for the topic"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		topic, err := req.RequireString("topic")
		if err != nil {
			return mcp.NewToolResultError("topic is required"), nil
		}

		preq := pipeline.Request{
			Topic:        topic,
			NoveltyCheck: true,
			MaxRetries:   pipeline.DefaultMaxRetries,
		}

		if v, err := req.RequireString("context"); err == nil {
			preq.Context = v
		}
		if v, err := req.RequireString("template"); err == nil && v != "" {
			preq.Template = v
		}
		if v, err := req.RequireFloat("item_count"); err == nil && int(v) > 0 {
			preq.ExpectedItemCount = int(v)
		}
		if v, err := req.RequireString("categories"); err == nil && v != "" {
			preq.AllowedCategories = splitCategories(v)
		}
		if v, err := req.RequireFloat("max_retries"); err == nil && int(v) >= 0 {
			preq.MaxRetries = int(v)
		}
		if v, err := req.RequireString("require_resolution"); err == nil && v == "true" {
			preq.RequireResolution = true
		}

		prior, err := st.LatestBrief(ctx, topic)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading prior brief: %v", err)), nil
		}
		if prior != nil {
			preq.Prior = prior.Attempt()
		}

		orch, err := pipeline.New(provider, configDir)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("pipeline setup: %v", err)), nil
		}

		result, err := orch.Run(ctx, preq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("generation error: %v", err)), nil
		}

		brief := &store.Brief{
			Topic:      topic,
			Template:   preq.Template,
			Content:    result.FinalText,
			ItemsJSON:  store.MarshalItems(result.Items),
			Accepted:   result.Accepted,
			RetryCount: result.RetryCount,
			Model:      result.Model,
			CreatedAt:  time.Now().UTC(),
		}
		if _, err := st.AddBrief(ctx, brief); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("archiving brief: %v", err)), nil
		}

		out := struct {
			*pipeline.Result
			UID string `json:"uid"`
		}{result, brief.UID}

		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSearchTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("brief_search",
		mcp.WithDescription("Full-text search over archived briefs. Returns scored results with snippets."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := 10
		if v, err := req.RequireFloat("limit"); err == nil && int(v) > 0 {
			limit = int(v)
			if limit > 50 {
				limit = 50
			}
		}

		results, err := st.SearchBriefs(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(results, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerListTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("brief_list",
		mcp.WithDescription("List archived briefs, newest first. Optionally scoped to a topic."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("topic",
			mcp.Description("Only list briefs for this topic. Empty = all topics."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		opts := store.ListOpts{Limit: 20}
		if topic, err := req.RequireString("topic"); err == nil {
			opts.Topic = topic
		}
		if v, err := req.RequireFloat("limit"); err == nil && int(v) > 0 {
			opts.Limit = int(v)
			if opts.Limit > 100 {
				opts.Limit = 100
			}
		}

		briefs, err := st.ListBriefs(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(briefs, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerClearTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("brief_clear",
		mcp.WithDescription("Delete archived briefs for a topic, or all briefs when no topic is given."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("topic",
			mcp.Description("Topic whose briefs should be removed. Empty = clear everything."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		topic := ""
		if v, err := req.RequireString("topic"); err == nil {
			topic = v
		}

		n, err := st.ClearBriefs(ctx, topic)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("clear error: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Removed %d brief(s).", n)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("brief_stats",
		mcp.WithDescription("Archive statistics: brief count, accepted count, topic count, database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"briefgen://stats",
		"Archive Statistics",
		mcp.WithResourceDescription("Brief archive statistics including counts and storage size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerRecentResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"briefgen://recent",
		"Recent Briefs",
		mcp.WithResourceDescription("The 20 most recently generated briefs."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		briefs, err := st.ListBriefs(ctx, store.ListOpts{Limit: 20})
		if err != nil {
			return nil, fmt.Errorf("listing recent briefs: %w", err)
		}

		// Build compact representation
		type recentBrief struct {
			UID       string `json:"uid"`
			Topic     string `json:"topic"`
			Accepted  bool   `json:"accepted"`
			Snippet   string `json:"snippet"`
			CreatedAt string `json:"created_at"`
		}
		recent := make([]recentBrief, 0, len(briefs))
		for _, b := range briefs {
			snippet := b.Content
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			recent = append(recent, recentBrief{
				UID:       b.UID,
				Topic:     b.Topic,
				Accepted:  b.Accepted,
				Snippet:   snippet,
				CreatedAt: b.CreatedAt.Format(time.RFC3339),
			})
		}

		data, _ := json.MarshalIndent(recent, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func splitCategories(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
