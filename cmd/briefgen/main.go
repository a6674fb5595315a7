package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/mtholland/briefgen/internal/config"
	"github.com/mtholland/briefgen/internal/llm"
	"github.com/mtholland/briefgen/internal/mcp"
	"github.com/mtholland/briefgen/internal/pipeline"
	"github.com/mtholland/briefgen/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "clear":
		err = runClear(os.Args[2:])
	case "templates":
		err = runTemplates(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("briefgen %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolvedEnv bundles everything the data-touching commands need.
type resolvedEnv struct {
	cfg config.ResolvedConfig
	st  store.Store
}

func openEnv(configPath, llmFlag, dbFlag string) (*resolvedEnv, error) {
	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: configPath,
		CLILLM:     llmFlag,
		CLIDBPath:  dbFlag,
	})
	if err != nil {
		return nil, err
	}
	st, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return &resolvedEnv{cfg: cfg, st: st}, nil
}

func (e *resolvedEnv) provider() (llm.Provider, error) {
	pc, err := llm.ParseProviderFlag(e.cfg.LLMModel.Value)
	if err != nil {
		return nil, err
	}
	pc.APIKey = e.cfg.APIKey.Value
	if secs, err := strconv.Atoi(e.cfg.TimeoutSecs.Value); err == nil && secs > 0 {
		pc.Timeout = time.Duration(secs) * time.Second
	}
	return llm.NewProvider(pc)
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	contextNotes := fs.String("context", "", "background notes to summarize into the brief")
	template := fs.String("template", "", "template name (default: daily-brief)")
	items := fs.Int("items", 0, "required number of ranked priority entries")
	categories := fs.String("categories", "", "comma-separated allowed category tags")
	maxRetries := fs.Int("max-retries", -1, "regeneration attempts after the first draft")
	requireResolution := fs.Bool("require-resolution", false, "require a resolution statement when a prior brief exists")
	noNovelty := fs.Bool("no-novelty", false, "skip the repeated-content check against the prior brief")
	jsonOut := fs.Bool("json", false, "print the full result as JSON")
	llmFlag := fs.String("llm", "", "provider/model, e.g. google/gemini-2.5-flash")
	dbFlag := fs.String("db", "", "database path override")
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: briefgen generate <topic> [flags]")
	}
	topic := strings.Join(fs.Args(), " ")

	env, err := openEnv(*configPath, *llmFlag, *dbFlag)
	if err != nil {
		return err
	}
	defer env.st.Close()

	provider, err := env.provider()
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Topic:             topic,
		Context:           *contextNotes,
		Template:          *template,
		NoveltyCheck:      !*noNovelty,
		RequireResolution: *requireResolution,
	}
	if req.NoveltyCheck && env.cfg.NoveltyCheck.Value == "false" {
		req.NoveltyCheck = false
	}
	if !req.RequireResolution && env.cfg.RequireResolution.Value == "true" {
		req.RequireResolution = true
	}
	if *items > 0 {
		req.ExpectedItemCount = *items
	} else if n, err := strconv.Atoi(env.cfg.ItemCount.Value); err == nil {
		req.ExpectedItemCount = n
	}
	if *categories != "" {
		req.AllowedCategories = splitList(*categories)
	} else {
		req.AllowedCategories = env.cfg.CategoryList()
	}
	if *maxRetries >= 0 {
		req.MaxRetries = *maxRetries
	} else if n, err := strconv.Atoi(env.cfg.MaxRetries.Value); err == nil {
		req.MaxRetries = n
	}

	ctx := context.Background()
	prior, err := env.st.LatestBrief(ctx, topic)
	if err != nil {
		return fmt.Errorf("loading prior brief: %w", err)
	}
	if prior != nil {
		req.Prior = prior.Attempt()
	}

	orch, err := pipeline.New(provider, config.DefaultConfigDir())
	if err != nil {
		return err
	}

	result, err := orch.Run(ctx, req)
	if err != nil {
		return err
	}

	brief := &store.Brief{
		Topic:      topic,
		Template:   req.Template,
		Content:    result.FinalText,
		ItemsJSON:  store.MarshalItems(result.Items),
		Accepted:   result.Accepted,
		RetryCount: result.RetryCount,
		Model:      result.Model,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := env.st.AddBrief(ctx, brief); err != nil {
		return fmt.Errorf("archiving brief: %w", err)
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(result.FinalText)
	fmt.Println()
	if result.Accepted {
		fmt.Printf("Accepted after %d retr%s (%s, %s).\n",
			result.RetryCount, plural(result.RetryCount, "y", "ies"), result.Model, result.Duration.Round(time.Millisecond))
	} else {
		fmt.Printf("NOT accepted after %d retr%s (%s):\n",
			result.RetryCount, plural(result.RetryCount, "y", "ies"), result.Model)
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	fmt.Printf("Archived as %s\n", brief.UID)
	return nil
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	dbFlag := fs.String("db", "", "database path override")
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: briefgen show <topic>")
	}
	topic := strings.Join(fs.Args(), " ")

	env, err := openEnv(*configPath, "", *dbFlag)
	if err != nil {
		return err
	}
	defer env.st.Close()

	brief, err := env.st.LatestBrief(context.Background(), topic)
	if err != nil {
		return err
	}
	if brief == nil {
		return fmt.Errorf("no brief found for topic %q", topic)
	}

	fmt.Println(brief.Content)
	fmt.Printf("\n[%s] %s, retries=%d, accepted=%t\n",
		brief.UID, brief.CreatedAt.Format(time.RFC3339), brief.RetryCount, brief.Accepted)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	topic := fs.String("topic", "", "only list briefs for this topic")
	limit := fs.Int("limit", 20, "maximum number of results")
	dbFlag := fs.String("db", "", "database path override")
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := openEnv(*configPath, "", *dbFlag)
	if err != nil {
		return err
	}
	defer env.st.Close()

	briefs, err := env.st.ListBriefs(context.Background(), store.ListOpts{Topic: *topic, Limit: *limit})
	if err != nil {
		return err
	}
	if len(briefs) == 0 {
		fmt.Println("No briefs archived.")
		return nil
	}

	for _, b := range briefs {
		status := "accepted"
		if !b.Accepted {
			status = "rejected"
		}
		fmt.Printf("%s  %-20s  %s  retries=%d  %s\n",
			b.CreatedAt.Format("2006-01-02 15:04"), b.Topic, status, b.RetryCount, b.UID)
	}
	return nil
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("limit", 10, "maximum number of results")
	dbFlag := fs.String("db", "", "database path override")
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: briefgen search <query>")
	}
	query := strings.Join(fs.Args(), " ")

	env, err := openEnv(*configPath, "", *dbFlag)
	if err != nil {
		return err
	}
	defer env.st.Close()

	results, err := env.st.SearchBriefs(context.Background(), query, *limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for _, r := range results {
		fmt.Printf("[%.2f] %s (%s)\n", r.Score, r.Brief.Topic, r.Brief.CreatedAt.Format("2006-01-02"))
		if r.Snippet != "" {
			fmt.Printf("       %s\n", r.Snippet)
		}
	}
	return nil
}

func runClear(args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	topic := fs.String("topic", "", "topic whose briefs should be removed (empty = all)")
	dbFlag := fs.String("db", "", "database path override")
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := openEnv(*configPath, "", *dbFlag)
	if err != nil {
		return err
	}
	defer env.st.Close()

	n, err := env.st.ClearBriefs(context.Background(), *topic)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d brief(s).\n", n)
	return nil
}

func runTemplates(args []string) error {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, t := range pipeline.ListTemplates(config.DefaultConfigDir()) {
		fmt.Printf("%-16s  %s\n", t.Name, t.Description)
	}
	return nil
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.ResolveConfig(config.ResolveOptions{ConfigPath: *configPath})
	if err != nil {
		return err
	}

	fmt.Printf("Config file: %s\n\n", cfg.ConfigPath)
	printResolved("db_path", cfg.DBPath, store.DefaultDBPath)
	printResolved("llm", cfg.LLMModel, "")
	printResolved("item_count", cfg.ItemCount, "")
	printResolved("categories", cfg.Categories, "(any)")
	printResolved("max_retries", cfg.MaxRetries, "")
	printResolved("novelty_check", cfg.NoveltyCheck, "")
	printResolved("require_resolution", cfg.RequireResolution, "")
	printResolved("timeout_secs", cfg.TimeoutSecs, "")
	return nil
}

func printResolved(name string, v config.ResolvedValue, fallback string) {
	value := v.Value
	if value == "" {
		value = fallback
	}
	from := string(v.Source)
	if v.From != "" {
		from = fmt.Sprintf("%s: %s", v.Source, v.From)
	}
	fmt.Printf("  %-20s %-40s (%s)\n", name, value, from)
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbFlag := fs.String("db", "", "database path override")
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := openEnv(*configPath, "", *dbFlag)
	if err != nil {
		return err
	}
	defer env.st.Close()

	stats, err := env.st.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Briefs:   %d\n", stats.BriefCount)
	fmt.Printf("Accepted: %d\n", stats.AcceptedCount)
	fmt.Printf("Topics:   %d\n", stats.TopicCount)
	fmt.Printf("DB size:  %d bytes\n", stats.DBSizeBytes)
	return nil
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	llmFlag := fs.String("llm", "", "provider/model, e.g. google/gemini-2.5-flash")
	dbFlag := fs.String("db", "", "database path override")
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := openEnv(*configPath, *llmFlag, *dbFlag)
	if err != nil {
		return err
	}
	defer env.st.Close()

	// The MCP server still works read-only when no API key is available.
	provider, err := env.provider()
	if err != nil {
		fmt.Fprintf(os.Stderr, "brief_generate disabled: %v\n", err)
		provider = nil
	}

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:     env.st,
		Provider:  provider,
		ConfigDir: config.DefaultConfigDir(),
		Version:   version,
	})
	return mcpserver.ServeStdio(srv)
}

func splitList(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func printUsage() {
	fmt.Printf(`briefgen %s — Validated daily-brief generator

Usage:
  briefgen <command> [arguments]

Commands:
  generate <topic>    Generate a brief, validate it, retry until it passes
  show <topic>        Print the latest archived brief for a topic
  list                List archived briefs
  search <query>      Full-text search over archived briefs
  clear               Delete archived briefs (scoped with --topic)
  templates           List available prompt templates
  stats               Show archive statistics
  config              Show the effective configuration and its sources
  mcp                 Run as an MCP server over stdio
  version             Print version

Generate Flags:
  --context <notes>       Background notes to summarize
  --template <name>       Prompt template (default: daily-brief)
  --items <n>             Required number of ranked entries (default: 3)
  --categories <a,b,c>    Allowed category tags
  --max-retries <n>       Regeneration budget after the first draft (default: 2)
  --require-resolution    Require a resolution statement vs the prior brief
  --no-novelty            Skip the repeated-content check
  --json                  Print the full result as JSON
  --llm <provider/model>  e.g. google/gemini-2.5-flash, openrouter/openai/gpt-4o-mini

Flags:
  --db <path>             Database path (default: %s)
  --config <path>         Config file (default: ~/.briefgen/config.yaml)
  -h, --help              Show this help message
  -v, --version           Print version
`, version, store.DefaultDBPath)
}
