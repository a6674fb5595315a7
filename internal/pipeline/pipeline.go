// Package pipeline drives the generate → extract → validate loop.
//
// One invocation is strictly sequential: build the conversation, call
// the generation service, extract fields, run every gate. On gate
// failures the raw attempt plus a diagnostic message are appended to
// the conversation and the service is called again, up to the retry
// budget. Transport errors are fatal and never retried here; the
// terminal result always reflects the last attempt made, accepted or
// not. Invocations share no mutable state, so callers may run any
// number of them concurrently.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mtholland/briefgen/internal/extract"
	"github.com/mtholland/briefgen/internal/llm"
	"github.com/mtholland/briefgen/internal/novelty"
	"github.com/mtholland/briefgen/internal/validate"
)

// DefaultMaxRetries is the retry budget after the first generation call.
const DefaultMaxRetries = 2

// DefaultItemCount is the expected number of ranked entries.
const DefaultItemCount = 3

// Request describes one brief to generate.
type Request struct {
	Topic             string
	Context           string // caller-supplied background to embed in the prompt
	Template          string // template name (default "daily-brief")
	ExpectedItemCount int
	AllowedCategories []string
	Prior             *extract.Attempt // prior brief, nil when none exists
	NoveltyCheck      bool
	RequireResolution bool
	MaxRetries        int // additional calls after the first; callers usually pass DefaultMaxRetries
}

// Result is the terminal outcome of one invocation. It is a snapshot:
// nothing mutates it after Run returns.
type Result struct {
	FinalText  string              `json:"final_text"`
	Items      []extract.Item      `json:"items"`
	Resolution *extract.Resolution `json:"resolution,omitempty"`
	Highlights []string            `json:"highlights,omitempty"`
	Similarity *novelty.Report     `json:"similarity,omitempty"`
	Errors     []validate.Error    `json:"errors,omitempty"`
	Accepted   bool                `json:"accepted"`
	RetryCount int                 `json:"retry_count"`
	Model      string              `json:"model"`
	Duration   time.Duration       `json:"duration"`
}

// Orchestrator runs the validation-gated retry loop against one
// generation provider. Safe for concurrent use.
type Orchestrator struct {
	provider  llm.Provider
	configDir string // for custom templates; empty = builtins only
}

// New creates an orchestrator.
func New(provider llm.Provider, configDir string) (*Orchestrator, error) {
	if provider == nil {
		return nil, fmt.Errorf("generation provider is required")
	}
	return &Orchestrator{provider: provider, configDir: configDir}, nil
}

// Run executes the pipeline for one request. A non-nil error means the
// generation service itself failed (transport, rate limit, malformed
// response) — validation failures never surface as errors; they either
// resolve through retries or come back inside the Result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if req.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if req.ExpectedItemCount <= 0 {
		req.ExpectedItemCount = DefaultItemCount
	}
	if req.MaxRetries < 0 {
		req.MaxRetries = 0
	}
	templateName := req.Template
	if templateName == "" {
		templateName = "daily-brief"
	}

	tpl, err := GetTemplate(templateName, o.configDir)
	if err != nil {
		return nil, err
	}

	rules := validate.Rules{
		ExpectedItemCount: req.ExpectedItemCount,
		AllowedCategories: req.AllowedCategories,
		RequireResolution: req.RequireResolution,
		NoveltyCheck:      req.NoveltyCheck,
	}

	conversation := []llm.Message{
		{Role: llm.RoleSystem, Content: tpl.System},
		{Role: llm.RoleUser, Content: renderUser(tpl, req)},
	}
	opts := llm.CompletionOpts{MaxTokens: tpl.MaxTokens}

	for retries := 0; ; retries++ {
		text, err := o.provider.Complete(ctx, conversation, opts)
		if err != nil {
			return nil, fmt.Errorf("generation service: %w", err)
		}

		attempt := extract.Parse(text)
		errs, simReport := validate.RunGates(attempt, rules, req.Prior)

		if len(errs) == 0 || retries == req.MaxRetries {
			return &Result{
				FinalText:  attempt.RawText,
				Items:      attempt.Items,
				Resolution: attempt.Resolution,
				Highlights: attempt.Highlights,
				Similarity: simReport,
				Errors:     errs,
				Accepted:   len(errs) == 0,
				RetryCount: retries,
				Model:      o.provider.Name(),
				Duration:   time.Since(start),
			}, nil
		}

		// Feed the failed attempt and its diagnostics back so the next
		// attempt can address every problem at once.
		conversation = append(conversation,
			llm.Message{Role: llm.RoleAssistant, Content: text},
			llm.Message{Role: llm.RoleUser, Content: feedbackMessage(errs)},
		)
	}
}

// feedbackMessage restates every gate failure for the model.
func feedbackMessage(errs []validate.Error) string {
	var b strings.Builder
	b.WriteString("The brief above was rejected. Fix every problem below and return the corrected brief in full, same structure:\n")
	for _, e := range errs {
		fmt.Fprintf(&b, "- %s\n", e.String())
	}
	b.WriteString("Return only the corrected brief.")
	return b.String()
}
