package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template defines a reusable brief template: a system prompt pinning
// the document structure and a user prompt with placeholders.
// Placeholders: {{topic}}, {{context}}, {{item_count}}, {{categories}},
// {{prior}}.
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	System      string `yaml:"system" json:"system"`
	User        string `yaml:"user" json:"user"`
	MaxTokens   int    `yaml:"max_tokens" json:"max_tokens"`
}

// BuiltinTemplates ship with briefgen.
var BuiltinTemplates = map[string]Template{
	"daily-brief": {
		Name:        "daily-brief",
		Description: "Short executive daily brief with ranked priorities, optional resolution, and highlights",
		System: `You are an executive chief of staff writing a short daily brief. Output ONLY the brief, no commentary.

The brief must follow this exact structure:

# Daily Brief — <topic>

## Top Priorities
1) Priority: <short title> (<Category>)
2) Priority: <short title> (<Category>)
...

Resolution: Previously: <old state> -> Now: <new state> -> Update: <revised plan>

## Highlights
- <one-line highlight>
- <one-line highlight>

Rules:
- Exactly the requested number of priorities, numbered "N) Priority:".
- Every category tag must come from the allowed list, spelled exactly.
- The Resolution line is optional and must never appear more than once.
- Each section heading appears exactly once.
- Priorities must not restate the previous brief's priorities.`,
		User: `Topic: {{topic}}

Write today's brief with exactly {{item_count}} top priorities.
Allowed categories: {{categories}}.

Context:
{{context}}
{{prior}}`,
		MaxTokens: 1024,
	},
	"standup-brief": {
		Name:        "standup-brief",
		Description: "Terse team standup variant of the daily brief",
		System: `You write terse team standup briefs. Same structure as an executive brief: a "## Top Priorities" section with lines "N) Priority: <title> (<Category>)", an optional single "Resolution: Previously: ... -> Now: ... -> Update: ..." line, and a "## Highlights" bullet section. Keep every line under 15 words. Output only the brief.`,
		User: `Topic: {{topic}}

Write the standup brief with exactly {{item_count}} priorities.
Allowed categories: {{categories}}.

Context:
{{context}}
{{prior}}`,
		MaxTokens: 512,
	},
}

// LoadCustomTemplates reads user-defined templates from
// <configDir>/templates.yaml.
func LoadCustomTemplates(configDir string) (map[string]Template, error) {
	path := filepath.Join(configDir, "templates.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No custom templates
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var templates map[string]Template
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return templates, nil
}

// GetTemplate returns a template by name, checking custom templates
// first so users can override builtins.
func GetTemplate(name string, customDir string) (*Template, error) {
	custom, err := LoadCustomTemplates(customDir)
	if err != nil {
		return nil, err
	}
	if custom != nil {
		if t, ok := custom[name]; ok {
			return &t, nil
		}
	}

	if t, ok := BuiltinTemplates[name]; ok {
		return &t, nil
	}

	var names []string
	for n := range BuiltinTemplates {
		names = append(names, n)
	}
	for n := range custom {
		names = append(names, n+"*")
	}
	return nil, fmt.Errorf("unknown template %q (available: %s)", name, strings.Join(names, ", "))
}

// ListTemplates returns all available templates.
func ListTemplates(customDir string) []Template {
	var result []Template
	for _, t := range BuiltinTemplates {
		result = append(result, t)
	}

	custom, err := LoadCustomTemplates(customDir)
	if err == nil && custom != nil {
		for _, t := range custom {
			result = append(result, t)
		}
	}
	return result
}

// renderUser substitutes the request into the template's user prompt.
func renderUser(t *Template, req Request) string {
	prior := ""
	if req.Prior != nil {
		prior = "Previous brief for reference (do not repeat its priorities):\n" + req.Prior.RawText
	}

	r := strings.NewReplacer(
		"{{topic}}", req.Topic,
		"{{context}}", req.Context,
		"{{item_count}}", strconv.Itoa(req.ExpectedItemCount),
		"{{categories}}", strings.Join(req.AllowedCategories, ", "),
		"{{prior}}", prior,
	)
	return strings.TrimSpace(r.Replace(t.User))
}
