package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetTemplateBuiltin(t *testing.T) {
	tpl, err := GetTemplate("daily-brief", "")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if tpl.Name != "daily-brief" {
		t.Fatalf("name = %q", tpl.Name)
	}
	if !strings.Contains(tpl.System, "## Top Priorities") {
		t.Fatal("system prompt must pin the document structure")
	}
}

func TestGetTemplateUnknown(t *testing.T) {
	if _, err := GetTemplate("nonexistent", ""); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestCustomTemplateOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	custom := `daily-brief:
  name: daily-brief
  description: custom override
  system: custom system prompt
  user: "Topic: {{topic}}"
  max_tokens: 128
`
	if err := os.WriteFile(filepath.Join(dir, "templates.yaml"), []byte(custom), 0644); err != nil {
		t.Fatalf("writing templates.yaml: %v", err)
	}

	tpl, err := GetTemplate("daily-brief", dir)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if tpl.System != "custom system prompt" {
		t.Fatalf("custom template should win, got system %q", tpl.System)
	}
	if tpl.MaxTokens != 128 {
		t.Fatalf("max_tokens = %d, want 128", tpl.MaxTokens)
	}
}

func TestRenderUser(t *testing.T) {
	tpl, err := GetTemplate("daily-brief", "")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}

	req := Request{
		Topic:             "Q3 launch",
		Context:           "pilot starts Monday",
		ExpectedItemCount: 3,
		AllowedCategories: []string{"Ops", "Legal"},
	}
	got := renderUser(tpl, req)

	for _, want := range []string{"Q3 launch", "pilot starts Monday", "exactly 3", "Ops, Legal"} {
		if !strings.Contains(got, want) {
			t.Fatalf("rendered prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "{{") {
		t.Fatalf("unsubstituted placeholder in:\n%s", got)
	}
}

func TestListTemplatesIncludesBuiltins(t *testing.T) {
	templates := ListTemplates("")
	if len(templates) < 2 {
		t.Fatalf("templates = %d, want at least the builtins", len(templates))
	}
}
