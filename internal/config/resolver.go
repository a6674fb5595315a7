// Package config resolves briefgen settings from, in precedence order,
// built-in defaults, the YAML config file, environment variables, and
// CLI flags. Every resolved value remembers where it came from so
// `briefgen config` can explain the effective configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries CLI flag overrides into resolution.
type ResolveOptions struct {
	ConfigPath string
	CLILLM     string // provider/model, e.g. "google/gemini-2.5-flash"
	CLIDBPath  string
}

// ResolvedConfig is the effective configuration with provenance.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath   ResolvedValue `json:"db_path"`
	LLMModel ResolvedValue `json:"llm_model"` // provider/model form
	APIKey   ResolvedValue `json:"-"`

	// Generation defaults, overridable per request.
	ItemCount         ResolvedValue `json:"item_count"`
	Categories        ResolvedValue `json:"categories"` // comma-separated
	MaxRetries        ResolvedValue `json:"max_retries"`
	NoveltyCheck      ResolvedValue `json:"novelty_check"`
	RequireResolution ResolvedValue `json:"require_resolution"`
	TimeoutSecs       ResolvedValue `json:"timeout_secs"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	LLM    struct {
		Model  string `yaml:"model"` // provider/model
		APIKey string `yaml:"api_key"`
	} `yaml:"llm"`
	Generate struct {
		ItemCount         int    `yaml:"item_count"`
		Categories        string `yaml:"categories"`
		MaxRetries        *int   `yaml:"max_retries"`
		NoveltyCheck      *bool  `yaml:"novelty_check"`
		RequireResolution *bool  `yaml:"require_resolution"`
		TimeoutSecs       int    `yaml:"timeout_secs"`
	} `yaml:"generate"`
}

// DefaultConfigDir is where the config file, custom templates, and
// database live by default.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".briefgen")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// ResolveConfig resolves the effective configuration.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:        path,
		LLMModel:          ResolvedValue{Value: "google/gemini-2.5-flash", Source: SourceDefault, From: "built-in default"},
		ItemCount:         ResolvedValue{Value: "3", Source: SourceDefault, From: "built-in default"},
		MaxRetries:        ResolvedValue{Value: "2", Source: SourceDefault, From: "built-in default"},
		NoveltyCheck:      ResolvedValue{Value: "true", Source: SourceDefault, From: "built-in default"},
		RequireResolution: ResolvedValue{Value: "false", Source: SourceDefault, From: "built-in default"},
		TimeoutSecs:       ResolvedValue{Value: "60", Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LLMModel, cfg.LLM.Model, SourceConfig, path)
		apply(&out.APIKey, cfg.LLM.APIKey, SourceConfig, path)
		apply(&out.Categories, cfg.Generate.Categories, SourceConfig, path)
		if cfg.Generate.ItemCount > 0 {
			apply(&out.ItemCount, fmt.Sprintf("%d", cfg.Generate.ItemCount), SourceConfig, path)
		}
		if cfg.Generate.MaxRetries != nil {
			apply(&out.MaxRetries, fmt.Sprintf("%d", *cfg.Generate.MaxRetries), SourceConfig, path)
		}
		if cfg.Generate.NoveltyCheck != nil {
			apply(&out.NoveltyCheck, fmt.Sprintf("%t", *cfg.Generate.NoveltyCheck), SourceConfig, path)
		}
		if cfg.Generate.RequireResolution != nil {
			apply(&out.RequireResolution, fmt.Sprintf("%t", *cfg.Generate.RequireResolution), SourceConfig, path)
		}
		if cfg.Generate.TimeoutSecs > 0 {
			apply(&out.TimeoutSecs, fmt.Sprintf("%d", cfg.Generate.TimeoutSecs), SourceConfig, path)
		}
	}

	applyEnv(&out.DBPath, "BRIEFGEN_DB")
	applyEnv(&out.LLMModel, "BRIEFGEN_LLM")
	applyEnv(&out.Categories, "BRIEFGEN_CATEGORIES")
	applyEnv(&out.MaxRetries, "BRIEFGEN_MAX_RETRIES")
	applyEnv(&out.TimeoutSecs, "BRIEFGEN_TIMEOUT_SECS")

	apply(&out.LLMModel, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// CategoryList splits the comma-separated category default.
func (r ResolvedConfig) CategoryList() []string {
	var out []string
	for _, c := range strings.Split(r.Categories.Value, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
