// Package config handles reading and writing .revcraft/config.yaml and
// layering environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .revcraft/config.yaml.
type Config struct {
	Version    int              `yaml:"version"`
	APIKey     string           `yaml:"-"`
	Model      ModelConfig      `yaml:"model"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Research   ResearchConfig   `yaml:"research"`
	Paths      PathsConfig      `yaml:"paths"`
	Completion CompletionConfig `yaml:"completion"`
	// Framework is an optional review framework file replacing the built-in one.
	Framework string `yaml:"framework,omitempty"`
}

// ModelConfig controls the model endpoint.
type ModelConfig struct {
	Name           string  `yaml:"name"`
	BaseURL        string  `yaml:"base_url"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Proxy          string  `yaml:"proxy,omitempty"`
}

// PricingConfig holds USD prices per million tokens.
type PricingConfig struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// ResearchConfig controls pre-draft web research.
type ResearchConfig struct {
	Enabled               bool    `yaml:"enabled"`
	BudgetUSD             float64 `yaml:"budget_usd"`
	Strategy              string  `yaml:"strategy"`   // "fixed" | "weighted"
	Importance            string  `yaml:"importance"` // "low" | "medium" | "high"
	MaxTokensPerOperation int     `yaml:"max_tokens_per_operation"`
	MaxSearches           int     `yaml:"max_searches"`
}

// PathsConfig locates working directories relative to the workspace.
type PathsConfig struct {
	Sessions string `yaml:"sessions"`
	Reviews  string `yaml:"reviews"`
	Images   string `yaml:"images"`
}

// CompletionConfig lists the phrases that signal a phase is complete when
// the structured marker is absent. Matching is case-insensitive.
type CompletionConfig struct {
	Intake  []string `yaml:"intake"`
	Draft   []string `yaml:"draft"`
	Refine  []string `yaml:"refine"`
	Quality []string `yaml:"quality"`
}

// Phrases returns the phrase list for a phase name.
func (c CompletionConfig) Phrases(phase string) []string {
	switch phase {
	case "intake":
		return c.Intake
	case "draft":
		return c.Draft
	case "refine":
		return c.Refine
	case "quality":
		return c.Quality
	}
	return nil
}

// StateDir is the workspace-relative directory holding config and logs.
const StateDir = ".revcraft"

const configFile = "config.yaml"

// Environment variables that override file values.
const (
	EnvAPIKey          = "REVCRAFT_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvModel           = "REVCRAFT_MODEL"
	EnvBaseURL         = "REVCRAFT_BASE_URL"
	EnvResearchBudget  = "REVCRAFT_RESEARCH_BUDGET"
)

// ReadConfig reads .revcraft/config.yaml from the given workspace directory.
// dir is the workspace root (not .revcraft/ itself). Fields missing from
// the file keep their defaults.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, StateDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// WriteConfig writes cfg to .revcraft/config.yaml in the given workspace directory.
// Creates the .revcraft/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, StateDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Load returns the effective configuration for a workspace: defaults,
// then the config file if present, then environment overrides.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}
	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from environment variables read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	} else if v := getenv(EnvAnthropicAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := getenv(EnvModel); v != "" {
		cfg.Model.Name = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := getenv(EnvResearchBudget); v != "" {
		budget, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || budget < 0 {
			return fmt.Errorf("parsing %s=%q: must be a non-negative number", EnvResearchBudget, v)
		}
		cfg.Research.BudgetUSD = budget
	}
	return nil
}

// Resolve returns p joined to dir unless p is absolute.
func Resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Model: ModelConfig{
			Name:           "claude-sonnet-4-20250514",
			BaseURL:        "https://api.anthropic.com",
			MaxTokens:      4000,
			Temperature:    0.7,
			TimeoutSeconds: 300,
		},
		Pricing: PricingConfig{
			InputPerMillion:  3,
			OutputPerMillion: 15,
		},
		Research: ResearchConfig{
			Enabled:               false,
			BudgetUSD:             0.50,
			Strategy:              "weighted",
			Importance:            "medium",
			MaxTokensPerOperation: 1500,
			MaxSearches:           3,
		},
		Paths: PathsConfig{
			Sessions: "sessions",
			Reviews:  "reviews",
			Images:   "images",
		},
		Completion: DefaultCompletion(),
	}
}

// DefaultCompletion returns the built-in completion phrases.
func DefaultCompletion() CompletionConfig {
	return CompletionConfig{
		Intake: []string{
			"ready to move to the draft creation phase",
			"ready to move on to the draft",
			"ready to create the draft",
			"enough information to create a draft",
		},
		Draft: []string{
			"draft is complete",
			"ready for refinement",
			"move to the refinement phase",
		},
		Refine: []string{
			"refinement is complete",
			"ready for quality review",
			"move to the quality control phase",
		},
		Quality: []string{
			"ready for publication",
			"passes quality control",
			"final review is complete",
		},
	}
}
