package config

import "fmt"

// Config is the full bindery configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Merge    MergeConfig    `mapstructure:"merge" yaml:"merge"`
}

// APIConfig describes the external completion endpoint. The core never
// owns these values; they are supplied by the caller.
type APIConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	Token          string `mapstructure:"token" yaml:"token"` // supports ${ENV_VAR}
	Model          string `mapstructure:"model" yaml:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// PipelineConfig tunes scheduling and retry behavior.
type PipelineConfig struct {
	Workers      int     `mapstructure:"workers" yaml:"workers"`
	RPS          float64 `mapstructure:"rps" yaml:"rps"`
	MaxRetries   int     `mapstructure:"max_retries" yaml:"max_retries"`
	MaxTokens    int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	GraceSeconds int     `mapstructure:"grace_seconds" yaml:"grace_seconds"`
}

// MergeConfig exposes the cross-page join heuristics. The punctuation sets
// are intentionally tunable; validate changes against real sample books.
type MergeConfig struct {
	TerminalPunctuation string `mapstructure:"terminal_punctuation" yaml:"terminal_punctuation"`
	ClosingQuotes       string `mapstructure:"closing_quotes" yaml:"closing_quotes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			URL:            "https://openrouter.ai/api/v1",
			Token:          "${BINDERY_API_TOKEN}",
			Model:          "anthropic/claude-3.5-sonnet",
			TimeoutSeconds: 120,
		},
		Pipeline: PipelineConfig{
			Workers:      4,
			RPS:          0,
			MaxRetries:   3,
			MaxTokens:    20000,
			GraceSeconds: 30,
		},
		Merge: MergeConfig{
			TerminalPunctuation: ".!?",
			ClosingQuotes:       `"'”’`,
		},
	}
}

// Validate checks the fields a run cannot start without.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if ResolveEnvVars(c.API.Token) == "" {
		return fmt.Errorf("api.token is required (set BINDERY_API_TOKEN)")
	}
	if c.API.Model == "" {
		return fmt.Errorf("api.model is required")
	}
	return nil
}
