package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("BINDERY_TEST_TOKEN", "sk-secret")
	t.Setenv("BINDERY_TEST_MODEL", "test-model")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain value", "sk-literal", "sk-literal"},
		{"single var", "${BINDERY_TEST_TOKEN}", "sk-secret"},
		{"embedded var", "prefix-${BINDERY_TEST_TOKEN}-suffix", "prefix-sk-secret-suffix"},
		{"multiple vars", "${BINDERY_TEST_TOKEN}/${BINDERY_TEST_MODEL}", "sk-secret/test-model"},
		{"unset var", "${BINDERY_TEST_UNSET_VAR}", ""},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.MaxTokens != 20000 {
		t.Errorf("MaxTokens = %d, want 20000", cfg.Pipeline.MaxTokens)
	}
	if cfg.Merge.TerminalPunctuation != ".!?" {
		t.Errorf("TerminalPunctuation = %q", cfg.Merge.TerminalPunctuation)
	}
	if cfg.API.URL == "" {
		t.Error("default API URL should be set")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("BINDERY_API_TOKEN", "sk-test")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with token set", func(c *Config) {}, false},
		{"missing url", func(c *Config) { c.API.URL = "" }, true},
		{"missing model", func(c *Config) { c.API.Model = "" }, true},
		{"literal token", func(c *Config) { c.API.Token = "sk-literal" }, false},
		{"token resolves to empty", func(c *Config) { c.API.Token = "${BINDERY_UNSET_TOKEN_VAR}" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManagerWatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := "api:\n  url: https://example.test/v1\n  token: sk-test\n  model: m1\npipeline:\n  rps: 2\n"
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if got := cm.Get().Pipeline.RPS; got != 2 {
		t.Fatalf("initial rps = %v, want 2", got)
	}

	// The watcher may fire more than once per edit; buffer and drain.
	changes := make(chan *Config, 8)
	cm.OnChange(func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	})
	cm.WatchConfig()

	updated := strings.Replace(initial, "rps: 2", "rps: 7", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Pipeline.RPS == 7 {
				if got := cm.Get().Pipeline.RPS; got != 7 {
					t.Errorf("Get() rps = %v after reload, want 7", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("config change callback never saw the updated rps")
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "# Bindery configuration") {
		t.Error("written config should start with the header comment")
	}
	for _, want := range []string{"api:", "pipeline:", "merge:", "${BINDERY_API_TOKEN}"} {
		if !strings.Contains(content, want) {
			t.Errorf("written config missing %q", want)
		}
	}
}
