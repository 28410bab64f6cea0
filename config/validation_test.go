package config

import (
	"strings"
	"testing"
)

func TestValidatorRequireNonEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "non-empty value", value: "valid", wantError: false},
		{name: "empty value", value: "", wantError: true},
		{name: "whitespace only", value: "   ", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequireNonEmpty("test_field", tt.value)
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorRequirePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{name: "positive value", value: 10, wantError: false},
		{name: "zero value", value: 0, wantError: true},
		{name: "negative value", value: -5, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.RequirePositive("test_field", tt.value)
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorValidateOneOf(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		allowed   []string
		wantError bool
	}{
		{name: "allowed value", value: "gemini", allowed: []string{"gemini", "claude"}, wantError: false},
		{name: "disallowed value", value: "grok", allowed: []string{"gemini", "claude"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.ValidateOneOf("field", tt.value, tt.allowed...)
			if v.HasErrors() != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tt.wantError)
			}
		})
	}
}

func TestValidatorMultipleErrors(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("field1", "")
	v.RequirePositive("field2", -1)
	v.ValidateRange("field3", 99, 0, 15)

	if len(v.Errors()) != 3 {
		t.Fatalf("Errors() length = %d, want 3", len(v.Errors()))
	}
	err := v.Error()
	if err == nil {
		t.Fatal("Error() = nil, want combined error")
	}
	for _, field := range []string{"field1", "field2", "field3"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Error() missing field %q: %v", field, err)
		}
	}
}

func TestConfigLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg := Load()

	if cfg.Mode != "general" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "general")
	}
	if cfg.Cloud != CloudGemini {
		t.Errorf("Cloud = %q, want %q", cfg.Cloud, CloudGemini)
	}
	if cfg.ChunkWords != 800 || cfg.OverlapWords != 200 {
		t.Errorf("chunking defaults = %d/%d, want 800/200", cfg.ChunkWords, cfg.OverlapWords)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with defaults = %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		cfg := Load()
		cfg.GeminiAPIKey = "key"
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{name: "valid defaults", mutate: func(*Config) {}, wantError: false},
		{
			name:      "unknown cloud backend",
			mutate:    func(c *Config) { c.Cloud = "grok" },
			wantError: true,
		},
		{
			name:      "gemini without key",
			mutate:    func(c *Config) { c.GeminiAPIKey = "" },
			wantError: true,
		},
		{
			name: "local only skips cloud key",
			mutate: func(c *Config) {
				c.GeminiAPIKey = ""
				c.LocalOnly = true
			},
			wantError: false,
		},
		{
			name: "claude without key",
			mutate: func(c *Config) {
				c.Cloud = CloudClaude
				c.AnthropicAPIKey = ""
			},
			wantError: true,
		},
		{
			name: "pgvector requires host",
			mutate: func(c *Config) {
				c.VectorStore = StorePGVector
				c.PGHost = ""
			},
			wantError: true,
		},
		{
			name:      "overlap must be below chunk size",
			mutate:    func(c *Config) { c.OverlapWords = c.ChunkWords },
			wantError: true,
		},
		{
			name:      "temperature out of range",
			mutate:    func(c *Config) { c.Temperature = 3.5 },
			wantError: true,
		},
		{
			name: "mongo history requires uri",
			mutate: func(c *Config) {
				c.HistoryStore = HistoryMongo
				c.MongoURI = ""
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
