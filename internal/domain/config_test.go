package domain

import (
	"testing"
	"time"
)

func envFrom(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestConfigApplyEnv(t *testing.T) {
	t.Run("DefaultsAreUnconfigured", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyEnv(envFrom(nil))

		if cfg.Extraction.Configured() {
			t.Error("expected extraction to be unconfigured")
		}
		if cfg.TextGeneration.Configured() {
			t.Error("expected text generation to be unconfigured")
		}
		if cfg.TextGeneration.Model != "gpt-4" {
			t.Errorf("expected default deployment gpt-4, got %s", cfg.TextGeneration.Model)
		}
	})

	t.Run("AzureCredentials", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyEnv(envFrom(map[string]string{
			"AZURE_DOCUMENT_INTELLIGENCE_KEY":      "doc-key",
			"AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT": "https://doc.example.com",
			"AZURE_OPENAI_KEY":                     "llm-key",
			"AZURE_OPENAI_ENDPOINT":                "https://llm.example.com",
			"AZURE_OPENAI_DEPLOYMENT":              "gpt-4o",
			"HARPIA_COLLABORATOR_TIMEOUT":          "15",
		}))

		if !cfg.Extraction.Configured() {
			t.Error("expected extraction to be configured")
		}
		if !cfg.TextGeneration.Configured() {
			t.Error("expected text generation to be configured")
		}
		if cfg.TextGeneration.Model != "gpt-4o" {
			t.Errorf("expected deployment gpt-4o, got %s", cfg.TextGeneration.Model)
		}
		if cfg.Extraction.Timeout != 15*time.Second || cfg.TextGeneration.Timeout != 15*time.Second {
			t.Errorf("expected 15s timeouts, got %v / %v", cfg.Extraction.Timeout, cfg.TextGeneration.Timeout)
		}
	})

	t.Run("KeyWithoutEndpointIsUnconfigured", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyEnv(envFrom(map[string]string{
			"AZURE_OPENAI_KEY": "llm-key",
		}))

		if cfg.TextGeneration.Configured() {
			t.Error("expected azure openai without endpoint to be unconfigured")
		}
	})

	t.Run("EntraIDWithoutKeys", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyEnv(envFrom(map[string]string{
			"AZURE_USE_ENTRA_ID":                   "true",
			"AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT": "https://doc.example.com",
			"AZURE_OPENAI_ENDPOINT":                "https://llm.example.com",
		}))

		if !cfg.Extraction.Configured() || !cfg.TextGeneration.Configured() {
			t.Error("expected Entra ID with endpoints to count as configured")
		}
	})

	t.Run("GeminiProvider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyEnv(envFrom(map[string]string{
			"HARPIA_TEXT_PROVIDER": "gemini",
			"GEMINI_API_KEY":       "gemini-key",
		}))

		if !cfg.TextGeneration.Configured() {
			t.Error("expected gemini to be configured with only a key")
		}
		if cfg.TextGeneration.Model != "gemini-2.0-flash" {
			t.Errorf("expected default gemini model, got %s", cfg.TextGeneration.Model)
		}
	})

	t.Run("ServerOverrides", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ApplyEnv(envFrom(map[string]string{
			"HARPIA_PORT":          "9090",
			"HARPIA_MAX_UPLOAD_MB": "5",
			"HARPIA_RATE_LIMIT":    "0",
			"HARPIA_DEBUG":         "true",
		}))

		if cfg.Server.Port != 9090 {
			t.Errorf("expected port 9090, got %d", cfg.Server.Port)
		}
		if cfg.Server.MaxUploadBytes != 5<<20 {
			t.Errorf("expected 5MB upload limit, got %d", cfg.Server.MaxUploadBytes)
		}
		if cfg.Limiter.RequestsPerMin != 0 {
			t.Errorf("expected rate limit disabled, got %d", cfg.Limiter.RequestsPerMin)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging, got %s", cfg.Logging.Level)
		}
	})

	t.Run("WorkerTenants", func(t *testing.T) {
		cfg := DefaultConfig()
		if cfg.Worker.Enabled {
			t.Error("expected worker disabled in community tier")
		}
		cfg.ApplyEnv(envFrom(map[string]string{
			"HARPIA_ASYNC_WORKER": "true",
			"HARPIA_TENANTS":      "bank-a, bank-b,,",
		}))

		if !cfg.Worker.Enabled {
			t.Error("expected worker enabled")
		}
		if len(cfg.Worker.TenantIDs) != 2 || cfg.Worker.TenantIDs[0] != "bank-a" || cfg.Worker.TenantIDs[1] != "bank-b" {
			t.Errorf("unexpected tenants %v", cfg.Worker.TenantIDs)
		}
		if !ProConfig().Worker.Enabled {
			t.Error("expected worker enabled in pro tier")
		}
	})
}
