package domain

import (
	"strconv"
	"strings"
	"time"
)

// Config holds the complete Harpia configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines which infrastructure backends are used
	Tier Tier `json:"tier"`

	// Infrastructure
	Repository RepositoryConfig `json:"repository"`
	Limiter    LimiterConfig    `json:"limiter"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Worker     WorkerConfig     `json:"worker"`

	// External collaborators
	Extraction     ExtractionConfig     `json:"extraction"`
	TextGeneration TextGenerationConfig `json:"textGeneration"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ReadTimeout    int    `json:"readTimeout"`  // seconds
	WriteTimeout   int    `json:"writeTimeout"` // seconds
	MaxUploadBytes int64  `json:"maxUploadBytes"`
}

// WorkerConfig controls the asynchronous analysis worker.
type WorkerConfig struct {
	Enabled bool `json:"enabled"`

	// TenantIDs served by the worker; empty routes every tenant through one shared queue
	TenantIDs []string `json:"tenantIds"`
}

// ExtractionConfig configures the document extraction service.
// Without an endpoint and a credential the service is treated as not configured.
type ExtractionConfig struct {
	Endpoint     string        `json:"endpoint"`
	Key          string        `json:"-"`
	UseEntraID   bool          `json:"useEntraId"`
	Model        string        `json:"model"`
	APIVersion   string        `json:"apiVersion"`
	Timeout      time.Duration `json:"timeout"`
	PollInterval time.Duration `json:"pollInterval"`
}

// Configured reports whether credentials for the extraction service are present.
func (c ExtractionConfig) Configured() bool {
	return c.Endpoint != "" && (c.Key != "" || c.UseEntraID)
}

// Text generation providers.
const (
	TextProviderAzureOpenAI = "azure-openai"
	TextProviderGemini      = "gemini"
)

// TextGenerationConfig configures the text generation service.
type TextGenerationConfig struct {
	Provider   string        `json:"provider"`
	Endpoint   string        `json:"endpoint"`
	Key        string        `json:"-"`
	UseEntraID bool          `json:"useEntraId"` // Azure OpenAI only
	Model      string        `json:"model"`      // deployment name for Azure OpenAI
	APIVersion string        `json:"apiVersion"`
	Timeout    time.Duration `json:"timeout"`
}

// Configured reports whether credentials for the selected provider are present.
func (c TextGenerationConfig) Configured() bool {
	if c.Provider == TextProviderGemini {
		return c.Key != ""
	}
	return c.Endpoint != "" && (c.Key != "" || c.UseEntraID)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite, Go channels and in-memory counters
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL, NATS and Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for the Community tier.
// Collaborators start unconfigured; credentials come from the environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30,
			WriteTimeout:   150,
			MaxUploadBytes: 20 << 20,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harpia.db",
		},
		Limiter: LimiterConfig{
			Type:           "memory",
			LocalMaxKeys:   10000,
			RequestsPerMin: 60,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 100,
		},
		Extraction: ExtractionConfig{
			Model:        "prebuilt-document",
			APIVersion:   "2023-07-31",
			Timeout:      60 * time.Second,
			PollInterval: time.Second,
		},
		TextGeneration: TextGenerationConfig{
			Provider:   TextProviderAzureOpenAI,
			Model:      "gpt-4",
			APIVersion: "2024-02-01",
			Timeout:    60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harpia",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harpia",
	}
	cfg.Limiter = LimiterConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		RequestsPerMin: 60,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}

// ApplyEnv overrides configuration values from environment variables.
// Unset or unparsable variables leave the current value untouched.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(getenv(key)); err == nil {
			*dst = v
		}
	}

	setString(&c.Server.Host, "HARPIA_HOST")
	setInt(&c.Server.Port, "HARPIA_PORT")
	if mb, err := strconv.ParseInt(getenv("HARPIA_MAX_UPLOAD_MB"), 10, 64); err == nil && mb > 0 {
		c.Server.MaxUploadBytes = mb << 20
	}

	setString(&c.Repository.SQLitePath, "HARPIA_SQLITE_PATH")
	setString(&c.Repository.PostgresHost, "HARPIA_POSTGRES_HOST")
	setInt(&c.Repository.PostgresPort, "HARPIA_POSTGRES_PORT")
	setString(&c.Repository.PostgresUser, "HARPIA_POSTGRES_USER")
	setString(&c.Repository.PostgresPassword, "HARPIA_POSTGRES_PASSWORD")
	setString(&c.Repository.PostgresDB, "HARPIA_POSTGRES_DB")
	setString(&c.Repository.PostgresSSLMode, "HARPIA_POSTGRES_SSLMODE")

	setString(&c.Limiter.RedisAddr, "HARPIA_REDIS_ADDR")
	setString(&c.Limiter.RedisPassword, "HARPIA_REDIS_PASSWORD")
	setInt(&c.Limiter.RequestsPerMin, "HARPIA_RATE_LIMIT")

	setString(&c.EventBus.NATSUrl, "HARPIA_NATS_URL")
	setString(&c.EventBus.NATSToken, "HARPIA_NATS_TOKEN")

	if getenv("HARPIA_ASYNC_WORKER") == "true" {
		c.Worker.Enabled = true
	}
	if v := getenv("HARPIA_TENANTS"); v != "" {
		c.Worker.TenantIDs = c.Worker.TenantIDs[:0]
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.Worker.TenantIDs = append(c.Worker.TenantIDs, id)
			}
		}
	}

	if secs, err := strconv.Atoi(getenv("HARPIA_COLLABORATOR_TIMEOUT")); err == nil && secs > 0 {
		c.Extraction.Timeout = time.Duration(secs) * time.Second
		c.TextGeneration.Timeout = time.Duration(secs) * time.Second
	}

	setString(&c.Extraction.Key, "AZURE_DOCUMENT_INTELLIGENCE_KEY")
	setString(&c.Extraction.Endpoint, "AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT")
	setString(&c.Extraction.Model, "AZURE_DOCUMENT_INTELLIGENCE_MODEL")

	useEntra := getenv("AZURE_USE_ENTRA_ID") == "true"
	c.Extraction.UseEntraID = c.Extraction.UseEntraID || useEntra

	setString(&c.TextGeneration.Provider, "HARPIA_TEXT_PROVIDER")
	switch c.TextGeneration.Provider {
	case TextProviderGemini:
		c.TextGeneration.Model = "gemini-2.0-flash"
		setString(&c.TextGeneration.Key, "GEMINI_API_KEY")
		setString(&c.TextGeneration.Model, "GEMINI_MODEL")
		setString(&c.TextGeneration.Endpoint, "GEMINI_BASE_URL")
	default:
		c.TextGeneration.UseEntraID = c.TextGeneration.UseEntraID || useEntra
		setString(&c.TextGeneration.Key, "AZURE_OPENAI_KEY")
		setString(&c.TextGeneration.Endpoint, "AZURE_OPENAI_ENDPOINT")
		setString(&c.TextGeneration.Model, "AZURE_OPENAI_DEPLOYMENT")
		setString(&c.TextGeneration.APIVersion, "AZURE_OPENAI_API_VERSION")
	}

	if getenv("HARPIA_DEBUG") == "true" {
		c.Logging.Level = "debug"
	}
}
