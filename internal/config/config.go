// Package config provides configuration loading for the devteam engine.
//
// Configuration is loaded from a YAML file (model registry, engine tunables)
// layered with environment variable overrides, following the koanf-based
// layering pattern used throughout this module.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds the complete devteam engine configuration.
type Config struct {
	Server        ServerConfig
	Observability ObservabilityConfig
	Checkpoint    CheckpointConfig
	Engine        EngineConfig
	Models        ModelRegistry
	Retrieval     RetrievalConfig
}

// ServerConfig holds the optional metrics/health HTTP server configuration.
// Off by default per SPEC_FULL.md §4 (the CLI's exit-code contract must
// never be perturbed by an incidental listener failure).
type ServerConfig struct {
	MetricsAddr     string        `koanf:"metrics_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
}

// CheckpointConfig holds recovery-hook snapshot configuration.
type CheckpointConfig struct {
	MaxContentSizeKB int    `koanf:"max_content_size_kb"`
	SnapshotDir      string `koanf:"snapshot_dir"`
}

// EngineConfig holds the engine tunables named in spec.md §3/§5: the review
// cadence, retry caps, and per-role token budgets.
type EngineConfig struct {
	ReviewInterval  int               `koanf:"review_interval"`
	MaxAttempts     int               `koanf:"max_attempts"`
	MaxIterations   int               `koanf:"max_iterations"`
	TokenBudgets    RoleTokenBudgets  `koanf:"token_budgets"`
	SummarizeAt     int               `koanf:"summarize_at_tokens"`
}

// RoleTokenBudgets holds the per-role input token budgets from spec.md §5.
type RoleTokenBudgets struct {
	ScopeAgent  int `koanf:"scope_agent"`
	TaskPlanner int `koanf:"task_planner"`
	Implementor int `koanf:"implementor"`
	QA          int `koanf:"qa"`
	Assessor    int `koanf:"assessor"`
}

// DefaultRoleTokenBudgets returns the budgets named in spec.md §5.
func DefaultRoleTokenBudgets() RoleTokenBudgets {
	return RoleTokenBudgets{
		ScopeAgent:  15000,
		TaskPlanner: 12000,
		Implementor: 15000,
		QA:          10000,
		Assessor:    5000,
	}
}

// ModelRegistry maps role tags to model endpoints, per spec.md §6.
// Roles missing from configuration fall back to Primary.
type ModelRegistry struct {
	Primary    ModelEndpoint `koanf:"primary"`
	Summarizer ModelEndpoint `koanf:"summarizer"`
	Research   ModelEndpoint `koanf:"research"`
	Supervisor ModelEndpoint `koanf:"supervisor"`
}

// ModelEndpoint describes a single provider/model binding.
type ModelEndpoint struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
}

// IsZero reports whether the endpoint has no model configured.
func (e ModelEndpoint) IsZero() bool {
	return e.Provider == "" && e.Model == ""
}

// Resolve returns the configured endpoint for role, falling back to Primary
// when role's endpoint is unset, per spec.md §6.
func (m ModelRegistry) Resolve(role string) ModelEndpoint {
	var endpoint ModelEndpoint
	switch role {
	case "summarizer":
		endpoint = m.Summarizer
	case "research":
		endpoint = m.Research
	case "supervisor":
		endpoint = m.Supervisor
	default:
		endpoint = m.Primary
	}
	if endpoint.IsZero() {
		return m.Primary
	}
	return endpoint
}

// RetrievalConfig selects and configures the retrieval index adapter.
type RetrievalConfig struct {
	Provider string        `koanf:"provider"` // "chromem" or "qdrant"
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go retrieval adapter.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
}

// QdrantConfig configures the qdrant-backed retrieval adapter.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     int    `koanf:"vector_size"`
}

// Load loads configuration from environment variables with defaults, for
// callers that don't need a YAML file (tests, quick CLI invocations).
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			MetricsAddr:     getEnvString("METRICS_ADDR", ""),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", true),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "devteam"),
		},
		Checkpoint: CheckpointConfig{
			MaxContentSizeKB: getEnvInt("CHECKPOINT_MAX_CONTENT_SIZE_KB", 1024),
			SnapshotDir:      getEnvString("CHECKPOINT_SNAPSHOT_DIR", ".devteam/checkpoints"),
		},
		Engine: EngineConfig{
			ReviewInterval: getEnvInt("ENGINE_REVIEW_INTERVAL", 5),
			MaxAttempts:    getEnvInt("ENGINE_MAX_ATTEMPTS", 3),
			MaxIterations:  getEnvInt("ENGINE_MAX_ITERATIONS", 0),
			TokenBudgets:   DefaultRoleTokenBudgets(),
			SummarizeAt:    getEnvInt("ENGINE_SUMMARIZE_AT_TOKENS", 30000),
		},
	}
	applyRetrievalDefaults(&cfg.Retrieval)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.MaxAttempts < 1 {
		return errors.New("engine.max_attempts must be >= 1")
	}
	if c.Engine.ReviewInterval < 1 {
		return errors.New("engine.review_interval must be >= 1")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("observability.service_name required when telemetry is enabled")
	}
	if c.Models.Primary.IsZero() {
		return errors.New("models.primary must be configured")
	}
	return nil
}

func applyRetrievalDefaults(r *RetrievalConfig) {
	if r.Provider == "" {
		r.Provider = "chromem"
	}
	if r.Chromem.Path == "" {
		r.Chromem.Path = ".rag_index/chromem"
	}
	if r.Chromem.Collection == "" {
		r.Chromem.Collection = "devteam"
	}
	if r.Qdrant.Host == "" {
		r.Qdrant.Host = "localhost"
	}
	if r.Qdrant.Port == 0 {
		r.Qdrant.Port = 6334
	}
	if r.Qdrant.CollectionName == "" {
		r.Qdrant.CollectionName = "devteam"
	}
	if r.Qdrant.VectorSize == 0 {
		r.Qdrant.VectorSize = 384
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
