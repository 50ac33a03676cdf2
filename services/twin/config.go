// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package twin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/history"
	"github.com/xrvnd/cement-ai/services/twin/middleware"
)

// =============================================================================
// Configuration
// =============================================================================

// Exporter and backend names accepted by Config.
const (
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
	ExporterNone       = "none"

	ConversationMemory = "memory"
	ConversationBadger = "badger"

	EnvironmentProduction = "production"
)

// Config holds the digital twin service configuration.
//
// # Description
//
// Config is loaded in layers: DefaultConfig, then an optional YAML file,
// then environment variables, then whatever the caller overrides (CLI
// flags). New applies applyConfigDefaults so a partially filled Config is
// usable from tests.
//
// # Examples
//
//	cfg, err := twin.LoadConfig("cementtwin.yaml")
//	if err != nil {
//	    return err
//	}
//	cfg.Port = 9000
//	svc, err := twin.New(cfg, nil)
type Config struct {
	// Port is the HTTP server port. Default: 8000
	Port int `yaml:"port"`

	// Environment is "development" or "production". Production runs gin
	// in release mode.
	Environment string `yaml:"environment"`

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`

	// CatalogPath optionally replaces the built-in sensor table.
	CatalogPath string `yaml:"catalog_path"`

	PlantName     string `yaml:"plant_name"`
	PlantLocation string `yaml:"plant_location"`

	// LLMBackend is gemini, openai, anthropic or disabled.
	LLMBackend string `yaml:"llm_backend"`

	// LLMAPIKey is never read from the YAML file.
	LLMAPIKey     string        `yaml:"-"`
	AgentModel    string        `yaml:"agent_model"`
	VisionModel   string        `yaml:"vision_model"`
	LLMTimeout    time.Duration `yaml:"llm_timeout"`
	LLMRateLimit  float64       `yaml:"llm_rate_limit"`
	LLMRateBurst  int           `yaml:"llm_rate_burst"`
	GoogleProject string        `yaml:"google_cloud_project_id"`

	// DatabaseURL is accepted for compatibility and not used.
	DatabaseURL string `yaml:"database_url"`

	// EmbeddingModel is used by the Weaviate retriever.
	EmbeddingModel string `yaml:"embedding_model"`
	// WeaviateURL enables the vector knowledge base when set.
	WeaviateURL string `yaml:"weaviate_url"`

	// ConversationBackend is memory or badger.
	ConversationBackend     string        `yaml:"conversation_backend"`
	ConversationDBPath      string        `yaml:"conversation_db_path"`
	ConversationMaxMessages int           `yaml:"conversation_max_messages"`
	ConversationIdleTTL     time.Duration `yaml:"conversation_idle_ttl"`
	ConversationSweep       time.Duration `yaml:"conversation_sweep_interval"`

	// Influx enables the history recorder when URL is set.
	Influx          history.InfluxConfig `yaml:"influxdb"`
	HistoryInterval time.Duration        `yaml:"history_interval"`

	// TracingExporter is otlp, stdout or none.
	TracingExporter string `yaml:"tracing_exporter"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	// MetricExporter is prometheus, stdout or none. It carries the otel
	// meter instruments; TwinMetrics is always served on /metrics.
	MetricExporter string `yaml:"metric_exporter"`

	// StreamInterval is the websocket push period. Zero means the default;
	// StreamEnabled turns the stream off.
	StreamInterval time.Duration `yaml:"stream_interval"`

	// Feature flags. BackgroundRefresh starts the history recorder, which
	// refreshes every sensor each HistoryInterval; it is off by default.
	AIEnabled         bool `yaml:"ai_enabled"`
	AgentsEnabled     bool `yaml:"agents_enabled"`
	BackgroundRefresh bool `yaml:"background_refresh"`
	StreamEnabled     bool `yaml:"stream_enabled"`
}

// Defaults.
const (
	DefaultPort            = 8000
	DefaultEnvironment     = "development"
	DefaultPlantName       = "JK Cement Plant"
	DefaultPlantLocation   = "India"
	DefaultAgentModel      = "gemini-2.0-flash"
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultOTelEndpoint    = "localhost:4317"
	DefaultConversationDir = "./data/conversations"
	DefaultStreamInterval  = 2 * time.Second
)

// DefaultConfig returns the configuration used when nothing is set.
// Every feature flag is on.
func DefaultConfig() Config {
	return Config{
		Port:                DefaultPort,
		Environment:         DefaultEnvironment,
		CORSOrigins:         middleware.ParseOrigins(""),
		PlantName:           DefaultPlantName,
		PlantLocation:       DefaultPlantLocation,
		LLMBackend:          string(llm.BackendGemini),
		AgentModel:          DefaultAgentModel,
		EmbeddingModel:      DefaultEmbeddingModel,
		LLMTimeout:          llm.DefaultTimeout,
		ConversationBackend: ConversationMemory,
		ConversationDBPath:  DefaultConversationDir,
		HistoryInterval:     history.DefaultInterval,
		TracingExporter:     ExporterNone,
		OTelEndpoint:        DefaultOTelEndpoint,
		MetricExporter:      ExporterPrometheus,
		StreamInterval:      DefaultStreamInterval,
		AIEnabled:           true,
		AgentsEnabled:       true,
		StreamEnabled:       true,
	}
}

// LoadConfig loads configuration with priority: env > file > defaults.
//
// # Inputs
//
//   - path: YAML file; empty skips the file layer. A missing file is an
//     error because the caller asked for it explicitly.
//
// # Outputs
//
//   - Config: Merged and validated configuration.
//   - error: Unreadable or invalid file, or a failed Validate.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := loadConfigFromEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// An empty file decodes to io.EOF and keeps the defaults.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadConfigFromEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PORT %q is not a number", v)
		}
		cfg.Port = i
	}
	if v := os.Getenv("BACKGROUND_REFRESH"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("BACKGROUND_REFRESH %q is not a boolean", v)
		}
		cfg.BackgroundRefresh = b
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = middleware.ParseOrigins(v)
	}
	if v := os.Getenv("PLANT_NAME"); v != "" {
		cfg.PlantName = v
	}
	if v := os.Getenv("PLANT_LOCATION"); v != "" {
		cfg.PlantLocation = v
	}
	if v := os.Getenv("LLM_BACKEND_TYPE"); v != "" {
		cfg.LLMBackend = v
	}
	if v := os.Getenv("AGENT_MODEL"); v != "" {
		cfg.AgentModel = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT_ID"); v != "" {
		cfg.GoogleProject = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("WEAVIATE_SERVICE_URL"); v != "" {
		cfg.WeaviateURL = v
	}
	if v := os.Getenv("INFLUXDB_URL"); v != "" {
		cfg.Influx.URL = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv("INFLUXDB_ORG"); v != "" {
		cfg.Influx.Org = v
	}
	if v := os.Getenv("INFLUXDB_BUCKET"); v != "" {
		cfg.Influx.Bucket = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTelEndpoint = v
	}
	if v := os.Getenv("TRACING_EXPORTER"); v != "" {
		cfg.TracingExporter = v
	}
	if v := os.Getenv("METRICS_EXPORTER"); v != "" {
		cfg.MetricExporter = v
	}
	if v := os.Getenv("CONVERSATION_BACKEND"); v != "" {
		cfg.ConversationBackend = v
	}
	if v := os.Getenv("CONVERSATION_DB_PATH"); v != "" {
		cfg.ConversationDBPath = v
	}
	cfg.LLMAPIKey = apiKeyFromEnv(cfg.LLMBackend)
	return nil
}

// apiKeyFromEnv picks the key variable matching the backend.
func apiKeyFromEnv(backend string) string {
	b, err := llm.ParseBackend(backend)
	if err != nil {
		return ""
	}
	switch b {
	case llm.BackendOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case llm.BackendAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case llm.BackendDisabled:
		return ""
	default:
		return os.Getenv("GEMINI_API_KEY")
	}
}

// SetLLMBackend switches backend and re-reads the matching API key.
func (c *Config) SetLLMBackend(backend string) {
	c.LLMBackend = backend
	c.LLMAPIKey = apiKeyFromEnv(backend)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := llm.ParseBackend(c.LLMBackend); err != nil {
		return err
	}
	switch c.ConversationBackend {
	case ConversationMemory, ConversationBadger:
	default:
		return fmt.Errorf("unknown conversation backend %q", c.ConversationBackend)
	}
	switch c.TracingExporter {
	case ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.TracingExporter)
	}
	switch c.MetricExporter {
	case ExporterPrometheus, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("unknown metric exporter %q", c.MetricExporter)
	}
	if c.StreamInterval < 0 || c.HistoryInterval < 0 || c.LLMTimeout < 0 {
		return errors.New("intervals and timeouts must not be negative")
	}
	if c.Influx.URL != "" {
		if err := c.Influx.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// applyConfigDefaults fills zero-valued fields. Feature flags are left as
// given.
func applyConfigDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.Environment == "" {
		cfg.Environment = def.Environment
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = def.CORSOrigins
	}
	if cfg.PlantName == "" {
		cfg.PlantName = def.PlantName
	}
	if cfg.PlantLocation == "" {
		cfg.PlantLocation = def.PlantLocation
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = def.LLMBackend
	}
	if cfg.AgentModel == "" {
		cfg.AgentModel = def.AgentModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = def.EmbeddingModel
	}
	if cfg.LLMTimeout == 0 {
		cfg.LLMTimeout = def.LLMTimeout
	}
	if cfg.ConversationBackend == "" {
		cfg.ConversationBackend = def.ConversationBackend
	}
	if cfg.ConversationDBPath == "" {
		cfg.ConversationDBPath = def.ConversationDBPath
	}
	if cfg.HistoryInterval == 0 {
		cfg.HistoryInterval = def.HistoryInterval
	}
	if cfg.TracingExporter == "" {
		cfg.TracingExporter = def.TracingExporter
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = def.OTelEndpoint
	}
	if cfg.MetricExporter == "" {
		cfg.MetricExporter = def.MetricExporter
	}
	if cfg.StreamInterval == 0 {
		cfg.StreamInterval = def.StreamInterval
	}
	return cfg
}
