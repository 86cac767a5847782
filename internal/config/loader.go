package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "botforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "BOTFORGE_PORT")
	setFloat64(&cfg.Server.TurnRateLimit, "BOTFORGE_TURN_RATE_LIMIT")
	setInt(&cfg.Server.TurnRateBurst, "BOTFORGE_TURN_RATE_BURST")
	setString(&cfg.Server.CORSOrigin, "BOTFORGE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "BOTFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "BOTFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "BOTFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "BOTFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "BOTFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setDuration(&cfg.LiteLLM.Timeout, "BOTFORGE_LLM_TIMEOUT")
	setString(&cfg.Qdrant.URL, "QDRANT_URL")
	setString(&cfg.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&cfg.Qdrant.Collection, "BOTFORGE_QDRANT_COLLECTION")
	setDuration(&cfg.Qdrant.Timeout, "BOTFORGE_QDRANT_TIMEOUT")
	setString(&cfg.Logging.Level, "BOTFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "BOTFORGE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "BOTFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "BOTFORGE_BREAKER_TIMEOUT")
	setInt(&cfg.Agent.MaxToolIterations, "BOTFORGE_AGENT_MAX_TOOL_ITERATIONS")
	setInt(&cfg.Agent.ToolParallelism, "BOTFORGE_AGENT_TOOL_PARALLELISM")
	setInt(&cfg.Agent.MemoryTokenBudget, "BOTFORGE_AGENT_MEMORY_BUDGET")
	setString(&cfg.Agent.DefaultModel, "BOTFORGE_AGENT_DEFAULT_MODEL")
	setDuration(&cfg.Agent.ProviderTimeout, "BOTFORGE_AGENT_PROVIDER_TIMEOUT")
	setFloat64(&cfg.Agent.CostPerKiloToken, "BOTFORGE_AGENT_COST_PER_KILO_TOKEN")
	setInt(&cfg.Knowledge.ChunkSize, "BOTFORGE_KNOWLEDGE_CHUNK_SIZE")
	setInt(&cfg.Knowledge.ChunkOverlap, "BOTFORGE_KNOWLEDGE_CHUNK_OVERLAP")
	setString(&cfg.Knowledge.EmbeddingModel, "BOTFORGE_KNOWLEDGE_EMBEDDING_MODEL")
	setInt(&cfg.Knowledge.Dimension, "BOTFORGE_KNOWLEDGE_DIMENSION")
	setInt(&cfg.Knowledge.TopK, "BOTFORGE_KNOWLEDGE_TOP_K")
	setFloat64(&cfg.Knowledge.MinScore, "BOTFORGE_KNOWLEDGE_MIN_SCORE")
	setDuration(&cfg.Knowledge.EmbedTimeout, "BOTFORGE_KNOWLEDGE_EMBED_TIMEOUT")
	setString(&cfg.Plans.CustomDir, "BOTFORGE_PLANS_DIR")
	setInt64(&cfg.Cache.MaxSizeMB, "BOTFORGE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.EmbeddingTTL, "BOTFORGE_CACHE_EMBEDDING_TTL")
	setString(&cfg.Cache.SharedBucket, "BOTFORGE_CACHE_SHARED_BUCKET")
	setInt(&cfg.Sync.MaxRetries, "BOTFORGE_SYNC_MAX_RETRIES")
	setDuration(&cfg.Sync.StaleAfter, "BOTFORGE_SYNC_STALE_AFTER")
	setBool(&cfg.MCP.Enabled, "BOTFORGE_MCP_ENABLED")
	setString(&cfg.MCP.Port, "BOTFORGE_MCP_PORT")
	setString(&cfg.MCP.APIKey, "BOTFORGE_MCP_API_KEY")
	setBool(&cfg.Telemetry.Enabled, "BOTFORGE_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Qdrant.Collection == "" {
		return errors.New("qdrant.collection is required")
	}
	if cfg.Knowledge.Dimension <= 0 {
		return errors.New("knowledge.dimension must be positive")
	}
	if cfg.Knowledge.ChunkOverlap >= cfg.Knowledge.ChunkSize {
		return errors.New("knowledge.chunk_overlap must be smaller than chunk_size")
	}
	if cfg.Agent.MaxToolIterations <= 0 {
		return errors.New("agent.max_tool_iterations must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
