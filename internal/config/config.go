package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Predict PredictConfig `yaml:"predict" mapstructure:"predict"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port                int `yaml:"port" mapstructure:"port"`
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// APIConfig configures API authentication and per-tenant rate limiting.
// Tokens maps bearer tokens to tenant identifiers. AdminTokens lists the
// tokens additionally allowed to resolve reconciliation candidates.
type APIConfig struct {
	Tokens           map[string]string `yaml:"tokens" mapstructure:"tokens"`
	AdminTokens      []string          `yaml:"admin_tokens" mapstructure:"admin_tokens"`
	RateLimitPerSec  float64           `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateLimitBurst   int               `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	AllowedOrigins   []string          `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutMS int               `yaml:"request_timeout_ms" mapstructure:"request_timeout_ms"`
}

// IsAdminToken reports whether the given token carries admin rights.
func (c APIConfig) IsAdminToken(token string) bool {
	for _, t := range c.AdminTokens {
		if t == token {
			return true
		}
	}
	return false
}

// PredictConfig configures scoring, lifecycle, and reconciliation behavior.
type PredictConfig struct {
	PublishThreshold     float64 `yaml:"publish_threshold" mapstructure:"publish_threshold"`
	GraceDays            int     `yaml:"grace_days" mapstructure:"grace_days"`
	SlackDays            int     `yaml:"slack_days" mapstructure:"slack_days"`
	RecencyWindowMonths  int     `yaml:"recency_window_months" mapstructure:"recency_window_months"`
	ExternalScoreCap     float64 `yaml:"external_score_cap" mapstructure:"external_score_cap"`
	SupportThreshold     float64 `yaml:"support_threshold" mapstructure:"support_threshold"`
	TimingHorizonDays    int     `yaml:"timing_horizon_days" mapstructure:"timing_horizon_days"`
	AutoAcceptThreshold  float64 `yaml:"auto_accept_threshold" mapstructure:"auto_accept_threshold"`
	AmbiguityMargin      float64 `yaml:"ambiguity_margin" mapstructure:"ambiguity_margin"`
	MaxUpsertRetries     int     `yaml:"max_upsert_retries" mapstructure:"max_upsert_retries"`
	EvidenceCacheTTLMins int     `yaml:"evidence_cache_ttl_mins" mapstructure:"evidence_cache_ttl_mins"`
	ClusterCatalogPath   string  `yaml:"cluster_catalog_path" mapstructure:"cluster_catalog_path"`
}

// EvidenceCacheTTL returns the evidence cache TTL as a duration.
func (c PredictConfig) EvidenceCacheTTL() time.Duration {
	return time.Duration(c.EvidenceCacheTTLMins) * time.Minute
}

// BatchConfig configures tenant-wide recompute runs.
type BatchConfig struct {
	MaxConcurrentPairs int     `yaml:"max_concurrent_pairs" mapstructure:"max_concurrent_pairs"`
	RatePerSec         float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CIVANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("api.rate_limit_per_sec", 20)
	v.SetDefault("api.rate_limit_burst", 40)
	v.SetDefault("api.request_timeout_ms", 30000)
	v.SetDefault("predict.publish_threshold", 60)
	v.SetDefault("predict.grace_days", 30)
	v.SetDefault("predict.slack_days", 14)
	v.SetDefault("predict.recency_window_months", 24)
	v.SetDefault("predict.external_score_cap", 18)
	v.SetDefault("predict.support_threshold", 10)
	v.SetDefault("predict.timing_horizon_days", 365)
	v.SetDefault("predict.auto_accept_threshold", 0.85)
	v.SetDefault("predict.ambiguity_margin", 0.1)
	v.SetDefault("predict.max_upsert_retries", 3)
	v.SetDefault("predict.evidence_cache_ttl_mins", 30)
	v.SetDefault("batch.max_concurrent_pairs", 8)
	v.SetDefault("batch.rate_per_sec", 50)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
