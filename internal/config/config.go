// Package config loads process configuration from an optional procure.yaml,
// PROCURE_* environment variables and built-in defaults.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/environment"
)

// Config is the top-level process configuration.
type Config struct {
	Log         LogConfig          `yaml:"log" mapstructure:"log"`
	Pipeline    PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Environment environment.Config `yaml:"environment" mapstructure:"environment"`
	Inference   InferenceConfig    `yaml:"inference" mapstructure:"inference"`
	LLM         LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Cache       CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Feedback    FeedbackConfig     `yaml:"feedback" mapstructure:"feedback"`
	Catalog     CatalogConfig      `yaml:"catalog" mapstructure:"catalog"`
	Metrics     MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// PipelineConfig configures the quote pipeline.
type PipelineConfig struct {
	// Definition is an optional path to a pipeline YAML file. The built-in
	// pipeline is used when empty.
	Definition string `yaml:"definition" mapstructure:"definition"`

	TopK                int            `yaml:"top_k" mapstructure:"top_k" validate:"min=1,max=50"`
	EvidenceConcurrency int            `yaml:"evidence_concurrency" mapstructure:"evidence_concurrency" validate:"min=1,max=64"`
	DefaultWeights      domain.Weights `yaml:"default_weights" mapstructure:"default_weights"`
	MinEvidence         float64        `yaml:"min_evidence" mapstructure:"min_evidence" validate:"gte=0,lte=1"`
	DeadlineDays        int            `yaml:"deadline_days" mapstructure:"deadline_days" validate:"gte=0"`
	Currency            string         `yaml:"currency" mapstructure:"currency" validate:"len=3"`
}

// InferenceConfig configures the episode reasoner.
type InferenceConfig struct {
	Mode      string `yaml:"mode" mapstructure:"mode" validate:"oneof=forward backward hybrid"`
	MaxRounds int    `yaml:"max_rounds" mapstructure:"max_rounds" validate:"min=1,max=100"`
}

// LLMConfig configures the optional advisor backend.
type LLMConfig struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	Provider       string  `yaml:"provider" mapstructure:"provider" validate:"oneof=anthropic openai google"`
	Model          string  `yaml:"model" mapstructure:"model"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1,max=600"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec" validate:"gte=0"`
	Burst          int     `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig configures the LLM circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"min=1"`
	Cooldown         time.Duration `yaml:"cooldown" mapstructure:"cooldown" validate:"gt=0"`
}

// CacheConfig configures the memo cache around external lookups.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Size    int           `yaml:"size" mapstructure:"size" validate:"min=1"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gt=0"`
}

// FeedbackConfig configures the feedback store.
type FeedbackConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn" validate:"required"`
}

// CatalogConfig configures the supplier catalog. The built-in catalog is
// used when Path is empty.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// Load reads configuration from file and environment. An empty path looks
// for procure.yaml in the working directory; a missing default file is not
// an error, a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("procure")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PROCURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	w := domain.DefaultWeights()
	env := environment.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("pipeline.definition", "")
	v.SetDefault("pipeline.top_k", 3)
	v.SetDefault("pipeline.evidence_concurrency", 8)
	v.SetDefault("pipeline.default_weights.alpha_cost", w.Cost)
	v.SetDefault("pipeline.default_weights.beta_evidence", w.Evidence)
	v.SetDefault("pipeline.default_weights.gamma_availability", w.Availability)
	v.SetDefault("pipeline.min_evidence", domain.DefaultMinEvidenceThreshold)
	v.SetDefault("pipeline.deadline_days", domain.DefaultDeadlineDays)
	v.SetDefault("pipeline.currency", domain.DefaultCurrency)

	v.SetDefault("environment.gamma", env.Gamma)
	v.SetDefault("environment.stochastic", false)
	v.SetDefault("environment.seed", 0)
	v.SetDefault("environment.reward.theta_cost", env.Reward.ThetaCost)
	v.SetDefault("environment.reward.theta_evidence", env.Reward.ThetaEvidence)
	v.SetDefault("environment.reward.theta_quotation", env.Reward.ThetaQuotation)
	v.SetDefault("environment.reward.w1_cost", env.Reward.W1Cost)
	v.SetDefault("environment.reward.w2_evidence", env.Reward.W2Evidence)
	v.SetDefault("environment.reward.w3_availability", env.Reward.W3Availability)
	v.SetDefault("environment.reward.w4_preferences", env.Reward.W4Preferences)
	v.SetDefault("environment.reward.w5_penalty", env.Reward.W5Penalty)

	v.SetDefault("inference.mode", "hybrid")
	v.SetDefault("inference.max_rounds", 10)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_secs", 30)
	v.SetDefault("llm.requests_per_sec", 2.0)
	v.SetDefault("llm.burst", 4)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.circuit_breaker.failure_threshold", 5)
	v.SetDefault("llm.circuit_breaker.cooldown", "30s")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("feedback.dsn", "procure_feedback.db")
	v.SetDefault("catalog.path", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "procure")
}

// Validate checks a loaded configuration.
func Validate(cfg *Config) error {
	v, err := NewValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		return eris.Wrapf(domain.ErrInvalidConfiguration, "config: %v", err)
	}
	return nil
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

// NewValidator returns a validator with the weightsum rule registered for
// every domain.Weights value.
func NewValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := RegisterWeightValidation(v); err != nil {
		return nil, err
	}
	return v, nil
}

// RegisterWeightValidation installs the weightsum struct rule.
func RegisterWeightValidation(v *validator.Validate) error {
	if v == nil {
		return eris.New("config: nil validator")
	}
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		w := sl.Current().Interface().(domain.Weights)
		if err := w.Validate(); err != nil {
			sl.ReportError(w, "Weights", "Weights", "weightsum", "")
		}
	}, domain.Weights{})
	return nil
}
