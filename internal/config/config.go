package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Assist    AssistConfig    `yaml:"assist" mapstructure:"assist"`
	Split     SplitConfig     `yaml:"split" mapstructure:"split"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Validate  ValidateConfig  `yaml:"validate" mapstructure:"validate"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Template  TemplateConfig  `yaml:"template" mapstructure:"template"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the assist gate.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AssistConfig configures the LLM assist gate. Disabled by default.
type AssistConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	GateThreshold float64 `yaml:"gate_threshold" mapstructure:"gate_threshold"`
	TimeoutMillis int     `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SplitConfig configures the boundary splitter.
type SplitConfig struct {
	ReviewConfidence float64 `yaml:"review_confidence" mapstructure:"review_confidence"`
	MaxBlockPages    int     `yaml:"max_block_pages" mapstructure:"max_block_pages"`
}

// ClassifyConfig configures the document classifier.
type ClassifyConfig struct {
	NegativeHits  int    `yaml:"negative_hits" mapstructure:"negative_hits"`
	LexiconPath   string `yaml:"lexicon_path" mapstructure:"lexicon_path"`
	MinTextLength int    `yaml:"min_text_length" mapstructure:"min_text_length"`
}

// ValidateConfig configures the deterministic validator tolerances.
// Monetary values are in pence.
type ValidateConfig struct {
	LineTolPence      int64   `yaml:"line_tol_pence" mapstructure:"line_tol_pence"`
	LineTolPct        float64 `yaml:"line_tol_pct" mapstructure:"line_tol_pct"`
	TotalTolPence     int64   `yaml:"total_tol_pence" mapstructure:"total_tol_pence"`
	QtyTol            float64 `yaml:"qty_tol" mapstructure:"qty_tol"`
	DiscountPct       float64 `yaml:"discount_pct" mapstructure:"discount_pct"`
	DiscountAbsPence  int64   `yaml:"discount_abs_pence" mapstructure:"discount_abs_pence"`
	MaxPlausiblePence int64   `yaml:"max_plausible_pence" mapstructure:"max_plausible_pence"`
}

// PolicyConfig configures the policy engine thresholds. Confidence values
// are on the 0-100 reporting scale; classifier scores are 0-1.
type PolicyConfig struct {
	PassConfidence     float64 `yaml:"pass_confidence" mapstructure:"pass_confidence"`
	WarnConfidence     float64 `yaml:"warn_confidence" mapstructure:"warn_confidence"`
	RejectConfidence   float64 `yaml:"reject_confidence" mapstructure:"reject_confidence"`
	MinClassifierScore float64 `yaml:"min_classifier_score" mapstructure:"min_classifier_score"`
	OtherRejectScore   float64 `yaml:"other_reject_score" mapstructure:"other_reject_score"`
}

// TemplateConfig configures supplier template memory.
type TemplateConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// PipelineConfig configures block orchestration.
type PipelineConfig struct {
	MaxConcurrentBlocks int     `yaml:"max_concurrent_blocks" mapstructure:"max_concurrent_blocks"`
	RetryConfidence     float64 `yaml:"retry_confidence" mapstructure:"retry_confidence"`
	LowConfLine         float64 `yaml:"low_conf_line" mapstructure:"low_conf_line"`
}

// FetchConfig configures recognizer-output sources.
type FetchConfig struct {
	Dir string    `yaml:"dir" mapstructure:"dir"`
	FTP FTPConfig `yaml:"ftp" mapstructure:"ftp"`
}

// FTPConfig configures the FTP drop-folder source. Network scanners commonly
// upload recognizer output to an FTP share.
type FTPConfig struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "intake.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.requests_per_sec", 2.0)
	v.SetDefault("assist.enabled", false)
	v.SetDefault("assist.gate_threshold", 0.55)
	v.SetDefault("assist.timeout_ms", 800)
	v.SetDefault("assist.max_tokens", 128)
	v.SetDefault("split.review_confidence", 50.0)
	v.SetDefault("split.max_block_pages", 20)
	v.SetDefault("classify.negative_hits", 3)
	v.SetDefault("classify.min_text_length", 10)
	v.SetDefault("validate.line_tol_pence", 1)
	v.SetDefault("validate.line_tol_pct", 0.01)
	v.SetDefault("validate.total_tol_pence", 2)
	v.SetDefault("validate.qty_tol", 0.01)
	v.SetDefault("validate.discount_pct", 0.30)
	v.SetDefault("validate.discount_abs_pence", 1000)
	v.SetDefault("validate.max_plausible_pence", 5_000_000)
	v.SetDefault("policy.pass_confidence", 70.0)
	v.SetDefault("policy.warn_confidence", 50.0)
	v.SetDefault("policy.reject_confidence", 30.0)
	v.SetDefault("policy.min_classifier_score", 0.50)
	v.SetDefault("policy.other_reject_score", 0.80)
	v.SetDefault("template.similarity_threshold", 0.82)
	v.SetDefault("pipeline.max_concurrent_blocks", 4)
	v.SetDefault("pipeline.retry_confidence", 50.0)
	v.SetDefault("pipeline.low_conf_line", 50.0)
	v.SetDefault("fetch.dir", "./inbox")
	v.SetDefault("fetch.ftp.timeout_secs", 15)

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
