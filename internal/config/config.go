package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	AWS        AWSConfig        `yaml:"aws" mapstructure:"aws"`
	Secrets    SecretsConfig    `yaml:"secrets" mapstructure:"secrets"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Completion CompletionConfig `yaml:"completion" mapstructure:"completion"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Archive    ArchiveConfig    `yaml:"archive" mapstructure:"archive"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run/lead persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // dynamodb, sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RunsTable   string `yaml:"runs_table" mapstructure:"runs_table"`
	LeadsTable  string `yaml:"leads_table" mapstructure:"leads_table"`
	LeadsIndex  string `yaml:"leads_index" mapstructure:"leads_index"`
	RunsIndex   string `yaml:"runs_index" mapstructure:"runs_index"`
}

// AWSConfig holds optional AWS SDK overrides. Empty values defer to the
// default credential chain.
type AWSConfig struct {
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// SecretsConfig selects the secret provider and the names of the two
// credentials the pipeline needs.
type SecretsConfig struct {
	Provider          string            `yaml:"provider" mapstructure:"provider"` // ssm, keyring, static
	SearchKeyName     string            `yaml:"search_key_name" mapstructure:"search_key_name"`
	CompletionKeyName string            `yaml:"completion_key_name" mapstructure:"completion_key_name"`
	KeyringService    string            `yaml:"keyring_service" mapstructure:"keyring_service"`
	Static            map[string]string `yaml:"static" mapstructure:"static"`
}

// SearchConfig holds SerpApi settings.
type SearchConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Num         int    `yaml:"num" mapstructure:"num"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// CompletionConfig selects the completion backend and its per-stage limits.
type CompletionConfig struct {
	Provider            string `yaml:"provider" mapstructure:"provider"` // groq, anthropic, gemini
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	RewriteModel        string `yaml:"rewrite_model" mapstructure:"rewrite_model"`
	AnalysisModel       string `yaml:"analysis_model" mapstructure:"analysis_model"`
	MaxTokens           int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	RewriteTimeoutSecs  int    `yaml:"rewrite_timeout_secs" mapstructure:"rewrite_timeout_secs"`
	FilterTimeoutSecs   int    `yaml:"filter_timeout_secs" mapstructure:"filter_timeout_secs"`
	AnalysisTimeoutSecs int    `yaml:"analysis_timeout_secs" mapstructure:"analysis_timeout_secs"`
	FailureThreshold    int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// ScrapeConfig configures homepage fetching.
type ScrapeConfig struct {
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	BlockedHosts []string `yaml:"blocked_hosts" mapstructure:"blocked_hosts"`
}

// JinaConfig holds Jina AI Reader settings (scrape fallback, optional).
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ArchiveConfig configures raw search response archival.
type ArchiveConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // s3, fs, none
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// PipelineConfig toggles optional stages and sets analysis pacing.
type PipelineConfig struct {
	RewriteEnabled  bool `yaml:"rewrite_enabled" mapstructure:"rewrite_enabled"`
	FilterEnabled   bool `yaml:"filter_enabled" mapstructure:"filter_enabled"`
	ScrapeEnabled   bool `yaml:"scrape_enabled" mapstructure:"scrape_enabled"`
	RequestDelayMs  int  `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	MaxWebsiteChars int  `yaml:"max_website_chars" mapstructure:"max_website_chars"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port          int    `yaml:"port" mapstructure:"port"`
	AllowedOrigin string `yaml:"allowed_origin" mapstructure:"allowed_origin"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the environment variable names set by the
// Lambda stack.
var legacyEnv = map[string]string{
	"store.runs_table":            "RUNS_TABLE_NAME",
	"store.leads_table":           "LEADS_TABLE_NAME",
	"store.leads_index":           "LEADS_GSI_NAME",
	"store.runs_index":            "RUNS_GSI_NAME",
	"secrets.search_key_name":     "SERPAPI_KEY_PARAM_NAME",
	"secrets.completion_key_name": "GROQ_API_KEY_PARAM_NAME",
	"archive.bucket":              "RAW_DATA_BUCKET_NAME",
	"pipeline.request_delay_ms":   "GROQ_REQUEST_DELAY_MS",
	"server.allowed_origin":       "ALLOWED_ORIGIN",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "OUTPOST_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", env)
		}
	}

	setDefaults(v)

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

// Validate checks that the settings a command mode needs are present.
// Modes: "pipeline" (run, lambda, serve) and "store" (read-only commands).
func (c *Config) Validate(mode string) error {
	var missing []string
	require := func(ok bool, msg string) {
		if !ok {
			missing = append(missing, msg)
		}
	}

	switch c.Store.Driver {
	case "dynamodb":
		require(c.Store.RunsTable != "", "store.runs_table is required")
		require(c.Store.LeadsTable != "", "store.leads_table is required")
	case "sqlite":
	case "postgres":
		require(c.Store.DatabaseURL != "", "store.database_url is required")
	default:
		missing = append(missing, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	if mode == "pipeline" {
		require(c.Secrets.SearchKeyName != "", "secrets.search_key_name is required")
		require(c.Secrets.CompletionKeyName != "", "secrets.completion_key_name is required")
		switch c.Secrets.Provider {
		case "ssm", "keyring", "static":
		default:
			missing = append(missing, fmt.Sprintf("secrets.provider %q is not supported", c.Secrets.Provider))
		}
		switch c.Completion.Provider {
		case "groq", "anthropic", "gemini":
		default:
			missing = append(missing, fmt.Sprintf("completion.provider %q is not supported", c.Completion.Provider))
		}
		if c.Archive.Driver == "s3" {
			require(c.Archive.Bucket != "", "archive.bucket is required")
		}
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "dynamodb")
	v.SetDefault("store.runs_index", "entityType-createdAt-index")
	v.SetDefault("store.leads_index", "runId-index")
	v.SetDefault("secrets.provider", "ssm")
	v.SetDefault("secrets.keyring_service", "outpost")
	v.SetDefault("search.base_url", "https://serpapi.com")
	v.SetDefault("search.num", 10)
	v.SetDefault("search.timeout_secs", 30)
	v.SetDefault("search.max_attempts", 2)
	v.SetDefault("completion.provider", "groq")
	v.SetDefault("completion.rewrite_model", "llama-3.3-70b-versatile")
	v.SetDefault("completion.analysis_model", "llama-3.3-70b-versatile")
	v.SetDefault("completion.max_tokens", 500)
	v.SetDefault("completion.rewrite_timeout_secs", 30)
	v.SetDefault("completion.filter_timeout_secs", 45)
	v.SetDefault("completion.analysis_timeout_secs", 60)
	v.SetDefault("completion.failure_threshold", 5)
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.max_body_bytes", 2<<20)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; OutpostBot/1.0)")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("archive.driver", "s3")
	v.SetDefault("archive.dir", "raw")
	v.SetDefault("pipeline.rewrite_enabled", true)
	v.SetDefault("pipeline.filter_enabled", true)
	v.SetDefault("pipeline.scrape_enabled", true)
	v.SetDefault("pipeline.request_delay_ms", 2000)
	v.SetDefault("pipeline.max_website_chars", 10000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
