package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required,url|uri"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Upstream language model provider (chat-completion style API).
	LLMProviderURL        string        `mapstructure:"LLM_PROVIDER_URL" validate:"required,url|uri"`
	LLMProviderAPIKey     string        `mapstructure:"LLM_PROVIDER_API_KEY"`
	LLMModel              string        `mapstructure:"LLM_MODEL" validate:"required"`
	LLMDefaultTemperature float64       `mapstructure:"LLM_DEFAULT_TEMPERATURE" validate:"gte=0,lte=2"`
	LLMMaxOutputTokens    int           `mapstructure:"LLM_MAX_OUTPUT_TOKENS" validate:"gte=1,lte=128000"`
	LLMRequestTimeout     time.Duration `mapstructure:"LLM_REQUEST_TIMEOUT" validate:"required"`

	// Backlog generation limits.
	BacklogJobTTLSeconds int `mapstructure:"BACKLOG_JOB_TTL_SECONDS" validate:"gte=1"`
	BacklogMaxEpics      int `mapstructure:"BACKLOG_MAX_EPICS" validate:"gte=1,lte=64"`
	BacklogMaxSubEpics   int `mapstructure:"BACKLOG_MAX_SUBEPICS" validate:"gte=1,lte=64"`
	BacklogMaxStories    int `mapstructure:"BACKLOG_MAX_STORIES" validate:"gte=1,lte=64"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_DEFAULT_TEMPERATURE", 0.7)
	v.SetDefault("LLM_MAX_OUTPUT_TOKENS", 2048)
	v.SetDefault("LLM_REQUEST_TIMEOUT", "60s")
	v.SetDefault("BACKLOG_JOB_TTL_SECONDS", 3600)
	v.SetDefault("BACKLOG_MAX_EPICS", 8)
	v.SetDefault("BACKLOG_MAX_SUBEPICS", 6)
	v.SetDefault("BACKLOG_MAX_STORIES", 8)
	v.SetDefault("GOMAXPROCS", 0)

	// Optional config file
	_ = v.ReadInConfig()

	// Bind env without prefix for convenience
	keys := []string{
		"APP_ENV",
		"HTTP_ADDR",
		"SHUTDOWN_TIMEOUT",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"JWT_SECRET",
		"LLM_PROVIDER_URL",
		"LLM_PROVIDER_API_KEY",
		"LLM_MODEL",
		"LLM_DEFAULT_TEMPERATURE",
		"LLM_MAX_OUTPUT_TOKENS",
		"LLM_REQUEST_TIMEOUT",
		"BACKLOG_JOB_TTL_SECONDS",
		"BACKLOG_MAX_EPICS",
		"BACKLOG_MAX_SUBEPICS",
		"BACKLOG_MAX_STORIES",
		"GOMAXPROCS",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	if s := v.GetString("SHUTDOWN_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}
	if s := v.GetString("LLM_REQUEST_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid LLM_REQUEST_TIMEOUT: %w", err)
		}
		c.LLMRequestTimeout = d
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// JobTTL returns the retention window for terminal generation jobs.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.BacklogJobTTLSeconds) * time.Second
}
