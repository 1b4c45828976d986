// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env       string `mapstructure:"APP_ENV"`
	Port      string `mapstructure:"PORT"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	DBDriver     string `mapstructure:"DB_DRIVER"`
	DBHost       string `mapstructure:"DB_HOST"`
	DBPort       string `mapstructure:"DB_PORT"`
	DBUser       string `mapstructure:"DB_USER"`
	DBPassword   string `mapstructure:"DB_PASSWORD"`
	DBName       string `mapstructure:"DB_NAME"`
	DBSSLMode    string `mapstructure:"DB_SSLMODE"`
	DBSQLitePath string `mapstructure:"DB_SQLITE_PATH"`
	DBMaxOpen    int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdle    int    `mapstructure:"DB_MAX_IDLE_CONNS"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// ModeratorEmails is a comma-separated allowlist of accounts treated as
	// moderators regardless of their stored role.
	ModeratorEmails string `mapstructure:"MODERATOR_EMAILS"`

	ModerationAPIKey  string        `mapstructure:"MODERATION_API_KEY"`
	OpenAIAPIKey      string        `mapstructure:"OPENAI_API_KEY"`
	ModerationAPIURL  string        `mapstructure:"MODERATION_API_URL"`
	ModerationModel   string        `mapstructure:"MODERATION_MODEL"`
	ModerationTimeout time.Duration `mapstructure:"MODERATION_TIMEOUT"`

	ScreeningRetry       time.Duration `mapstructure:"SCREENING_RETRY_DELAY"`
	ScreeningAttempts    int           `mapstructure:"SCREENING_MAX_ATTEMPTS"`
	ScreeningPoll        time.Duration `mapstructure:"SCREENING_POLL_INTERVAL"`
	ThreadExpirySchedule string        `mapstructure:"THREAD_EXPIRY_SCHEDULE"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and
// environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "lionboard")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "lionboard.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("MODERATOR_EMAILS", "")
	viper.SetDefault("MODERATION_API_KEY", "")
	viper.SetDefault("OPENAI_API_KEY", "")
	viper.SetDefault("MODERATION_API_URL", "https://api.openai.com/v1/moderations")
	viper.SetDefault("MODERATION_MODEL", "omni-moderation-latest")
	viper.SetDefault("MODERATION_TIMEOUT", "10s")
	viper.SetDefault("SCREENING_RETRY_DELAY", "5s")
	viper.SetDefault("SCREENING_MAX_ATTEMPTS", 3)
	viper.SetDefault("SCREENING_POLL_INTERVAL", "750ms")
	viper.SetDefault("THREAD_EXPIRY_SCHEDULE", "@every 10m")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.ModerationAPIKey = strings.TrimSpace(c.ModerationAPIKey)
	c.OpenAIAPIKey = strings.TrimSpace(c.OpenAIAPIKey)
}

// IsProduction reports whether the app runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ModerationKey returns the screening API credential. An empty result means
// screening is not configured, which is not an error.
func (c *Config) ModerationKey() string {
	if c.ModerationAPIKey != "" {
		return c.ModerationAPIKey
	}
	return c.OpenAIAPIKey
}

// ModeratorEmailList splits MODERATOR_EMAILS into normalized addresses.
func (c *Config) ModeratorEmailList() []string {
	var out []string
	for _, e := range strings.Split(c.ModeratorEmails, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.ScreeningAttempts < 1 {
		return errors.New("SCREENING_MAX_ATTEMPTS must be at least 1")
	}
	if c.ScreeningRetry < 0 {
		return errors.New("SCREENING_RETRY_DELAY must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.ModerationKey() == "" {
			log.Println("WARNING: no moderation API key configured; AI screening is disabled.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
