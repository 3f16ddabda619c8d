package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Environment  string
	Server       ServerConfig
	Database     DatabaseConfig
	AI           AIConfig
	JWT          JWTConfig
	Integrations IntegrationsConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

type DatabaseConfig struct {
	URL          string
	AutoMigrate  bool
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey string
	GeminiModel  string
}

type JWTConfig struct {
	Secret string
}

type IntegrationsConfig struct {
	HealthInterval time.Duration
	HTTPTimeout    time.Duration
	MaxRetries     int
	CacheResponses bool
}

type LogConfig struct {
	Level string
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowed_origins", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.auto_migrate", "true")
	viper.SetDefault("database.seed", "false")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("integrations.health_interval", "5m")
	viper.SetDefault("integrations.http_timeout", "30s")
	viper.SetDefault("integrations.max_retries", "3")
	viper.SetDefault("integrations.cache_responses", "true")
	viper.SetDefault("log.level", "info")

	// Map environment variables to config keys
	viper.BindEnv("environment", "ENVIRONMENT")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.allowed_origins", "SERVER_ALLOWED_ORIGINS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("integrations.health_interval", "INTEGRATIONS_HEALTH_INTERVAL")
	viper.BindEnv("integrations.http_timeout", "INTEGRATIONS_HTTP_TIMEOUT")
	viper.BindEnv("integrations.max_retries", "INTEGRATIONS_MAX_RETRIES")
	viper.BindEnv("integrations.cache_responses", "INTEGRATIONS_CACHE_RESPONSES")
	viper.BindEnv("log.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Environment: viper.GetString("environment"),
		Server: ServerConfig{
			Port:           viper.GetString("server.port"),
			AllowedOrigins: viper.GetString("server.allowed_origins"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			AutoMigrate:  viper.GetBool("database.auto_migrate"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey: viper.GetString("gemini.api_key"),
			GeminiModel:  viper.GetString("gemini.model"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Integrations: IntegrationsConfig{
			HealthInterval: viper.GetDuration("integrations.health_interval"),
			HTTPTimeout:    viper.GetDuration("integrations.http_timeout"),
			MaxRetries:     viper.GetInt("integrations.max_retries"),
			CacheResponses: viper.GetBool("integrations.cache_responses"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
	}
}
