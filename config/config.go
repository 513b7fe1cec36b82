package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Environment       string `mapstructure:"WSV_ENVIRONMENT"`
	ServerName        string `mapstructure:"WSV_SERVER_NAME"`
	ServerAddress     string `mapstructure:"WSV_SERVER_BIND_ADDR"`
	ServerReadTimeout int16  `mapstructure:"WSV_SERVER_READ_TIMEOUT"`
	LogFormat         string `mapstructure:"WSV_LOG_FORMAT"` // text or json
	LogLevel          string `mapstructure:"WSV_LOG_LEVEL"`  // debug, info, warn, error

	DbHost           string `mapstructure:"WSV_DB_HOST"`
	DbPort           int16  `mapstructure:"WSV_DB_PORT"`
	DbSSLMode        string `mapstructure:"WSV_DB_SSL"`
	DbUser           string `mapstructure:"WSV_DB_USER"`
	DbPassword       string `mapstructure:"WSV_DB_PASSWORD"`
	DbDatabaseName   string `mapstructure:"WSV_DB_DATABASE"`
	DbMaxConnections int    `mapstructure:"WSV_DB_MAX_CONNECTIONS"`

	// Redis (onboarding session store)
	RedisHost string `mapstructure:"WSV_REDIS_HOST"`
	RedisPort int16  `mapstructure:"WSV_REDIS_PORT"`
	RedisDb   int    `mapstructure:"WSV_REDIS_DB"`
	RedisUser string `mapstructure:"WSV_REDIS_USER"`
	RedisPass string `mapstructure:"WSV_REDIS_PASS"`

	OtlpEndpoint   string `mapstructure:"WSV_OTLP_ENDPOINT"`
	JaegerEndpoint string `mapstructure:"WSV_JAEGER_ENDPOINT"`

	// Telegram Bot Configuration
	TelegramBotToken string `mapstructure:"WSV_TELEGRAM_BOT_TOKEN"`
	TelegramDebug    bool   `mapstructure:"WSV_TELEGRAM_DEBUG"`
	TelegramAdmins   string `mapstructure:"WSV_TELEGRAM_ADMINS"` // Comma-separated list of Telegram IDs

	// Localization
	DefaultLocale     string `mapstructure:"WSV_DEFAULT_LOCALE"`
	LocalesDir        string `mapstructure:"WSV_LOCALES_DIR"` // empty means embedded locales
	SessionTTLMinutes int    `mapstructure:"WSV_SESSION_TTL_MINUTES"`
}

// DefaultConfig generates a config with sane defaults.
// See: The example .env file in the package docs for default values.
func DefaultConfig() Config {
	return Config{
		Environment:       "local",
		ServerAddress:     "0.0.0.0:3001",
		ServerReadTimeout: 60,
		LogFormat:         "text",
		LogLevel:          "info",

		DbHost:           "localhost",
		DbPort:           5432,
		DbSSLMode:        "disable",
		DbUser:           "postgres",
		DbPassword:       "postgres",
		DbDatabaseName:   "word-service",
		DbMaxConnections: 100,

		RedisHost: "localhost",
		RedisPort: 6379,
		RedisDb:   0,
		RedisUser: "redis",
		RedisPass: "redis",

		OtlpEndpoint:   "localhost:4317",
		JaegerEndpoint: "http://localhost:14268/api/traces",

		TelegramBotToken: "",
		TelegramDebug:    false,
		TelegramAdmins:   "",

		DefaultLocale:     "en",
		LocalesDir:        "",
		SessionTTLMinutes: 30,
	}
}

// LoadConfig will attempt to load a configuration from the default file location and fallback to environment variables.
func LoadConfig() (Config, error) {
	envFile := os.Getenv("WSV_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	var cfg Config
	var err error

	if _, err = os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		cfg, err = ConfigFromEnvironment()
	} else {
		cfg, err = ConfigFromFile(envFile)
	}

	return cfg, err
}

// ConfigFromEnvironment will look for the specified configuration from environment variables.
// See package docs for a list of available environment variables.
func ConfigFromEnvironment() (config Config, err error) {
	config = DefaultConfig()
	viper.SetDefault("WSV_ENVIRONMENT", config.Environment)
	viper.SetDefault("WSV_SERVER_BIND_ADDR", config.ServerAddress)
	viper.SetDefault("WSV_SERVER_READ_TIMEOUT", config.ServerReadTimeout)
	viper.SetDefault("WSV_LOG_LEVEL", config.LogLevel)
	viper.SetDefault("WSV_LOG_FORMAT", config.LogFormat)
	viper.SetDefault("WSV_DB_HOST", config.DbHost)
	viper.SetDefault("WSV_DB_PORT", config.DbPort)
	viper.SetDefault("WSV_DB_SSL", config.DbSSLMode)
	viper.SetDefault("WSV_DB_USER", config.DbUser)
	viper.SetDefault("WSV_DB_PASSWORD", config.DbPassword)
	viper.SetDefault("WSV_DB_DATABASE", config.DbDatabaseName)
	viper.SetDefault("WSV_DB_MAX_CONNECTIONS", config.DbMaxConnections)
	viper.SetDefault("WSV_OTLP_ENDPOINT", config.OtlpEndpoint)
	viper.SetDefault("WSV_JAEGER_ENDPOINT", config.JaegerEndpoint)
	viper.SetDefault("WSV_REDIS_HOST", config.RedisHost)
	viper.SetDefault("WSV_REDIS_PORT", config.RedisPort)
	viper.SetDefault("WSV_REDIS_USER", config.RedisUser)
	viper.SetDefault("WSV_REDIS_PASS", config.RedisPass)
	viper.SetDefault("WSV_REDIS_DB", config.RedisDb)
	viper.SetDefault("WSV_TELEGRAM_BOT_TOKEN", config.TelegramBotToken)
	viper.SetDefault("WSV_TELEGRAM_DEBUG", config.TelegramDebug)
	viper.SetDefault("WSV_TELEGRAM_ADMINS", config.TelegramAdmins)
	viper.SetDefault("WSV_DEFAULT_LOCALE", config.DefaultLocale)
	viper.SetDefault("WSV_LOCALES_DIR", config.LocalesDir)
	viper.SetDefault("WSV_SESSION_TTL_MINUTES", config.SessionTTLMinutes)

	// Override config values with environment variables
	viper.AutomaticEnv()
	err = viper.Unmarshal(&config)
	return
}

// ConfigFromFile will look for the specified configuration file in the current directory and initialize
// a Config from it. Values provided by environment variables will override ones found in
// the file. See package docs for a list of available environment variables.
func ConfigFromFile(f string) (config Config, err error) {
	if config, err = ConfigFromEnvironment(); err != nil {
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigFile(f)
	viper.SetConfigType("env")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)

	return
}

// Fiber initializes and returns a Fiber config based on server config values.
// See https://docs.gofiber.io/api/fiber#config
func (c Config) Fiber() fiber.Config {
	return fiber.Config{
		ReadTimeout: time.Second * time.Duration(c.ServerReadTimeout),
	}
}

// DbConnectionString generates a connection string for the database based on config values.
func (c Config) DbConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s", c.DbUser, url.QueryEscape(c.DbPassword), c.DbHost, c.DbPort, c.DbDatabaseName, c.DbSSLMode)
}

// RedisAddr returns the host:port address of the Redis server.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// SessionTTL returns the onboarding session expiry as a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// GetSlogLevel converts the string log level to slog.Level.
func (c Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetTelegramAdmins parses the comma-separated list of Telegram admin IDs.
func (c Config) GetTelegramAdmins() ([]int64, error) {
	if c.TelegramAdmins == "" {
		return []int64{}, nil
	}

	adminStrings := strings.Split(c.TelegramAdmins, ",")
	admins := make([]int64, 0, len(adminStrings))

	for _, adminStr := range adminStrings {
		adminStr = strings.TrimSpace(adminStr)
		if adminStr == "" {
			continue
		}

		adminID, err := strconv.ParseInt(adminStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin Telegram ID '%s': %w", adminStr, err)
		}

		admins = append(admins, adminID)
	}

	return admins, nil
}
