package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Site      SiteConfig
	SMTP      SMTPConfig
	Reminders RemindersConfig
	Feeds     FeedsConfig
	Exports   ExportsConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SiteConfig carries identity metadata embedded into feeds and emails.
type SiteConfig struct {
	Name     string
	Domain   string
	Language string
	Timezone string
}

// SMTPConfig configures the outgoing mail transport.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// RemindersConfig governs the periodic birthday digest.
type RemindersConfig struct {
	Enabled    bool
	CronSpec   string
	DaysAhead  int
	JobRetries int
}

// FeedsConfig tunes iCalendar feed rendering and caching.
type FeedsConfig struct {
	CacheTTL        time.Duration
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// ExportsConfig toggles the CSV/PDF export endpoints.
type ExportsConfig struct {
	Enabled bool
}

// MetricsConfig toggles Prometheus exposure.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Site = SiteConfig{
		Name:     v.GetString("SITE_NAME"),
		Domain:   v.GetString("SITE_DOMAIN"),
		Language: v.GetString("SITE_LANGUAGE"),
		Timezone: v.GetString("SITE_TIMEZONE"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		User:     v.GetString("SMTP_USER"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.Reminders = RemindersConfig{
		Enabled:    v.GetBool("ENABLE_REMINDERS"),
		CronSpec:   v.GetString("REMINDERS_CRON_SPEC"),
		DaysAhead:  v.GetInt("REMINDERS_DAYS_AHEAD"),
		JobRetries: v.GetInt("REMINDERS_JOB_RETRIES"),
	}

	cfg.Feeds = FeedsConfig{
		CacheTTL:        parseDuration(v.GetString("FEEDS_CACHE_TTL"), 6*time.Hour),
		SignedURLSecret: v.GetString("FEEDS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("FEEDS_SIGNED_URL_TTL"), 30*24*time.Hour),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "toolbox")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SITE_NAME", "toolbox")
	v.SetDefault("SITE_DOMAIN", "localhost:8080")
	v.SetDefault("SITE_LANGUAGE", "en")
	v.SetDefault("SITE_TIMEZONE", "UTC")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 25)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "toolbox@localhost")

	v.SetDefault("ENABLE_REMINDERS", false)
	v.SetDefault("REMINDERS_CRON_SPEC", "0 6 * * *")
	v.SetDefault("REMINDERS_DAYS_AHEAD", 7)
	v.SetDefault("REMINDERS_JOB_RETRIES", 3)

	v.SetDefault("FEEDS_CACHE_TTL", "6h")
	v.SetDefault("FEEDS_SIGNED_URL_SECRET", "dev_feeds_secret")
	v.SetDefault("FEEDS_SIGNED_URL_TTL", "720h")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("ENABLE_METRICS", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
