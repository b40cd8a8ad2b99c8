package config

import (
	"errors"
	"io/fs"
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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Scheduling    SchedulingConfig
	Notifications NotificationsConfig
	Stats         StatsConfig
	Migrations    MigrationsConfig
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
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig holds the lesson lifecycle rules.
type SchedulingConfig struct {
	Timezone           string
	CancellationWindow time.Duration
	LockTimeout        time.Duration
}

// Location resolves the canonical scheduling timezone, falling back to UTC.
func (c SchedulingConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NotificationsConfig controls lesson event fan-out to the notification subsystem.
type NotificationsConfig struct {
	Enabled    bool
	Channel    string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// StatsConfig governs caching of admin aggregate statistics.
type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// MigrationsConfig toggles schema migration at startup.
type MigrationsConfig struct {
	AutoApply bool
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		Timezone:           v.GetString("SCHEDULE_TIMEZONE"),
		CancellationWindow: parseDuration(v.GetString("CANCELLATION_WINDOW"), 2*time.Hour),
		LockTimeout:        parseDuration(v.GetString("SCHEDULE_LOCK_TIMEOUT"), 3*time.Second),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:    v.GetBool("ENABLE_NOTIFICATIONS"),
		Channel:    v.GetString("NOTIFICATIONS_CHANNEL"),
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		MaxRetries: v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), time.Second),
	}

	cfg.Stats = StatsConfig{
		CacheEnabled: v.GetBool("ENABLE_STATS_CACHE"),
		CacheTTL:     parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Migrations = MigrationsConfig{
		AutoApply: v.GetBool("AUTO_MIGRATE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lessons")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULE_TIMEZONE", "Europe/Moscow")
	v.SetDefault("CANCELLATION_WINDOW", "2h")
	v.SetDefault("SCHEDULE_LOCK_TIMEOUT", "3s")

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("NOTIFICATIONS_CHANNEL", "lessons.events")
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_STATS_CACHE", false)
	v.SetDefault("STATS_CACHE_TTL", "5m")

	v.SetDefault("AUTO_MIGRATE", false)
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
