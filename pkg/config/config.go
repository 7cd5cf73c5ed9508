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

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Catalog      CatalogConfig
	Registration RegistrationConfig
	Notify       NotifyConfig
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

// CatalogConfig points at the courses collaborator that serves the catalog
// snapshot and student histories.
type CatalogConfig struct {
	Host           string
	CoursesPath    string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	BreakerTimeout time.Duration
}

// RegistrationConfig carries engine defaults. MaxCredits is only the default
// ceiling; each request may narrow it.
type RegistrationConfig struct {
	MaxCredits int
}

// NotifyConfig configures the email notification collaborator.
type NotifyConfig struct {
	URL            string
	RequestTimeout time.Duration
	Workers        int
	MaxRetries     int
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
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Catalog = CatalogConfig{
		Host:           v.GetString("COURSES_HOST"),
		CoursesPath:    v.GetString("COURSES_PATH"),
		RequestTimeout: parseDuration(v.GetString("COURSES_TIMEOUT"), 30*time.Second),
		CacheTTL:       parseDuration(v.GetString("CATALOG_CACHE_TTL"), 5*time.Minute),
		BreakerTimeout: parseDuration(v.GetString("COURSES_BREAKER_TIMEOUT"), 30*time.Second),
	}

	cfg.Registration = RegistrationConfig{
		MaxCredits: v.GetInt("MAX_CREDITS_DEFAULT"),
	}

	cfg.Notify = NotifyConfig{
		URL:            v.GetString("NOTIFY_URL"),
		RequestTimeout: parseDuration(v.GetString("NOTIFY_TIMEOUT"), 10*time.Second),
		Workers:        v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:     v.GetInt("NOTIFY_MAX_RETRIES"),
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
	v.SetDefault("DB_NAME", "registration")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "auth-ms")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("COURSES_HOST", "http://courses-ms:8000")
	v.SetDefault("COURSES_PATH", "/courses")
	v.SetDefault("COURSES_TIMEOUT", "30s")
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("COURSES_BREAKER_TIMEOUT", "30s")

	v.SetDefault("MAX_CREDITS_DEFAULT", 20)

	v.SetDefault("NOTIFY_URL", "")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")
	v.SetDefault("NOTIFY_WORKERS", 1)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
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
