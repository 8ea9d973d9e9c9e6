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

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Upstream  UpstreamConfig
	Sessions  SessionConfig
	Staging   StagingConfig
	Downloads DownloadsConfig
	Forms     FormsConfig
	CSRF      CSRFConfig
	Metrics   MetricsConfig
	Purge     PurgeConfig
	Export    ExportConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UpstreamConfig points the gateway at the backend that owns the data.
type UpstreamConfig struct {
	BaseURL     string
	ReadTimeout time.Duration
	CSRFCookie  string
	CSRFHeader  string
	CSRFToken   string
}

// SessionConfig selects where form sessions live.
type SessionConfig struct {
	Store string
	TTL   time.Duration
}

// StagingConfig governs locally staged attachments awaiting submission.
type StagingConfig struct {
	Dir              string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	CleanupInterval  time.Duration
	Retention        time.Duration
}

// DownloadsConfig controls where generated documents are kept and how links are signed.
type DownloadsConfig struct {
	Dir             string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// FormsConfig locates form definitions.
type FormsConfig struct {
	DefinitionsPath string
	Watch           bool
}

type CSRFConfig struct {
	Secret string
	TTL    time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

// PurgeConfig sizes the background attachment purge queue.
type PurgeConfig struct {
	Workers int
	Retries int
}

// ExportConfig controls list exports. PDF output needs a UTF-8 TTF font for
// Cyrillic text; without one the core font is used.
type ExportConfig struct {
	PDFFont string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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
	cfg.Timezone = v.GetString("APP_TIMEZONE")

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Upstream = UpstreamConfig{
		BaseURL:     strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
		ReadTimeout: parseDuration(v.GetString("UPSTREAM_READ_TIMEOUT"), 10*time.Second),
		CSRFCookie:  v.GetString("UPSTREAM_CSRF_COOKIE"),
		CSRFHeader:  v.GetString("UPSTREAM_CSRF_HEADER"),
		CSRFToken:   v.GetString("UPSTREAM_CSRF_TOKEN"),
	}

	store := strings.ToLower(strings.TrimSpace(v.GetString("SESSION_STORE")))
	if store != SessionStoreRedis {
		store = SessionStoreMemory
	}
	cfg.Sessions = SessionConfig{
		Store: store,
		TTL:   parseDuration(v.GetString("SESSION_TTL"), 2*time.Hour),
	}

	maxStaged := v.GetInt64("STAGING_MAX_FILE_SIZE")
	if maxStaged <= 0 {
		maxStaged = 20 * 1024 * 1024
	}
	cfg.Staging = StagingConfig{
		Dir:              v.GetString("STAGING_DIR"),
		MaxFileSizeBytes: maxStaged,
		AllowedMIMEs:     splitAndTrim(v.GetString("STAGING_ALLOWED_MIME_TYPES")),
		CleanupInterval:  parseDuration(v.GetString("STAGING_CLEANUP_INTERVAL"), 30*time.Minute),
		Retention:        parseDuration(v.GetString("STAGING_RETENTION"), 6*time.Hour),
	}

	cfg.Downloads = DownloadsConfig{
		Dir:             v.GetString("DOWNLOADS_DIR"),
		SignedURLSecret: v.GetString("DOWNLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOWNLOADS_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.Forms = FormsConfig{
		DefinitionsPath: v.GetString("FORMS_DEFINITIONS_PATH"),
		Watch:           v.GetBool("FORMS_WATCH"),
	}

	cfg.CSRF = CSRFConfig{
		Secret: v.GetString("CSRF_SECRET"),
		TTL:    parseDuration(v.GetString("CSRF_TTL"), 12*time.Hour),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.Purge = PurgeConfig{
		Workers: v.GetInt("PURGE_WORKERS"),
		Retries: v.GetInt("PURGE_RETRIES"),
	}

	cfg.Export = ExportConfig{PDFFont: v.GetString("EXPORT_PDF_FONT")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_TIMEZONE", "Europe/Moscow")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:8000")
	v.SetDefault("UPSTREAM_READ_TIMEOUT", "10s")
	v.SetDefault("UPSTREAM_CSRF_COOKIE", "csrftoken")
	v.SetDefault("UPSTREAM_CSRF_HEADER", "X-CSRFToken")
	v.SetDefault("UPSTREAM_CSRF_TOKEN", "")

	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL", "2h")

	v.SetDefault("STAGING_DIR", "./staging")
	v.SetDefault("STAGING_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("STAGING_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	v.SetDefault("STAGING_CLEANUP_INTERVAL", "30m")
	v.SetDefault("STAGING_RETENTION", "6h")

	v.SetDefault("DOWNLOADS_DIR", "./downloads")
	v.SetDefault("DOWNLOADS_SIGNED_URL_SECRET", "dev_downloads_secret")
	v.SetDefault("DOWNLOADS_SIGNED_URL_TTL", "30m")

	v.SetDefault("FORMS_DEFINITIONS_PATH", "")
	v.SetDefault("FORMS_WATCH", false)

	v.SetDefault("CSRF_SECRET", "dev_csrf_secret")
	v.SetDefault("CSRF_TTL", "12h")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("PURGE_WORKERS", 1)
	v.SetDefault("PURGE_RETRIES", 3)
	v.SetDefault("EXPORT_PDF_FONT", "")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
