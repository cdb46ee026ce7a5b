// Package config は環境変数と任意のYAMLファイルからアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// App
	AppName  string
	Timezone string
	Location *time.Location

	// Database
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string

	// Auth
	TokenName  string
	TokenTTL   time.Duration // 0は無期限
	BcryptCost int

	// Cache
	CacheDriver string // redis / memory
	RedisURL    string

	// Mail
	MailDriver       string // log / smtp / http
	AdminEmail       string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPTLS          bool
	MailHTTPEndpoint string
	MailHTTPToken    string
	MailTimeout      time.Duration

	// Upload
	UploadDir              string
	MaxFileSizeInBytes     int64
	MaxFileSizeInMegabytes int

	// Schedule
	ReminderRunAt     string
	TokenCleanupRunAt string

	// Logging
	LogDir           string
	LogRetentionDays int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int
}

// source は環境変数と設定ファイルの値を保持する。環境変数を優先する。
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

// Load は設定を読み込む。
// CONFIG_FILEが指定されていればフラットなYAMLを先に読み、環境変数で上書きする。
// 必須項目が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = src.get("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = src.get("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AppName = src.getString("APP_NAME", "todoapi")
	cfg.Timezone = src.getString("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.ServerPort = src.getString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = src.getString("CORS_ALLOWED_ORIGIN", "*")

	cfg.TokenName = src.getString("API_DEFAULT_TOKEN_NAME", "api-token")
	cfg.TokenTTL = src.getDuration("TOKEN_TTL", 0)
	cfg.BcryptCost = src.getInt("BCRYPT_COST", 10)

	cfg.RedisURL = src.get("REDIS_URL")
	defaultCache := "memory"
	if cfg.RedisURL != "" {
		defaultCache = "redis"
	}
	cfg.CacheDriver = strings.ToLower(src.getString("CACHE_DRIVER", defaultCache))

	cfg.MailDriver = strings.ToLower(src.getString("MAIL_DRIVER", "log"))
	cfg.AdminEmail = src.get("ADMIN_EMAIL")
	cfg.SMTPHost = src.get("SMTP_HOST")
	cfg.SMTPPort = src.getInt("SMTP_PORT", 0)
	cfg.SMTPUsername = src.get("SMTP_USERNAME")
	cfg.SMTPPassword = src.get("SMTP_PASSWORD")
	cfg.SMTPTLS = src.getBool("SMTP_TLS", false)
	cfg.MailHTTPEndpoint = src.get("MAIL_HTTP_ENDPOINT")
	cfg.MailHTTPToken = src.get("MAIL_HTTP_TOKEN")
	cfg.MailTimeout = src.getDuration("MAIL_TIMEOUT", 10*time.Second)

	cfg.UploadDir = src.getString("UPLOAD_DIR", "uploads/profile_photos")
	cfg.MaxFileSizeInBytes = src.getInt64("MAX_FILE_SIZE_IN_BYTES", 2097152)
	cfg.MaxFileSizeInMegabytes = src.getInt("MAX_FILE_SIZE_IN_MEGABYTES", 2)

	cfg.ReminderRunAt = src.getString("REMINDER_RUN_AT", "00:05")
	cfg.TokenCleanupRunAt = src.getString("TOKEN_CLEANUP_RUN_AT", "03:00")

	cfg.LogDir = src.get("LOG_DIR")
	cfg.LogRetentionDays = src.getInt("LOG_RETENTION_DAYS", 30)

	cfg.RateLimitGeneral = src.getInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = src.getInt("RATE_LIMIT_AUTH", 10)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate はドライバ指定と、ドライバごとに必要な値を確認する。
func (c *Config) validate() error {
	switch c.CacheDriver {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_DRIVER=redis")
		}
	default:
		return fmt.Errorf("unsupported CACHE_DRIVER %q", c.CacheDriver)
	}

	switch c.MailDriver {
	case "log":
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_DRIVER=smtp")
		}
	case "http":
		if c.MailHTTPEndpoint == "" {
			return fmt.Errorf("MAIL_HTTP_ENDPOINT is required when MAIL_DRIVER=http")
		}
	default:
		return fmt.Errorf("unsupported MAIL_DRIVER %q", c.MailDriver)
	}
	return nil
}

// readFile はフラットなYAML（KEY: value）を読み込む。
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	values := make(map[string]string, len(raw))
	for key, v := range raw {
		switch v.(type) {
		case nil:
			continue
		case map[string]any, []any:
			return nil, fmt.Errorf("config file: %s must be a scalar value", key)
		}
		values[strings.ToUpper(key)] = fmt.Sprint(v)
	}
	return values, nil
}

func (s source) getString(key, defaultVal string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return defaultVal
}

func (s source) getInt(key string, defaultVal int) int {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getInt64(key string, defaultVal int64) int64 {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getBool(key string, defaultVal bool) bool {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (s source) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
