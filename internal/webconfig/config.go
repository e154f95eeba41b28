package webconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Port        int      `json:"port"`
	Bind        string   `json:"bind"`
	CORSOrigins []string `json:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret         string `json:"jwt_secret"`
	JWTExpire         string `json:"jwt_expire"`
	AllowRegistration bool   `json:"allow_registration"`
}

type DatabaseConfig struct {
	Driver      string `json:"driver"`
	SQLitePath  string `json:"sqlite_path"`
	PostgresDSN string `json:"postgres_dsn"`
}

type LogConfig struct {
	Level      string `json:"level"`
	Mode       string `json:"mode"`
	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// BudgetConfig overrides the request budget of one indicator kind.
type BudgetConfig struct {
	Max           int `json:"max"`
	WindowSeconds int `json:"window_seconds"`
}

type RateLimitConfig struct {
	Backend       string                  `json:"backend"` // memory | redis
	RedisAddr     string                  `json:"redis_addr"`
	RedisPassword string                  `json:"redis_password"`
	RedisDB       int                     `json:"redis_db"`
	Budgets       map[string]BudgetConfig `json:"budgets"`
}

type EnrichmentConfig struct {
	UserAgent     string `json:"user_agent"`
	SocialDelayMS int    `json:"social_delay_ms"`
	CacheEnabled  bool   `json:"cache_enabled"`
}

type SecurityConfig struct {
	// APIKeyEncryptionKey is a 64 char hex string; empty stores api keys as plaintext.
	APIKeyEncryptionKey string `json:"api_key_encryption_key"`
}

type Config struct {
	Server     ServerConfig     `json:"server"`
	Auth       AuthConfig       `json:"auth"`
	Database   DatabaseConfig   `json:"database"`
	Log        LogConfig        `json:"log"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Enrichment EnrichmentConfig `json:"enrichment"`
	Security   SecurityConfig   `json:"security"`
}

// defaultDataDir 返回数据目录（存放 osintdeck.db/json/log）
func defaultDataDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "./data"
	}
	return filepath.Join(filepath.Dir(exe), "data")
}

func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:        18800,
			Bind:        "0.0.0.0",
			CORSOrigins: []string{},
		},
		Auth: AuthConfig{
			JWTSecret:         "",
			JWTExpire:         "24h",
			AllowRegistration: false,
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(dataDir, "osintdeck.db"),
		},
		Log: LogConfig{
			Level:      "info",
			Mode:       "production",
			FilePath:   filepath.Join(dataDir, "osintdeck.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
		RateLimit: RateLimitConfig{
			Backend: "memory",
			Budgets: map[string]BudgetConfig{},
		},
		Enrichment: EnrichmentConfig{
			UserAgent:     "OSINTDeck/1.0",
			SocialDelayMS: 200,
			CacheEnabled:  true,
		},
	}
}

func ConfigPath() string {
	if custom := strings.TrimSpace(os.Getenv("OSD_CONFIG")); custom != "" {
		return custom
	}
	return filepath.Join(defaultDataDir(), "osintdeck.json")
}

func Load() (Config, error) {
	cfg := Default()

	// Layer 1: config file
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil && len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Default(), err
		}
	}

	// Layer 2: environment variables override
	applyEnvOverrides(&cfg)

	// Layer 3: generate JWT secret if empty and persist it
	if cfg.Auth.JWTSecret == "" {
		secret, err := generateSecret(32)
		if err != nil {
			return cfg, err
		}
		cfg.Auth.JWTSecret = secret
		_ = Save(cfg)
	}

	return cfg, nil
}

func Save(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func (c *Config) ListenAddr() string {
	return c.Server.Bind + ":" + strconv.Itoa(c.Server.Port)
}

func (c *Config) JWTExpireDuration() time.Duration {
	d, err := time.ParseDuration(c.Auth.JWTExpire)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

func (c *Config) IsDebug() bool {
	return strings.EqualFold(c.Log.Mode, "debug")
}

func (c *Config) SocialDelay() time.Duration {
	if c.Enrichment.SocialDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.Enrichment.SocialDelayMS) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OSD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("OSD_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("OSD_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("OSD_DB_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("OSD_DB_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("OSD_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("OSD_JWT_EXPIRE"); v != "" {
		cfg.Auth.JWTExpire = v
	}
	if v := os.Getenv("OSD_ALLOW_REGISTRATION"); v != "" {
		cfg.Auth.AllowRegistration = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("OSD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("OSD_LOG_MODE"); v != "" {
		cfg.Log.Mode = v
	}
	if v := os.Getenv("OSD_LOG_FILE"); v != "" {
		cfg.Log.FilePath = v
	}
	if v := os.Getenv("OSD_RATELIMIT_BACKEND"); v != "" {
		cfg.RateLimit.Backend = v
	}
	if v := os.Getenv("OSD_REDIS_ADDR"); v != "" {
		cfg.RateLimit.RedisAddr = v
	}
	if v := os.Getenv("OSD_REDIS_PASSWORD"); v != "" {
		cfg.RateLimit.RedisPassword = v
	}
	if v := os.Getenv("OSD_REDIS_DB"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RedisDB = p
		}
	}
	if v := os.Getenv("OSD_USER_AGENT"); v != "" {
		cfg.Enrichment.UserAgent = v
	}
	if v := os.Getenv("OSD_SOCIAL_DELAY_MS"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Enrichment.SocialDelayMS = p
		}
	}
	if v := os.Getenv("OSD_API_KEYS_KEY"); v != "" {
		cfg.Security.APIKeyEncryptionKey = v
	}
}

func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
