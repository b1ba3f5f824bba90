package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is read from an optional TOML file and then from the environment;
// environment variables win.
type Config struct {
	// HTTP Server
	Port string `toml:"port"`

	// Identity
	AuthUserHeader string `toml:"auth_user_header"`
	DefaultOwnerID string `toml:"default_owner_id,omitempty"`

	// Storage
	DataBackend  string        `toml:"data_backend"`
	DataDir      string        `toml:"data_dir"`
	SQLiteDBPath string        `toml:"sqlite_path,omitempty"`
	BoltPath     string        `toml:"bolt_path,omitempty"`
	SeedTimeout  time.Duration `toml:"seed_timeout"`

	// List cache. Off by default: writes made by another process (a CLI
	// import next to a running server) are not seen until the TTL expires.
	CacheSize int           `toml:"cache_size"`
	CacheTTL  time.Duration `toml:"cache_ttl"`

	// Assistant
	AIBackend string        `toml:"ai_backend"`
	AIAPIKey  string        `toml:"ai_api_key,omitempty"`
	AIBaseURL string        `toml:"ai_base_url"`
	AIModel   string        `toml:"ai_model"`
	OllamaURL string        `toml:"ollama_url"`
	AITimeout time.Duration `toml:"ai_timeout"`

	// AMQP
	AMQPURL      string `toml:"amqp_url,omitempty"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Google Sheets
	GoogleSpreadsheetID string `toml:"google_spreadsheet_id,omitempty"`
	GoogleSheetName     string `toml:"google_sheet_name,omitempty"`

	// Worker
	SyncBatchSize int           `toml:"sync_batch_size"`
	SyncInterval  time.Duration `toml:"sync_interval"`

	// HTTP hardening
	RateLimit       int           `toml:"rate_limit"`
	RateLimitWindow time.Duration `toml:"rate_limit_window"`
	TrustedProxies  []string      `toml:"trusted_proxies,omitempty"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:           "8080",
		AuthUserHeader: "X-User-Id",

		DataBackend: "memory",
		DataDir:     "./data",
		SeedTimeout: 10 * time.Second,

		CacheSize: 0,
		CacheTTL:  5 * time.Minute,

		AIBackend: "openai",
		AIBaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/",
		AIModel:   "gemini-2.0-flash",
		OllamaURL: "http://localhost:11434",
		AITimeout: 30 * time.Second,

		AMQPExchange: "bizbalance",
		AMQPQueue:    "transaction_recorded",

		SyncBatchSize: 10,
		SyncInterval:  time.Minute,

		RateLimit:       120,
		RateLimitWindow: time.Minute,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Path returns the config file location: BIZBALANCE_CONFIG, or
// config.toml in the XDG config directory.
func Path() string {
	if p := os.Getenv("BIZBALANCE_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bizbalance", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bizbalance", "config.toml")
}

// Load applies the config file (when present) and then the environment on
// top of the defaults. A missing file is not an error.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := cfg.loadFile(Path()); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	cfg.derivePaths()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	if _, err := toml.Decode(string(data), c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.AuthUserHeader = getEnv("AUTH_USER_HEADER", c.AuthUserHeader)
	c.DefaultOwnerID = getEnv("DEFAULT_OWNER_ID", c.DefaultOwnerID)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.BoltPath = getEnv("BOLT_DB_PATH", c.BoltPath)
	c.SeedTimeout = getEnvDuration("SEED_TIMEOUT", c.SeedTimeout)

	c.CacheSize = getEnvInt("CACHE_SIZE", c.CacheSize)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)

	c.AIBackend = getEnv("AI_BACKEND", c.AIBackend)
	c.AIAPIKey = getEnv("AI_API_KEY", getEnv("GEMINI_API_KEY", c.AIAPIKey))
	c.AIBaseURL = getEnv("AI_BASE_URL", c.AIBaseURL)
	c.AIModel = getEnv("AI_MODEL", c.AIModel)
	c.OllamaURL = getEnv("OLLAMA_URL", c.OllamaURL)
	c.AITimeout = getEnvDuration("AI_TIMEOUT", c.AITimeout)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)

	c.SyncBatchSize = getEnvInt("SYNC_BATCH_SIZE", c.SyncBatchSize)
	c.SyncInterval = getEnvDuration("SYNC_INTERVAL", c.SyncInterval)

	c.RateLimit = getEnvInt("RATE_LIMIT", c.RateLimit)
	c.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimitWindow)
	c.TrustedProxies = getEnvList("TRUSTED_PROXIES", c.TrustedProxies)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func (c *Config) derivePaths() {
	if c.SQLiteDBPath == "" {
		c.SQLiteDBPath = filepath.Join(c.DataDir, "bizbalance.db")
	}
	if c.BoltPath == "" {
		c.BoltPath = filepath.Join(c.DataDir, "bizbalance.bolt")
	}
}

// Save writes c as TOML with owner-only permissions.
func Save(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// ValidBackends lists the accepted DATA_BACKEND values.
var ValidBackends = []string{"memory", "bolt", "sqlite"}

var validAIBackends = []string{"openai", "ollama", "none"}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.AuthUserHeader) == "" {
		errors = append(errors, "auth user header cannot be empty")
	}

	// Validate data backend
	if !contains(ValidBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, ValidBackends))
	}
	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "bolt":
		if c.BoltPath == "" {
			errors = append(errors, "bolt database path cannot be empty when using bolt backend")
		}
	}
	if c.SeedTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid seed timeout %v: must be positive", c.SeedTimeout))
	}

	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheSize))
	}

	// Validate assistant backend
	if !contains(validAIBackends, c.AIBackend) {
		errors = append(errors, fmt.Sprintf("invalid AI backend '%s': must be one of %v", c.AIBackend, validAIBackends))
	}
	if c.AIBackend == "ollama" && c.OllamaURL == "" {
		errors = append(errors, "Ollama URL cannot be empty when using ollama backend")
	}
	if c.AITimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid AI timeout %v: must be positive", c.AITimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}
	if c.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be positive", c.RateLimitWindow))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings only the sheets worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.DataBackend != "sqlite" {
		errors = append(errors, fmt.Sprintf("sync worker requires the sqlite backend, got '%s'", c.DataBackend))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the sync worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the sync worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
