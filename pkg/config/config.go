package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port     string
		GRPCPort string
		Env      string
		Timeout  time.Duration
		BaseURL  string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
		File   string
	}

	// Chat pipeline settings
	Chat struct {
		HistoryWindow     int
		MaxMessageLength  int
		IdempotencyTTL    time.Duration
		EnableWebSockets  bool
		EscalationRules   string
		ConfidenceBase    float64
		ConfidenceCrit    float64
		ConfidenceHigh    float64
		ConfidenceMedium  float64
		ConfidenceElderly float64
	}

	// Generation backend settings
	Generation struct {
		Provider         string
		BaseURL          string
		Model            string
		APIKey           string
		Timeout          time.Duration
		MaxTokens        int
		Temperature      float64
		BreakerThreshold int
		BreakerCooldown  time.Duration
	}

	// Redis settings. An empty Addr selects the in-memory cache.
	Redis struct {
		Addr      string
		Password  string
		DB        int
		KeyPrefix string
	}

	// Reputation provider settings
	Reputation struct {
		HIBPKey       string
		AbuseIPDBKey  string
		PhishScanKey  string
		Timeout       time.Duration
		CacheTTL      time.Duration
		RatePerSecond float64
	}

	// Vault settings. An empty Addr disables vault lookups.
	Vault struct {
		Addr       string
		Token      string
		SecretPath string
	}

	Observability struct {
		Tracing bool
		Metrics bool
	}
}

// KnownProviders lists the generation providers the factory can build
var KnownProviders = []string{"", "none", "openai", "langchain-openai", "ollama"}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9091")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	// Database config
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "fraud_advisor")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

	// JWT config
	cfg.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	// Security config
	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")
	cfg.Logging.File = getEnvString("LOG_FILE", "")

	// Chat pipeline
	cfg.Chat.HistoryWindow = getEnvInt("CHAT_HISTORY_WINDOW", 10)
	cfg.Chat.MaxMessageLength = getEnvInt("CHAT_MAX_MESSAGE_LENGTH", 4000)
	cfg.Chat.IdempotencyTTL = getEnvDuration("CHAT_IDEMPOTENCY_TTL", 24*time.Hour)
	cfg.Chat.EnableWebSockets = getEnvBool("ENABLE_WEBSOCKETS", true)
	cfg.Chat.EscalationRules = getEnvString("ESCALATION_RULES", "")
	cfg.Chat.ConfidenceBase = getEnvFloat("CONFIDENCE_BASE", 0.6)
	cfg.Chat.ConfidenceCrit = getEnvFloat("CONFIDENCE_CRITICAL_BOOST", 0.3)
	cfg.Chat.ConfidenceHigh = getEnvFloat("CONFIDENCE_HIGH_BOOST", 0.2)
	cfg.Chat.ConfidenceMedium = getEnvFloat("CONFIDENCE_MEDIUM_BOOST", 0.1)
	cfg.Chat.ConfidenceElderly = getEnvFloat("CONFIDENCE_ELDERLY_BOOST", 0.1)

	// Generation backend
	cfg.Generation.Provider = strings.ToLower(getEnvString("GENERATION_PROVIDER", ""))
	cfg.Generation.BaseURL = getEnvString("GENERATION_BASE_URL", "https://api.openai.com/v1")
	cfg.Generation.Model = getEnvString("GENERATION_MODEL", "gpt-4o-mini")
	cfg.Generation.APIKey = getEnvString("GENERATION_API_KEY", "")
	cfg.Generation.Timeout = getEnvDuration("GENERATION_TIMEOUT", 20*time.Second)
	cfg.Generation.MaxTokens = getEnvInt("GENERATION_MAX_TOKENS", 512)
	cfg.Generation.Temperature = getEnvFloat("GENERATION_TEMPERATURE", 0.7)
	cfg.Generation.BreakerThreshold = getEnvInt("GENERATION_BREAKER_THRESHOLD", 5)
	cfg.Generation.BreakerCooldown = getEnvDuration("GENERATION_BREAKER_COOLDOWN", 30*time.Second)

	// Redis
	cfg.Redis.Addr = getEnvString("REDIS_ADDR", "")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.KeyPrefix = getEnvString("REDIS_KEY_PREFIX", "fraud-advisor:")

	// Reputation providers
	cfg.Reputation.HIBPKey = getEnvString("HIBP_API_KEY", "")
	cfg.Reputation.AbuseIPDBKey = getEnvString("ABUSEIPDB_API_KEY", "")
	cfg.Reputation.PhishScanKey = getEnvString("PHISHSCAN_API_KEY", "")
	cfg.Reputation.Timeout = getEnvDuration("REPUTATION_TIMEOUT", 10*time.Second)
	cfg.Reputation.CacheTTL = getEnvDuration("REPUTATION_CACHE_TTL", time.Hour)
	cfg.Reputation.RatePerSecond = getEnvFloat("REPUTATION_RATE", 1)

	// Vault
	cfg.Vault.Addr = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.SecretPath = getEnvString("VAULT_SECRET_PATH", "secret/data/fraud-advisor")

	cfg.Observability.Tracing = getEnvBool("ENABLE_TRACING", false)
	cfg.Observability.Metrics = getEnvBool("ENABLE_METRICS", true)

	return cfg
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate reports every impossible combination of settings at once
func (c *Config) Validate() error {
	var errs []error

	if c.IsProduction() && (c.JWT.Secret == "" || strings.HasPrefix(c.JWT.Secret, "default-")) {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.JWT.Expiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}

	for name, v := range map[string]float64{
		"CONFIDENCE_BASE":           c.Chat.ConfidenceBase,
		"CONFIDENCE_CRITICAL_BOOST": c.Chat.ConfidenceCrit,
		"CONFIDENCE_HIGH_BOOST":     c.Chat.ConfidenceHigh,
		"CONFIDENCE_MEDIUM_BOOST":   c.Chat.ConfidenceMedium,
		"CONFIDENCE_ELDERLY_BOOST":  c.Chat.ConfidenceElderly,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}

	if c.Chat.HistoryWindow < 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_WINDOW must not be negative"))
	}
	if c.Chat.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("CHAT_MAX_MESSAGE_LENGTH must be positive"))
	}

	known := false
	for _, p := range KnownProviders {
		if c.Generation.Provider == p {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("unknown GENERATION_PROVIDER %q", c.Generation.Provider))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	if c.Generation.BreakerThreshold <= 0 {
		errs = append(errs, errors.New("GENERATION_BREAKER_THRESHOLD must be positive"))
	}

	if c.Security.RateLimit <= 0 || c.Security.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT and RATE_LIMIT_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
