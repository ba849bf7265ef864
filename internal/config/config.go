package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/MohamedElashri/snipvault/internal/auth"
)

// Config holds all server configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	S3       S3Config
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	TrustProxy     bool
	AllowedOrigins []string
	EnableMetrics  bool
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	BusyTimeout     int
	JournalMode     string
	SynchronousMode string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	SessionSecret          string
	SessionSecretGenerated bool // True if session secret was auto-generated (not recommended for production)
	SessionDuration        time.Duration
	SecureCookies          bool
	LoginRate              float64 // attempts per second per client
	LoginBurst             int
}

// S3Config holds S3 storage settings
type S3Config struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	Prefix          string
	UseSSL          bool
	Retention       int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string
}

// ClientConfig configures snipctl
type ClientConfig struct {
	APIURL          string        `validate:"required,url"`
	Token           string        `validate:"omitempty,jwt"`
	Timeout         time.Duration `validate:"gt=0"`
	WatchdogTimeout time.Duration `validate:"gte=0"`
	PageSize        int           `validate:"gte=1,lte=100"`
	Logging         LoggingConfig
}

// LoadDotEnv seeds the environment from the given .env files, or ./.env when
// none are named. Variables already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads server configuration from environment variables
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Server
	cfg.Server.Host = getEnv("SNIPO_HOST", "0.0.0.0")
	cfg.Server.Port = getEnvInt("SNIPO_PORT", 8080)
	cfg.Server.ReadTimeout = getEnvDuration("SNIPO_READ_TIMEOUT", 30*time.Second)
	cfg.Server.WriteTimeout = getEnvDuration("SNIPO_WRITE_TIMEOUT", 30*time.Second)
	cfg.Server.TrustProxy = getEnvBool("SNIPO_TRUST_PROXY", false)
	cfg.Server.AllowedOrigins = getEnvList("SNIPO_ALLOWED_ORIGINS", nil)
	cfg.Server.EnableMetrics = getEnvBool("SNIPO_METRICS", true)

	// Database
	cfg.Database.Path = getEnv("SNIPO_DB_PATH", "./data/snipo.db")
	cfg.Database.MaxOpenConns = getEnvInt("SNIPO_DB_MAX_CONNS", 1)
	cfg.Database.BusyTimeout = getEnvInt("SNIPO_DB_BUSY_TIMEOUT", 5000)
	cfg.Database.JournalMode = getEnv("SNIPO_DB_JOURNAL", "WAL")
	cfg.Database.SynchronousMode = getEnv("SNIPO_DB_SYNC", "NORMAL")

	// Auth
	sessionSecret := os.Getenv("SNIPO_SESSION_SECRET")
	if sessionSecret == "" {
		secret, err := auth.GenerateSecret()
		if err != nil {
			return nil, err
		}
		sessionSecret = secret
		cfg.Auth.SessionSecretGenerated = true
	}
	cfg.Auth.SessionSecret = sessionSecret
	cfg.Auth.SessionDuration = getEnvDuration("SNIPO_SESSION_DURATION", 168*time.Hour)
	cfg.Auth.SecureCookies = getEnvBool("SNIPO_SECURE_COOKIES", true)
	cfg.Auth.LoginRate = getEnvFloat("SNIPO_LOGIN_RATE", 0.2)
	cfg.Auth.LoginBurst = getEnvInt("SNIPO_LOGIN_BURST", 5)

	// S3
	cfg.S3.Enabled = getEnvBool("SNIPO_S3_ENABLED", false)
	cfg.S3.Endpoint = os.Getenv("SNIPO_S3_ENDPOINT")
	cfg.S3.AccessKeyID = os.Getenv("SNIPO_S3_ACCESS_KEY")
	cfg.S3.SecretAccessKey = os.Getenv("SNIPO_S3_SECRET_KEY")
	cfg.S3.Bucket = os.Getenv("SNIPO_S3_BUCKET")
	cfg.S3.Region = getEnv("SNIPO_S3_REGION", "us-east-1")
	cfg.S3.Prefix = os.Getenv("SNIPO_S3_PREFIX")
	cfg.S3.UseSSL = getEnvBool("SNIPO_S3_SSL", true)
	cfg.S3.Retention = getEnvInt("SNIPO_S3_RETENTION", 0)
	if cfg.S3.Enabled && cfg.S3.Bucket == "" {
		return nil, errors.New("SNIPO_S3_BUCKET is required when S3 is enabled")
	}

	// Logging
	cfg.Logging.Level = getEnv("SNIPO_LOG_LEVEL", "info")
	cfg.Logging.Format = getEnv("SNIPO_LOG_FORMAT", "json")

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid SNIPO_PORT %d", cfg.Server.Port)
	}

	return cfg, nil
}

// LoadClient reads snipctl configuration from the environment
func LoadClient() (*ClientConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		APIURL:          getEnv("SNIPO_API_URL", "http://localhost:8080"),
		Token:           os.Getenv("SNIPO_TOKEN"),
		Timeout:         getEnvDuration("SNIPO_CLIENT_TIMEOUT", 30*time.Second),
		WatchdogTimeout: getEnvDuration("SNIPO_WATCHDOG_TIMEOUT", 10*time.Second),
		PageSize:        getEnvInt("SNIPO_PAGE_SIZE", 10),
		Logging: LoggingConfig{
			Level:  getEnv("SNIPO_LOG_LEVEL", "warn"),
			Format: getEnv("SNIPO_LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the client configuration
func (c *ClientConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid client config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}

// Addr returns the server address string
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Helper functions

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
