// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	AWS          AWSConfig
	Ledger       LedgerConfig
	ContentStore ContentStoreConfig
	Payment      PaymentConfig
	Streaming    StreamingConfig
	Email        EmailConfig
	I18n         I18nConfig
	Log          LogConfig
	Frontend     FrontendConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	RateLimit      bool
	Port           string
	Host           string
	ReadTimeout    int
	WriteTimeout   int
	IdleTimeout    int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver       string // postgres | memory
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
	AutoMigrate  bool
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
	ViewingTokenTTL int // in hours
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	S3Bucket        string
}

type LedgerConfig struct {
	RPCURL           string
	RecipientAddress string
	TokenAddress     string
	TokenDecimals    int
	Currency         string
	TimeoutSeconds   int
	QuoteTTLMinutes  int
}

func (l LedgerConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

type ContentStoreConfig struct {
	Backend        string // cas | s3 | memory
	URL            string
	APIToken       string
	TimeoutSeconds int
	// URLHosts lists the hosts plain http(s) locators may point at. Empty
	// disables URL locators.
	URLHosts []string
}

func (c ContentStoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type PaymentConfig struct {
	StripeSecretKey      string
	StripePublishableKey string
	Currency             string
}

type StreamingConfig struct {
	ViewWindowMinutes int
	UploadMaxBytes    int64
}

func (s StreamingConfig) ViewWindow() time.Duration {
	return time.Duration(s.ViewWindowMinutes) * time.Minute
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
	OpsEmail     string
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

type LogConfig struct {
	Level  string
	Format string // text | json
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			RateLimit:      getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 120),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DATABASE_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "vidmarket"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
			ViewingTokenTTL: getEnvAsInt("JWT_VIEWING_TTL", 168), // 7 days
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "vidmarket-videos"),
		},
		Ledger: LedgerConfig{
			RPCURL:           getEnv("LEDGER_RPC_URL", "http://localhost:8545"),
			RecipientAddress: getEnv("LEDGER_RECIPIENT_ADDRESS", ""),
			TokenAddress:     getEnv("LEDGER_TOKEN_ADDRESS", ""),
			TokenDecimals:    getEnvAsInt("LEDGER_TOKEN_DECIMALS", 6),
			Currency:         getEnv("LEDGER_CURRENCY", "USDC"),
			TimeoutSeconds:   getEnvAsInt("LEDGER_TIMEOUT_SECONDS", 10),
			QuoteTTLMinutes:  getEnvAsInt("LEDGER_QUOTE_TTL_MINUTES", 15),
		},
		ContentStore: ContentStoreConfig{
			Backend:        getEnv("CONTENT_STORE_BACKEND", "memory"),
			URL:            getEnv("CONTENT_STORE_URL", ""),
			APIToken:       getEnv("CONTENT_STORE_API_TOKEN", ""),
			TimeoutSeconds: getEnvAsInt("CONTENT_STORE_TIMEOUT_SECONDS", 60),
			URLHosts:       getEnvAsList("CONTENT_URL_ALLOWED_HOSTS", nil),
		},
		Payment: PaymentConfig{
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			Currency:             strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		},
		Streaming: StreamingConfig{
			ViewWindowMinutes: getEnvAsInt("STREAM_VIEW_WINDOW_MINUTES", 30),
			UploadMaxBytes:    int64(getEnvAsInt("UPLOAD_MAX_BYTES", 2<<30)),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "noreply@vidmarket.io"),
			FromName:     getEnv("FROM_NAME", "VidMarket"),
			OpsEmail:     getEnv("OPS_EMAIL", ""),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.Password == "" && c.Database.Driver == "postgres" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.JWT.ViewingTokenTTL <= 0 {
		return fmt.Errorf("viewing token ttl must be positive")
	}

	if c.Ledger.RecipientAddress == "" && c.Environment == "production" {
		return fmt.Errorf("ledger recipient address is required in production")
	}

	if c.Ledger.TokenDecimals < 0 || c.Ledger.TokenDecimals > 36 {
		return fmt.Errorf("ledger token decimals must be between 0 and 36")
	}

	if c.Ledger.TimeoutSeconds <= 0 || c.ContentStore.TimeoutSeconds <= 0 {
		return fmt.Errorf("ledger and content store timeouts must be positive")
	}

	switch c.ContentStore.Backend {
	case "memory", "s3":
	case "cas":
		if c.ContentStore.URL == "" {
			return fmt.Errorf("CONTENT_STORE_URL is required for the cas backend")
		}
	default:
		return fmt.Errorf("unsupported content store backend: %s", c.ContentStore.Backend)
	}

	if c.Streaming.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
