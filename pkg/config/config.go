package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "studioline"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Mail         MailConfig
	Invoice      InvoiceConfig
	Campaign     CampaignConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Invoice.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STUDIOLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"STUDIOLINE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STUDIOLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STUDIOLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"STUDIOLINE_DB_DSN"`

	Host     string `envconfig:"STUDIOLINE_DB_HOST"`
	Port     int    `envconfig:"STUDIOLINE_DB_PORT" default:"5432"`
	User     string `envconfig:"STUDIOLINE_DB_USER"`
	Password string `envconfig:"STUDIOLINE_DB_PASSWORD"`
	Name     string `envconfig:"STUDIOLINE_DB_NAME"`
	SSLMode  string `envconfig:"STUDIOLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STUDIOLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STUDIOLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STUDIOLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STUDIOLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Host == "" || db.User == "" || db.Name == "" {
		return fmt.Errorf("db dsn or host/user/name are required")
	}
	db.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.User, db.Password, db.Name, db.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"STUDIOLINE_REDIS_URL"`
	Address      string        `envconfig:"STUDIOLINE_REDIS_ADDR"`
	Password     string        `envconfig:"STUDIOLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STUDIOLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STUDIOLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STUDIOLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STUDIOLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STUDIOLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STUDIOLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STUDIOLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STUDIOLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STUDIOLINE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STUDIOLINE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"STUDIOLINE_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"STUDIOLINE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"STUDIOLINE_STRIPE_ENV" default:"test"`
	SuccessURL    string `envconfig:"STUDIOLINE_STRIPE_SUCCESS_URL"`
	CancelURL     string `envconfig:"STUDIOLINE_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STUDIOLINE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STUDIOLINE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STUDIOLINE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"STUDIOLINE_GCS_BUCKET_NAME"`
}

type MailConfig struct {
	APIKey      string        `envconfig:"STUDIOLINE_SENDGRID_API_KEY"`
	BaseURL     string        `envconfig:"STUDIOLINE_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	DefaultFrom string        `envconfig:"STUDIOLINE_SENDGRID_FROM_EMAIL"`
	SendTimeout time.Duration `envconfig:"STUDIOLINE_MAIL_SEND_TIMEOUT" default:"10s"`
	MaxRetries  int           `envconfig:"STUDIOLINE_MAIL_MAX_RETRIES" default:"2"`
}

type InvoiceConfig struct {
	NumberPrefix       string `envconfig:"STUDIOLINE_INVOICE_NUMBER_PREFIX" default:"SL"`
	TaxRatePercent     string `envconfig:"STUDIOLINE_INVOICE_TAX_RATE_PERCENT" default:"19"`
	AllocationAttempts int    `envconfig:"STUDIOLINE_INVOICE_ALLOCATION_ATTEMPTS" default:"5"`
	UploadAttempts     int    `envconfig:"STUDIOLINE_INVOICE_UPLOAD_ATTEMPTS" default:"3"`
}

// TaxRate parses the configured percentage into a decimal rate.
func (i InvoiceConfig) TaxRate() decimal.Decimal {
	rate, err := decimal.NewFromString(i.TaxRatePercent)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (i InvoiceConfig) validate() error {
	if _, err := decimal.NewFromString(i.TaxRatePercent); err != nil {
		return fmt.Errorf("invalid tax rate %q: %w", i.TaxRatePercent, err)
	}
	if i.AllocationAttempts <= 0 {
		return fmt.Errorf("invoice allocation attempts must be positive")
	}
	if i.UploadAttempts <= 0 {
		return fmt.Errorf("invoice upload attempts must be positive")
	}
	return nil
}

type CampaignConfig struct {
	DailySendLimit int           `envconfig:"STUDIOLINE_CAMPAIGN_DAILY_LIMIT" default:"100"`
	Cooldown       time.Duration `envconfig:"STUDIOLINE_CAMPAIGN_COOLDOWN" default:"24h"`
}
