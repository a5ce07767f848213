package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable the service reads.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Razorpay      RazorpayConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
	FeatureFlags  FeatureFlagsConfig
	PaymentExpiry PaymentExpiryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.App.IsProd() && cfg.Razorpay.KeyID == "" && cfg.Stripe.APIKey == "" {
		return nil, fmt.Errorf("at least one payment gateway must be configured in prod")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SEEDMART_APP_ENV" required:"true"`
	Port         string `envconfig:"SEEDMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SEEDMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SEEDMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SEEDMART_DB_DSN"`
	Driver string `envconfig:"SEEDMART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SEEDMART_DB_HOST"`
	Port     int    `envconfig:"SEEDMART_DB_PORT" default:"5432"`
	User     string `envconfig:"SEEDMART_DB_USER"`
	Password string `envconfig:"SEEDMART_DB_PASSWORD"`
	Name     string `envconfig:"SEEDMART_DB_NAME"`
	SSLMode  string `envconfig:"SEEDMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SEEDMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SEEDMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SEEDMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SEEDMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("db config requires either SEEDMART_DB_DSN or host/user/name")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SEEDMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SEEDMART_REDIS_ADDR"`
	Password     string        `envconfig:"SEEDMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"SEEDMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SEEDMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SEEDMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SEEDMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SEEDMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SEEDMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SEEDMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SEEDMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SEEDMART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"SEEDMART_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"SEEDMART_RAZORPAY_KEY_SECRET"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"SEEDMART_STRIPE_API_KEY"`
	SuccessURL string `envconfig:"SEEDMART_STRIPE_SUCCESS_URL" default:"https://seedmart.app/payment-success"`
	CancelURL  string `envconfig:"SEEDMART_STRIPE_CANCEL_URL" default:"https://seedmart.app/payment-cancel"`
}

type CheckoutConfig struct {
	GatewayTimeout time.Duration `envconfig:"SEEDMART_CHECKOUT_GATEWAY_TIMEOUT" default:"10s"`
	CallbackURL    string        `envconfig:"SEEDMART_CHECKOUT_CALLBACK_URL" default:"https://seedmart.app/payment-success"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SEEDMART_AUTO_MIGRATE" default:"false"`
}

type PaymentExpiryConfig struct {
	PendingTTL time.Duration `envconfig:"SEEDMART_PAYMENT_PENDING_TTL" default:"24h"`
	Interval   time.Duration `envconfig:"SEEDMART_PAYMENT_EXPIRY_INTERVAL" default:"10m"`
	BatchSize  int           `envconfig:"SEEDMART_PAYMENT_EXPIRY_BATCH" default:"100"`
}
