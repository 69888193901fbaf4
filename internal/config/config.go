package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment  string             `yaml:"environment" env:"APP_ENV"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	JWT          JWTConfig          `yaml:"jwt"`
	Security     SecurityConfig     `yaml:"security"`
	OTP          OTPConfig          `yaml:"otp"`
	Mail         MailConfig         `yaml:"mail"`
	SMS          SMSConfig          `yaml:"sms"`
	Payments     PaymentsConfig     `yaml:"payments"`
	Phone        PhoneConfig        `yaml:"phone"`
	Organization OrganizationConfig `yaml:"organization"`
	Tasks        TasksConfig        `yaml:"tasks"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Log          LogConfig          `yaml:"log"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port int    `yaml:"port" env:"SERVER_PORT"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE"`
}

// RedisConfig enables the revocation cache when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// JWTConfig contains token signing settings
type JWTConfig struct {
	Secret               string `yaml:"secret" env:"SECRET_KEY"`
	SessionExpiryHours   int    `yaml:"session_expiry_hours"`
	SingleUseExpiryHours int    `yaml:"single_use_expiry_hours"`
}

// SecurityConfig holds the keys used for data encrypted at rest
type SecurityConfig struct {
	PasswordPepper string `yaml:"password_pepper" env:"PASSWORD_PEPPER"`
	SecretsKey     string `yaml:"secrets_key" env:"SECRETS_KEY"`
}

// OTPConfig contains one-time pin settings
type OTPConfig struct {
	Issuer        string `yaml:"issuer"`
	PeriodSeconds uint   `yaml:"period_seconds"`
}

// MailConfig contains process-wide SendGrid defaults
type MailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key" env:"SENDGRID_API_KEY"`
	DefaultSender  string `yaml:"default_sender" env:"MAILER_DEFAULT_SENDER"`
	SenderName     string `yaml:"sender_name"`
	AppDomain      string `yaml:"app_domain" env:"APP_DOMAIN"`
}

// SMSConfig contains SMS gateway settings
type SMSConfig struct {
	URL      string `yaml:"url" env:"SMS_URL"`
	Username string `yaml:"username" env:"SMS_USERNAME"`
	APIKey   string `yaml:"api_key" env:"SMS_API_KEY"`
	SenderID string `yaml:"sender_id"`
}

// PaymentsConfig contains Africa's Talking payment API settings
type PaymentsConfig struct {
	AfricasTalkingAPIKey   string `yaml:"africas_talking_api_key" env:"AFRICASTALKING_API_KEY"`
	AfricasTalkingUsername string `yaml:"africas_talking_username" env:"AFRICASTALKING_USERNAME"`
	MobileCheckoutURL      string `yaml:"mobile_checkout_url"`
	B2BURL                 string `yaml:"b2b_url"`
	B2CURL                 string `yaml:"b2c_url"`
	WalletBalanceURL       string `yaml:"wallet_balance_url"`
	FindTransactionURL     string `yaml:"find_transaction_url"`
	TimeoutSeconds         int    `yaml:"timeout_seconds"`
	ReconcileAfterMinutes  int    `yaml:"reconcile_after_minutes"`
}

// PhoneConfig contains phone number parsing settings
type PhoneConfig struct {
	DefaultRegion string `yaml:"default_region" env:"DEFAULT_COUNTRY"`
}

// OrganizationConfig describes the master organization bootstrapped at start
type OrganizationConfig struct {
	MasterName string `yaml:"master_name"`
}

// TasksConfig sizes the deferred task worker pool
type TasksConfig struct {
	Workers    int `yaml:"workers"`
	QueueSize  int `yaml:"queue_size"`
	MaxRetries int `yaml:"max_retries"`
}

// RateLimitConfig applies to the /auth endpoints, per client IP. X-Forwarded-For is only
// honoured when the connecting peer falls inside TrustedProxies (IPs or CIDRs).
type RateLimitConfig struct {
	Burst          int      `yaml:"burst"`
	PerSecond      int      `yaml:"per_second"`
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" envSeparator:","`
}

// TrustedProxyPrefixes parses TrustedProxies; a bare address becomes a single-host prefix
func (c RateLimitConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	PruneBlacklistedTokens     string `yaml:"prune_blacklisted_tokens"`
	ReconcileStaleTransactions string `yaml:"reconcile_stale_transactions"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.JWT.SessionExpiryHours == 0 {
		c.JWT.SessionExpiryHours = 24 * 7
	}
	if c.JWT.SingleUseExpiryHours == 0 {
		c.JWT.SingleUseExpiryHours = 24
	}
	if c.OTP.PeriodSeconds == 0 {
		c.OTP.PeriodSeconds = 3600
	}
	if c.OTP.Issuer == "" {
		c.OTP.Issuer = "tenantauth"
	}
	if c.Phone.DefaultRegion == "" {
		c.Phone.DefaultRegion = "KE"
	}
	if c.Payments.TimeoutSeconds == 0 {
		c.Payments.TimeoutSeconds = 5
	}
	if c.Payments.ReconcileAfterMinutes == 0 {
		c.Payments.ReconcileAfterMinutes = 30
	}
	if c.Organization.MasterName == "" {
		c.Organization.MasterName = "Master Organization"
	}
	if c.Tasks.Workers == 0 {
		c.Tasks.Workers = 4
	}
	if c.Tasks.QueueSize == 0 {
		c.Tasks.QueueSize = 256
	}
	if c.Tasks.MaxRetries == 0 {
		c.Tasks.MaxRetries = 3
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Scheduler.PruneBlacklistedTokens == "" {
		c.Scheduler.PruneBlacklistedTokens = "0 0 3 * * *" // 3 AM UTC
	}
	if c.Scheduler.ReconcileStaleTransactions == "" {
		c.Scheduler.ReconcileStaleTransactions = "0 */15 * * * *"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	if c.Security.PasswordPepper == "" {
		return fmt.Errorf("password pepper is required")
	}
	if c.Security.SecretsKey == "" {
		return fmt.Errorf("secrets key is required")
	}

	if c.OTP.PeriodSeconds < 30 {
		return fmt.Errorf("OTP period must be at least 30 seconds, got %d", c.OTP.PeriodSeconds)
	}
	if len(c.Phone.DefaultRegion) != 2 {
		return fmt.Errorf("default phone region must be an ISO 3166-1 alpha-2 code: %q", c.Phone.DefaultRegion)
	}
	if _, err := c.RateLimit.TrustedProxyPrefixes(); err != nil {
		return err
	}

	return nil
}

// IsDevelopment reports whether outbound delivery should be replaced by logging
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "testing"
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
