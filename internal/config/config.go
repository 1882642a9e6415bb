// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :5000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for application records and load items.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// CORSAllowedOrigins is a comma-separated list of allowed origins; "*" allows any.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty means the client IP is always the connection's remote address.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// OTPLength is the number of digits in an issued code (default 6).
	OTPLength int `mapstructure:"OTP_LENGTH"`
	// OTPTTL is the validity window of an issued code (e.g. "10m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPMaxAttempts is the number of failed verifications after which a challenge is locked out (default 3).
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPSweepInterval enables the periodic expired-challenge sweep when > 0 (e.g. "5m"). Empty or "0" disables it.
	OTPSweepInterval string `mapstructure:"OTP_SWEEP_INTERVAL"`
	// SessionTokenLength is the length of the opaque session credential (default 32).
	SessionTokenLength int `mapstructure:"SESSION_TOKEN_LENGTH"`
	// OTPReturnToClient when true enables dev OTP mode: no email, OTP stored for GET /dev/otp. Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// AuditLogPath is the append-only login activity log file.
	AuditLogPath string `mapstructure:"AUDIT_LOG_PATH"`

	// MailProvider selects the OTP delivery transport: "smtp" or "http".
	MailProvider string `mapstructure:"MAIL_PROVIDER"`
	// MailFrom is the sender address for OTP emails.
	MailFrom string `mapstructure:"MAIL_FROM"`
	// MailTimeout bounds a single delivery attempt (e.g. "15s").
	MailTimeout string `mapstructure:"MAIL_TIMEOUT"`
	SMTPHost    string `mapstructure:"SMTP_HOST"`
	SMTPPort    int    `mapstructure:"SMTP_PORT"`
	SMTPUser    string `mapstructure:"SMTP_USERNAME"`
	SMTPPass    string `mapstructure:"SMTP_PASSWORD"`
	// MailAPIURL is the transactional email API endpoint used when MailProvider is "http".
	MailAPIURL string `mapstructure:"MAIL_API_URL"`
	// MailAPIKey is sent as the Authorization header to MailAPIURL.
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`

	// RedisAddr enables the send-otp rate limiter when set (e.g. "localhost:6379").
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// OTPSendLimit is the number of send-otp requests allowed per client IP per window.
	OTPSendLimit int `mapstructure:"OTP_SEND_LIMIT"`
	// OTPSendWindow is the rate limit window (e.g. "15m").
	OTPSendWindow string `mapstructure:"OTP_SEND_WINDOW"`

	// SinglePhaseLimitKVA is the largest load a single phase connection can supply.
	SinglePhaseLimitKVA float64 `mapstructure:"SINGLE_PHASE_LIMIT_KVA"`
	// AutoQuoteMaxKVA is the largest total load eligible for an automatic quote.
	AutoQuoteMaxKVA float64 `mapstructure:"AUTO_QUOTE_MAX_KVA"`

	// Telemetry (optional). When Kafka brokers are set, the server emits request and audit events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events (default portal-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 3)
	v.SetDefault("OTP_SWEEP_INTERVAL", "")
	v.SetDefault("SESSION_TOKEN_LENGTH", 32)
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("AUDIT_LOG_PATH", "login_logs.log")
	v.SetDefault("MAIL_PROVIDER", "smtp")
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("MAIL_TIMEOUT", "15s")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_API_URL", "")
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("OTP_SEND_LIMIT", 5)
	v.SetDefault("OTP_SEND_WINDOW", "15m")
	v.SetDefault("SINGLE_PHASE_LIMIT_KVA", 23.0)
	v.SetDefault("AUTO_QUOTE_MAX_KVA", 100.0)
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "portal-telemetry")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "connections-portal")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "portal-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.OTPLength == 0 {
		cfg.OTPLength = 6
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 12 {
		return nil, errors.New("config: OTP_LENGTH must be between 4 and 12")
	}
	if cfg.OTPMaxAttempts == 0 {
		cfg.OTPMaxAttempts = 3
	}
	if cfg.OTPMaxAttempts < 1 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.SessionTokenLength == 0 {
		cfg.SessionTokenLength = 32
	}
	if cfg.SessionTokenLength < 16 {
		return nil, errors.New("config: SESSION_TOKEN_LENGTH must be at least 16")
	}

	for _, p := range cfg.TrustedProxyList() {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return nil, fmt.Errorf("config: TRUSTED_PROXIES entry %q is not an IP or CIDR", p)
			}
		}
	}

	cfg.MailProvider = strings.ToLower(strings.TrimSpace(cfg.MailProvider))
	if cfg.MailProvider != "smtp" && cfg.MailProvider != "http" {
		return nil, errors.New("config: MAIL_PROVIDER must be smtp or http")
	}

	return &cfg, nil
}

// OTPValidity parses OTPTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) OTPValidity() time.Duration {
	return parseDurationOr(c.OTPTTL, 10*time.Minute)
}

// MailSendTimeout parses MailTimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) MailSendTimeout() time.Duration {
	return parseDurationOr(c.MailTimeout, 15*time.Second)
}

// SendWindow parses OTPSendWindow as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) SendWindow() time.Duration {
	return parseDurationOr(c.OTPSendWindow, 15*time.Minute)
}

// SweepInterval parses OTPSweepInterval. Returns 0 (sweep disabled) if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDurationOr(c.OTPSweepInterval, 0)
}

// AllowedOrigins returns CORS origins from the comma-separated config.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxyList returns the proxy IPs and CIDRs from TRUSTED_PROXIES.
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
