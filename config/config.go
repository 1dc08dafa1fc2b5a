// Package config loads the identity service settings from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Prefix is prepended to every environment variable name.
const Prefix = "NAS_"

// Notifier transports.
const (
	NotifierLog  = "log"
	NotifierSMTP = "smtp"
	NotifierSES  = "ses"
)

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite" json:"driver"`
	DSN    string `env:"DSN" envDefault:"file:nas-identity.db?cache=shared" json:"dsn"`
}

type Auth struct {
	SigningKey             string        `env:"SIGNING_KEY" json:"-"`
	Issuer                 string        `env:"ISSUER" envDefault:"nas-identity" json:"issuer"`
	AccessTokenTTL         time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"5m" json:"access_token_ttl"`
	RefreshTokenTTL        time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h" json:"refresh_token_ttl"`
	ResetTokenTTL          time.Duration `env:"RESET_TOKEN_TTL" envDefault:"72h" json:"reset_token_ttl"`
	LinkBaseURL            string        `env:"LINK_BASE_URL" envDefault:"http://localhost:8000" json:"link_base_url"`
	TrustVerifiedResetByID bool          `env:"TRUST_VERIFIED_RESET_BY_ID" envDefault:"false" json:"trust_verified_reset_by_id"`
}

type SMTP struct {
	Host     string `env:"HOST" json:"host"`
	Port     int    `env:"PORT" envDefault:"587" json:"port"`
	Username string `env:"USERNAME" json:"username"`
	Password string `env:"PASSWORD" json:"-"`
}

type SES struct {
	Region string `env:"REGION" envDefault:"ap-northeast-1" json:"region"`
}

type Mail struct {
	Transport string `env:"TRANSPORT" envDefault:"log" json:"transport"`
	From      string `env:"FROM" envDefault:"no-reply@localhost" json:"from"`
	SMTP      SMTP   `envPrefix:"SMTP_" json:"smtp"`
	SES       SES    `envPrefix:"SES_" json:"ses"`
}

type Server struct {
	Addr string `env:"ADDR" envDefault:":8080" json:"addr"`
}

type Config struct {
	Database Database      `envPrefix:"DB_" json:"database"`
	Auth     Auth          `envPrefix:"AUTH_" json:"auth"`
	Mail     Mail          `envPrefix:"MAIL_" json:"mail"`
	Server   Server        `envPrefix:"HTTP_" json:"server"`
	LogLevel string        `env:"LOG_LEVEL" envDefault:"info" json:"log_level"`
	PurgeAge time.Duration `env:"PURGE_AGE" envDefault:"168h" json:"purge_age"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses environment entries from m instead of the process.
func LoadFrom(m map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: m})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment").
			WithTextCode("INVALID_CONFIG")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field requirements env tags cannot express.
func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return goerrors.New("NAS_AUTH_SIGNING_KEY is required", goerrors.CategoryValidation).
			WithTextCode("INVALID_CONFIG")
	}

	switch c.Mail.Transport {
	case NotifierLog, NotifierSES:
	case NotifierSMTP:
		if c.Mail.SMTP.Host == "" {
			return goerrors.New("NAS_MAIL_SMTP_HOST is required for smtp transport", goerrors.CategoryValidation).
				WithTextCode("INVALID_CONFIG")
		}
	default:
		return goerrors.New("unknown mail transport: "+c.Mail.Transport, goerrors.CategoryValidation).
			WithTextCode("INVALID_CONFIG")
	}

	return nil
}

func (c *Config) GetSigningKey() string             { return c.Auth.SigningKey }
func (c *Config) GetIssuer() string                 { return c.Auth.Issuer }
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.Auth.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.Auth.RefreshTokenTTL }
func (c *Config) GetResetTokenTTL() time.Duration   { return c.Auth.ResetTokenTTL }
func (c *Config) GetLinkBaseURL() string            { return c.Auth.LinkBaseURL }
func (c *Config) GetTrustVerifiedResetByID() bool   { return c.Auth.TrustVerifiedResetByID }
