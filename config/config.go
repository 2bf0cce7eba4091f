package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-accounts"
)

// Prefix is prepended to every environment variable name.
const Prefix = "ACCOUNTS_"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DirectoryRemote = "remote"
	DirectoryLocal  = "local"

	devAccessSecret  = "development-access-secret-change-me"
	devRefreshSecret = "development-refresh-secret-change-me"
)

// Config is the service configuration. It implements accounts.Config.
type Config struct {
	Env         string `env:"ENV" envDefault:"development" json:"env"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080" json:"http_addr"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000" json:"frontend_url"`

	JWTSecret           string        `env:"JWT_SECRET" json:"jwt_secret"`
	JWTExpiresIn        time.Duration `env:"JWT_EXPIRES_IN" envDefault:"15m" json:"jwt_expires_in"`
	JWTRefreshSecret    string        `env:"JWT_REFRESH_SECRET" json:"jwt_refresh_secret"`
	JWTRefreshExpiresIn time.Duration `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"720h" json:"jwt_refresh_expires_in"`
	JWTIssuer           string        `env:"JWT_ISSUER" envDefault:"accounts" json:"jwt_issuer"`

	CompensationTimeout time.Duration `env:"COMPENSATION_TIMEOUT" envDefault:"10s" json:"compensation_timeout"`

	MetricsAddr string `env:"METRICS_ADDR" json:"metrics_addr"`

	DatabaseDriver      string        `env:"DATABASE_DRIVER" envDefault:"sqlite" json:"database_driver"`
	DatabaseDSN         string        `env:"DATABASE_DSN" envDefault:"file:accounts.db?cache=shared" json:"database_dsn"`
	DatabaseDebug       bool          `env:"DATABASE_DEBUG" json:"database_debug"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT" envDefault:"5s" json:"database_ping_timeout"`
	AutoMigrate         bool          `env:"AUTO_MIGRATE" envDefault:"true" json:"auto_migrate"`

	DirectoryDriver     string        `env:"DIRECTORY_DRIVER" envDefault:"local" json:"directory_driver"`
	DirectoryURL        string        `env:"DIRECTORY_URL" json:"directory_url"`
	DirectoryServiceKey string        `env:"DIRECTORY_SERVICE_KEY" json:"directory_service_key"`
	DirectoryTimeout    time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"10s" json:"directory_timeout"`

	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"12" json:"bcrypt_cost"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h" json:"reset_token_ttl"`
}

var _ accounts.Config = (*Config)(nil)

// Load parses the process environment and validates the result.
func Load() (*Config, error) {
	return load(env.Options{Prefix: Prefix})
}

// LoadFrom parses values from environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Prefix: Prefix, Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills development secrets so a local run needs no setup.
func (c *Config) applyDefaults() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if !c.IsDevelopment() {
		return
	}
	if c.JWTSecret == "" {
		c.JWTSecret = devAccessSecret
	}
	if c.JWTRefreshSecret == "" {
		c.JWTRefreshSecret = devRefreshSecret
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var directoryURLRules, serviceKeyRules []validation.Rule
	if c.DirectoryDriver == DirectoryRemote {
		directoryURLRules = []validation.Rule{validation.Required, is.URL}
		serviceKeyRules = []validation.Rule{validation.Required}
	}

	err := validation.ValidateStruct(c,
		validation.Field(&c.Env, validation.Required, validation.In(EnvDevelopment, EnvProduction, EnvTest)),
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.FrontendURL, validation.Required, is.URL),
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.JWTRefreshSecret,
			validation.Required,
			validation.Length(16, 0),
			validation.By(notEqual(c.JWTSecret, "must differ from the access token secret")),
		),
		validation.Field(&c.JWTExpiresIn, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.JWTRefreshExpiresIn, validation.Required, validation.Min(c.JWTExpiresIn)),
		validation.Field(&c.CompensationTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.DatabaseDriver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		validation.Field(&c.DatabaseDSN, validation.Required),
		validation.Field(&c.DatabasePingTimeout, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.DirectoryDriver, validation.Required, validation.In(DirectoryRemote, DirectoryLocal)),
		validation.Field(&c.DirectoryURL, directoryURLRules...),
		validation.Field(&c.DirectoryServiceKey, serviceKeyRules...),
		validation.Field(&c.BcryptCost, validation.Min(4), validation.Max(31)),
		validation.Field(&c.ResetTokenTTL, validation.Min(time.Minute)),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func notEqual(other, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != "" && s == other {
			return fmt.Errorf("%s", message)
		}
		return nil
	}
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// GetAccessTokenSecret implements accounts.Config.
func (c *Config) GetAccessTokenSecret() string {
	return c.JWTSecret
}

// GetRefreshTokenSecret implements accounts.Config.
func (c *Config) GetRefreshTokenSecret() string {
	return c.JWTRefreshSecret
}

// GetAccessTokenTTL implements accounts.Config.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return c.JWTExpiresIn
}

// GetRefreshTokenTTL implements accounts.Config.
func (c *Config) GetRefreshTokenTTL() time.Duration {
	return c.JWTRefreshExpiresIn
}

// GetIssuer implements accounts.Config.
func (c *Config) GetIssuer() string {
	return c.JWTIssuer
}

// GetPasswordResetRedirectURL implements accounts.Config.
func (c *Config) GetPasswordResetRedirectURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/reset-password"
}

// GetCompensationTimeout implements accounts.Config.
func (c *Config) GetCompensationTimeout() time.Duration {
	return c.CompensationTimeout
}

// GetPersistence returns the database settings used by the migration runner.
func (c *Config) GetPersistence() Persistence {
	return Persistence{
		Driver:      c.DatabaseDriver,
		DSN:         c.DatabaseDSN,
		Debug:       c.DatabaseDebug,
		PingTimeout: c.DatabasePingTimeout,
	}
}

// Masked returns a copy safe to print.
func (c Config) Masked() Config {
	c.JWTSecret = mask(c.JWTSecret)
	c.JWTRefreshSecret = mask(c.JWTRefreshSecret)
	c.DirectoryServiceKey = mask(c.DirectoryServiceKey)
	c.DatabaseDSN = mask(c.DatabaseDSN)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
