package accounts

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig holds the full server configuration, loaded from environment
// variables. It satisfies the Config interface consumed by the token
// service and the auth middleware.
type AppConfig struct {
	AppURL   string `env:"APP_URL" envDefault:"http://localhost:3000"`
	Auth     Auth   `envPrefix:"AUTH_"`
	Server   Server `envPrefix:"SERVER_"`
	Database DB     `envPrefix:"DATABASE_"`
	SMTP     SMTP   `envPrefix:"SMTP_"`
	Storage  Store  `envPrefix:"MINIO_"`
}

// Auth carries token signing and middleware parameters.
type Auth struct {
	SigningKey      string   `env:"SIGNING_KEY" envDefault:"devsecret"`
	SigningMethod   string   `env:"SIGNING_METHOD" envDefault:"HS256"`
	ContextKey      string   `env:"CONTEXT_KEY" envDefault:"accounts"`
	Issuer          string   `env:"ISSUER" envDefault:"accounts"`
	Audience        []string `env:"AUDIENCE" envDefault:"api"`
	AccessTokenTTL  int      `env:"ACCESS_TOKEN_TTL_HOURS" envDefault:"1"`
	RefreshTokenTTL int      `env:"REFRESH_TOKEN_TTL_HOURS" envDefault:"168"`
	TokenLookup     string   `env:"TOKEN_LOOKUP" envDefault:"header:Authorization"`
	AuthScheme      string   `env:"SCHEME" envDefault:"Bearer"`
	// CSRFKey must be at least 32 bytes. When empty a random key is
	// generated at boot, which invalidates outstanding tokens on restart.
	CSRFKey string `env:"CSRF_KEY"`
}

// Server carries the HTTP listener parameters.
type Server struct {
	Address         string `env:"ADDRESS" envDefault:":3000"`
	ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"10"`
}

// DB carries the database connection parameters.
type DB struct {
	Debug                 bool   `env:"DEBUG" envDefault:"false"`
	Driver                string `env:"DRIVER" envDefault:"sqlite"`
	Server                string `env:"SERVER"`
	Database              string `env:"NAME" envDefault:"accounts"`
	DSN                   string `env:"DSN" envDefault:"file:accounts.db?cache=shared&_pragma=foreign_keys(1)"`
	PingTimeoutExpression string `env:"PING_TIMEOUT" envDefault:"5s"`
}

func (d DB) GetDebug() bool      { return d.Debug }
func (d DB) GetDriver() string   { return d.Driver }
func (d DB) GetServer() string   { return d.Server }
func (d DB) GetDatabase() string { return d.Database }
func (d DB) GetDSN() string      { return d.DSN }

func (d DB) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(d.PingTimeoutExpression)
	if err != nil {
		panic(fmt.Sprintf("unable to parse time: expr %s", d.PingTimeoutExpression))
	}
	return dur
}

// SMTP carries the mail relay parameters. An empty host selects the
// log-only mailer.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
}

// Store carries the object storage parameters for profile pictures. An
// empty endpoint disables picture uploads.
type Store struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"account-avatars"`
	PublicURL string `env:"PUBLIC_URL"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// NewAppConfig loads configuration from environment variables.
func NewAppConfig() (*AppConfig, error) {
	cfg := AppConfig{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

var _ Config = (*AppConfig)(nil)

func (c *AppConfig) GetSigningKey() string    { return c.Auth.SigningKey }
func (c *AppConfig) GetSigningMethod() string { return c.Auth.SigningMethod }
func (c *AppConfig) GetContextKey() string    { return c.Auth.ContextKey }
func (c *AppConfig) GetIssuer() string        { return c.Auth.Issuer }
func (c *AppConfig) GetAudience() []string    { return c.Auth.Audience }
func (c *AppConfig) GetAccessTokenTTL() int   { return c.Auth.AccessTokenTTL }
func (c *AppConfig) GetRefreshTokenTTL() int  { return c.Auth.RefreshTokenTTL }
func (c *AppConfig) GetTokenLookup() string   { return c.Auth.TokenLookup }
func (c *AppConfig) GetAuthScheme() string    { return c.Auth.AuthScheme }

// GetPersistence exposes the database section to the persistence client.
func (c *AppConfig) GetPersistence() DB { return c.Database }

// SMTPAddr formats the relay address for net/smtp.
func (c *AppConfig) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTP.Host, c.SMTP.Port)
}
