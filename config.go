package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvProduction is the only environment where the unverified-claims fallback
// can never be enabled.
const EnvProduction = "production"

// DefaultTokenLookup follows the extraction priority: bearer header, raw
// header, cookie, query parameter.
const DefaultTokenLookup = "header:Authorization,rawheader:Authorization,cookie:access_token,query:access_token"

// Settings is the environment backed configuration. It is read once at
// startup.
type Settings struct {
	Environment string `env:"APP_ENV" envDefault:"production"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	SigningMethod   string   `env:"JWT_ALGORITHM" envDefault:"HS256"`
	SigningKey      string   `env:"JWT_SECRET"`
	PublicKey       string   `env:"JWT_PUBLIC_KEY"`
	PrivateKey      string   `env:"JWT_PRIVATE_KEY"`
	JWKSetURL       string   `env:"JWT_JWKS_URL"`
	Issuer          string   `env:"JWT_ISSUER"`
	Audience        []string `env:"JWT_AUDIENCE" envSeparator:","`
	TokenExpiration int      `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`

	TokenLookup             string `env:"AUTH_TOKEN_LOOKUP" envDefault:"header:Authorization,rawheader:Authorization,cookie:access_token,query:access_token"`
	AuthScheme              string `env:"AUTH_SCHEME" envDefault:"Bearer"`
	ContextKey              string `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	AllowUnverifiedFallback bool   `env:"AUTH_ALLOW_UNVERIFIED_FALLBACK" envDefault:"false"`
	RevocationFailOpen      bool   `env:"AUTH_REVOCATION_FAIL_OPEN" envDefault:"true"`

	RedisURL            string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RevocationKeyPrefix string        `env:"REVOCATION_KEY_PREFIX" envDefault:"blacklist:"`
	RevocationTimeout   time.Duration `env:"REVOCATION_TIMEOUT" envDefault:"250ms"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"file:app.db?cache=shared"`

	BcryptCost         int    `env:"BCRYPT_COST" envDefault:"12"`
	DefaultPhoneRegion string `env:"DEFAULT_PHONE_REGION" envDefault:"US"`

	PushProvider    string `env:"PUSH_PROVIDER" envDefault:"log"`
	ExpoHost        string `env:"EXPO_HOST" envDefault:"https://exp.host"`
	ExpoAccessToken string `env:"EXPO_ACCESS_TOKEN"`
}

// LoadSettings parses the environment.
func LoadSettings() (*Settings, error) {
	cfg := &Settings{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the key material matches the algorithm.
func (s *Settings) Validate() error {
	alg := strings.ToUpper(s.SigningMethod)
	switch {
	case strings.HasPrefix(alg, "HS"):
		if s.SigningKey == "" {
			return fmt.Errorf("JWT_SECRET is required for %s", alg)
		}
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "ES"):
		if s.PublicKey == "" && s.JWKSetURL == "" {
			return fmt.Errorf("JWT_PUBLIC_KEY or JWT_JWKS_URL is required for %s", alg)
		}
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", s.SigningMethod)
	}
	if s.TokenExpiration <= 0 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be positive")
	}
	return nil
}

// IsProduction reports whether the environment is production.
func (s *Settings) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(s.Environment), EnvProduction)
}

func (s *Settings) GetEnvironment() string              { return s.Environment }
func (s *Settings) GetSigningKey() string               { return s.SigningKey }
func (s *Settings) GetSigningMethod() string            { return s.SigningMethod }
func (s *Settings) GetPublicKey() string                { return s.PublicKey }
func (s *Settings) GetPrivateKey() string               { return s.PrivateKey }
func (s *Settings) GetJWKSetURL() string                { return s.JWKSetURL }
func (s *Settings) GetContextKey() string               { return s.ContextKey }
func (s *Settings) GetTokenExpiration() int             { return s.TokenExpiration }
func (s *Settings) GetTokenLookup() string              { return s.TokenLookup }
func (s *Settings) GetAuthScheme() string               { return s.AuthScheme }
func (s *Settings) GetIssuer() string                   { return s.Issuer }
func (s *Settings) GetAudience() []string               { return s.Audience }
func (s *Settings) GetAllowUnverifiedFallback() bool    { return s.AllowUnverifiedFallback }
func (s *Settings) GetRevocationFailOpen() bool         { return s.RevocationFailOpen }
func (s *Settings) GetRevocationTimeout() time.Duration { return s.RevocationTimeout }

var _ Config = (*Settings)(nil)

// fallbackPermitted combines the explicit flag with the environment gate.
func fallbackPermitted(cfg Config) bool {
	if cfg == nil || !cfg.GetAllowUnverifiedFallback() {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(cfg.GetEnvironment()), EnvProduction)
}
