package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// InspectResult is the outcome of parsing a token without verifying it.
type InspectResult struct {
	Parsed bool
	Header map[string]any
	Claims *JWTClaims
	Err    error
}

// TokenService signs, verifies and inspects JWTs
type TokenService struct {
	method     jwt.SigningMethod
	signKey    any
	keyFunc    jwt.Keyfunc
	jwks       *keyfunc.JWKS
	expiration int
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption customizes a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenKeyfunc overrides how verification keys are resolved.
func WithTokenKeyfunc(fn jwt.Keyfunc) TokenServiceOption {
	return func(ts *TokenService) {
		ts.keyFunc = fn
	}
}

// WithTokenClock replaces the clock used when issuing tokens.
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		ts.now = now
	}
}

// NewTokenService creates a new TokenService from cfg. Key material is parsed
// once here.
func NewTokenService(cfg Config, logger Logger, opts ...TokenServiceOption) (*TokenService, error) {
	logger = resolveLogger(logger)

	alg := strings.ToUpper(strings.TrimSpace(cfg.GetSigningMethod()))
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("unsupported signing method %q", alg)
	}

	ts := &TokenService{
		method:     method,
		expiration: cfg.GetTokenExpiration(),
		issuer:     cfg.GetIssuer(),
		audience:   jwt.ClaimStrings(cfg.GetAudience()),
		logger:     logger,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(ts)
	}

	if err := ts.loadKeys(cfg); err != nil {
		return nil, err
	}

	return ts, nil
}

func (ts *TokenService) loadKeys(cfg Config) error {
	switch ts.method.(type) {
	case *jwt.SigningMethodHMAC:
		secret := []byte(cfg.GetSigningKey())
		if len(secret) > 0 {
			ts.signKey = secret
			if ts.keyFunc == nil {
				ts.keyFunc = func(*jwt.Token) (any, error) { return secret, nil }
			}
		}
	case *jwt.SigningMethodRSA:
		if pem := cfg.GetPrivateKey(); pem != "" {
			key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
			if err != nil {
				return fmt.Errorf("parse RSA private key: %w", err)
			}
			ts.signKey = key
		}
		if pem := cfg.GetPublicKey(); pem != "" && ts.keyFunc == nil {
			key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
			if err != nil {
				return fmt.Errorf("parse RSA public key: %w", err)
			}
			ts.keyFunc = func(*jwt.Token) (any, error) { return key, nil }
		}
	case *jwt.SigningMethodECDSA:
		if pem := cfg.GetPrivateKey(); pem != "" {
			key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pem))
			if err != nil {
				return fmt.Errorf("parse EC private key: %w", err)
			}
			ts.signKey = key
		}
		if pem := cfg.GetPublicKey(); pem != "" && ts.keyFunc == nil {
			key, err := jwt.ParseECPublicKeyFromPEM([]byte(pem))
			if err != nil {
				return fmt.Errorf("parse EC public key: %w", err)
			}
			ts.keyFunc = func(*jwt.Token) (any, error) { return key, nil }
		}
	default:
		return fmt.Errorf("unsupported signing method %q", ts.method.Alg())
	}

	if ts.keyFunc == nil && cfg.GetJWKSetURL() != "" {
		jwks, err := keyfunc.Get(cfg.GetJWKSetURL(), ts.keyfuncOptions())
		if err != nil {
			return fmt.Errorf("load JWK set: %w", err)
		}
		ts.jwks = jwks
		ts.keyFunc = jwks.Keyfunc
	}

	if ts.keyFunc == nil {
		return fmt.Errorf("no verification key configured for %s", ts.method.Alg())
	}
	return nil
}

func (ts *TokenService) keyfuncOptions() keyfunc.Options {
	return keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			ts.logger.Warn("failed to do a background refresh of JWT set", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}

// Close stops the JWKS background refresh, if any.
func (ts *TokenService) Close() {
	if ts.jwks != nil {
		ts.jwks.EndBackground()
	}
}

// Generate issues a token for identity with a fresh token id and csrf marker.
func (ts *TokenService) Generate(identity Identity) (string, *JWTClaims, error) {
	if identity == nil {
		return "", nil, goerrors.New("identity is required", goerrors.CategoryBadInput).
			WithTextCode("IDENTITY_REQUIRED").
			WithCode(goerrors.CodeBadRequest)
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.expiration) * time.Hour)),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
		CSRF:     uuid.NewString(),
	}

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// SignClaims signs arbitrary claims with the configured method.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}
	if ts.signKey == nil {
		return "", ErrNoSigningMaterial
	}

	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(ts.method, claims)
	signed, err := token.SignedString(ts.signKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and audience and returns the claims.
func (ts *TokenService) Verify(raw string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience...))
	}

	claims := &JWTClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, ts.keyFunc)
	if err != nil {
		return nil, ts.mapParseError(err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (ts *TokenService) mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return failWith(ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return failWith(ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return failWith(ErrSignatureInvalid, err)
	default:
		ts.logger.Debug("token verification failed", "error", err)
		return failWith(ErrTokenInvalid, err)
	}
}

// Inspect parses raw without checking its signature. It never trusts the
// result; callers decide whether the claims may be used.
func (ts *TokenService) Inspect(raw string) InspectResult {
	claims := &JWTClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return InspectResult{Err: failWith(ErrTokenMalformed, err)}
	}
	return InspectResult{
		Parsed: true,
		Header: token.Header,
		Claims: claims,
	}
}

var _ TokenVerifier = (*TokenService)(nil)
