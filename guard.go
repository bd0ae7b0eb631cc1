package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-app-auth/middleware/jwtware"
)

// GuardState is a step of the per-call authentication machine
type GuardState string

const (
	StateNoToken           GuardState = "no_token"
	StateTokenFound        GuardState = "token_found"
	StateInspected         GuardState = "inspected"
	StateVerified          GuardState = "verified"
	StateFallback          GuardState = "fallback"
	StateRevocationChecked GuardState = "revocation_checked"
	StateIdentityResolved  GuardState = "identity_resolved"
	StateAuthenticated     GuardState = "authenticated"
	StateRejected          GuardState = "rejected"
)

// RejectReason explains a rejected call
type RejectReason string

const (
	ReasonMissingToken          RejectReason = "missing_token"
	ReasonMalformedToken        RejectReason = "malformed_token"
	ReasonSignatureInvalid      RejectReason = "signature_invalid"
	ReasonTokenExpired          RejectReason = "token_expired"
	ReasonInvalidToken          RejectReason = "invalid_token"
	ReasonRevoked               RejectReason = "revoked"
	ReasonRevocationUnavailable RejectReason = "revocation_unavailable"
	ReasonUserNotFound          RejectReason = "user_not_found"
	ReasonAccountInactive       RejectReason = "account_inactive"
	ReasonUnsupportedContext    RejectReason = "unsupported_context"
	ReasonAuthenticationFailed  RejectReason = "authentication_failed"
)

var reasonErrors = map[RejectReason]*goerrors.Error{
	ReasonMissingToken:          ErrMissingToken,
	ReasonMalformedToken:        ErrTokenMalformed,
	ReasonSignatureInvalid:      ErrSignatureInvalid,
	ReasonTokenExpired:          ErrTokenExpired,
	ReasonInvalidToken:          ErrTokenInvalid,
	ReasonRevoked:               ErrTokenRevoked,
	ReasonRevocationUnavailable: ErrRevocationUnavailable,
	ReasonUserNotFound:          ErrUserNotFound,
	ReasonAccountInactive:       ErrAccountInactive,
	ReasonUnsupportedContext:    ErrUnsupportedContext,
	ReasonAuthenticationFailed:  ErrAuthenticationFailed,
}

// Error returns the rich error for the reason
func (r RejectReason) Error() *goerrors.Error {
	if err, ok := reasonErrors[r]; ok {
		return err
	}
	return ErrAuthenticationFailed
}

// Decision is the outcome of running the guard over one call.
type Decision struct {
	State    GuardState
	Trail    []GuardState
	Reason   RejectReason
	Identity *AuthIdentity
	Err      error
}

// Authenticated reports whether the call may proceed
func (d Decision) Authenticated() bool {
	return d.State == StateAuthenticated
}

func (d *Decision) step(s GuardState) {
	d.State = s
	d.Trail = append(d.Trail, s)
}

func (d *Decision) reject(reason RejectReason, cause error) Decision {
	d.step(StateRejected)
	d.Reason = reason
	d.Err = failWith(reason.Error(), cause)
	return *d
}

// IdentityProvider resolves verified claims to an identity
type IdentityProvider interface {
	Resolve(ctx context.Context, claims *JWTClaims) (*AuthIdentity, error)
}

// Guard authenticates calls from any supported transport.
type Guard struct {
	cfg         Config
	verifier    TokenVerifier
	revocations RevocationChecker
	identities  IdentityProvider
	extractors  []jwtware.Extractor
	logger      Logger
	metrics     MetricsRecorder
	now         func() time.Time
}

// GuardOption customizes a Guard
type GuardOption func(*Guard)

// WithGuardLogger sets the logger
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardMetrics sets the metrics recorder
func WithGuardMetrics(m MetricsRecorder) GuardOption {
	return func(g *Guard) {
		g.metrics = resolveMetrics(m)
	}
}

// WithGuardExtractors overrides the extraction chain built from the config.
func WithGuardExtractors(extractors ...jwtware.Extractor) GuardOption {
	return func(g *Guard) {
		if len(extractors) > 0 {
			g.extractors = extractors
		}
	}
}

// NewGuard creates a guard. revocations may be nil, in which case tokens are
// never considered revoked.
func NewGuard(cfg Config, verifier TokenVerifier, revocations RevocationChecker, identities IdentityProvider, opts ...GuardOption) *Guard {
	g := &Guard{
		cfg:         cfg,
		verifier:    verifier,
		revocations: revocations,
		identities:  identities,
		extractors:  jwtware.GetExtractors(cfg.GetTokenLookup(), cfg.GetAuthScheme()),
		logger:      defLogger{},
		metrics:     noopMetrics{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	if fallbackPermitted(cfg) {
		g.logger.Warn("auth guard accepts unverified tokens, never enable this in production",
			"environment", cfg.GetEnvironment())
	} else if cfg.GetAllowUnverifiedFallback() {
		g.logger.Warn("unverified token fallback requested in production, ignoring")
	}

	return g
}

// CanActivate authenticates call and attaches the identity to it. It never
// panics; every failure is a *goerrors.Error in CategoryAuth.
func (g *Guard) CanActivate(ctx context.Context, call any) (err error) {
	start := g.now()
	var transport Transport

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("auth guard panic", "panic", fmt.Sprint(r))
			g.metrics.RecordGuardDecision(transport, string(ReasonAuthenticationFailed), g.now().Sub(start))
			err = failWith(ErrAuthenticationFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	accessor, err := ResolveAccessor(call, g.cfg.GetContextKey())
	if err != nil {
		g.logger.Warn("auth guard rejected unsupported call context", "type", fmt.Sprintf("%T", call))
		g.metrics.RecordGuardDecision(transport, string(ReasonUnsupportedContext), g.now().Sub(start))
		return ErrUnsupportedContext
	}
	transport = accessor.Transport()

	decision := g.Evaluate(ctx, accessor)
	if !decision.Authenticated() {
		g.metrics.RecordGuardDecision(transport, string(decision.Reason), g.now().Sub(start))
		g.logger.Debug("auth guard rejected call",
			"transport", transport,
			"reason", decision.Reason,
			"trail", decision.Trail,
		)
		return decision.Err
	}

	accessor.SetIdentity(decision.Identity)
	g.metrics.RecordGuardDecision(transport, string(StateAuthenticated), g.now().Sub(start))
	return nil
}

// Evaluate runs the state machine over accessor without side effects on the
// call.
func (g *Guard) Evaluate(ctx context.Context, accessor RequestAccessor) Decision {
	d := &Decision{}
	d.step(StateNoToken)

	raw, ok := jwtware.Extract(accessor, g.extractors)
	if !ok {
		return d.reject(ReasonMissingToken, nil)
	}
	d.step(StateTokenFound)

	inspected := g.verifier.Inspect(raw)
	if !inspected.Parsed {
		return d.reject(ReasonMalformedToken, inspected.Err)
	}
	d.step(StateInspected)

	claims, unverified, reason, err := g.verify(raw, inspected)
	if err != nil {
		return d.reject(reason, err)
	}
	if unverified {
		d.step(StateFallback)
	} else {
		d.step(StateVerified)
	}

	if claims.Subject() == "" {
		return d.reject(ReasonInvalidToken, nil)
	}

	if reason, err := g.checkRevocation(ctx, claims); err != nil {
		return d.reject(reason, err)
	}
	d.step(StateRevocationChecked)

	identity, err := g.identities.Resolve(ctx, claims)
	if err != nil {
		return d.reject(identityReason(err), err)
	}
	identity.Unverified = unverified
	d.Identity = identity
	d.step(StateIdentityResolved)

	d.step(StateAuthenticated)
	return *d
}

func (g *Guard) verify(raw string, inspected InspectResult) (*JWTClaims, bool, RejectReason, error) {
	claims, err := g.verifier.Verify(raw)
	if err == nil {
		return claims, false, "", nil
	}

	if fallbackPermitted(g.cfg) && inspected.Parsed && inspected.Claims != nil {
		g.logger.Warn("token verification failed, using unverified claims",
			"error", err,
			"sub", inspected.Claims.Subject(),
			"environment", g.cfg.GetEnvironment(),
		)
		return inspected.Claims, true, "", nil
	}

	return nil, false, verifyReason(err), err
}

func (g *Guard) checkRevocation(ctx context.Context, claims *JWTClaims) (RejectReason, error) {
	if g.revocations == nil || claims.TokenID() == "" {
		return "", nil
	}

	revoked, err := g.revocations.IsRevoked(ctx, claims.Subject(), claims.TokenID())
	if err != nil {
		g.metrics.RecordRevocationError()
		if g.cfg.GetRevocationFailOpen() {
			g.logger.Warn("revocation check failed, treating token as not revoked",
				"error", err,
				"sub", claims.Subject(),
				"jti", claims.TokenID(),
			)
			return "", nil
		}
		g.logger.Error("revocation check failed", "error", err, "sub", claims.Subject())
		return ReasonRevocationUnavailable, err
	}
	if revoked {
		return ReasonRevoked, nil
	}
	return "", nil
}

func verifyReason(err error) RejectReason {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return ReasonTokenExpired
	case errors.Is(err, ErrSignatureInvalid):
		return ReasonSignatureInvalid
	case errors.Is(err, ErrTokenMalformed):
		return ReasonMalformedToken
	default:
		return ReasonInvalidToken
	}
}

func identityReason(err error) RejectReason {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return ReasonUserNotFound
	case errors.Is(err, ErrAccountInactive):
		return ReasonAccountInactive
	case errors.Is(err, ErrTokenInvalid):
		return ReasonInvalidToken
	default:
		return ReasonAuthenticationFailed
	}
}
