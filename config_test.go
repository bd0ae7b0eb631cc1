package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-app-auth"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := auth.LoadSettings()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "HS256", cfg.GetSigningMethod())
	assert.Equal(t, 24, cfg.GetTokenExpiration())
	assert.Equal(t, auth.DefaultTokenLookup, cfg.GetTokenLookup())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
	assert.Equal(t, "user", cfg.GetContextKey())
	assert.False(t, cfg.GetAllowUnverifiedFallback())
	assert.True(t, cfg.GetRevocationFailOpen())
	assert.Equal(t, 250*time.Millisecond, cfg.GetRevocationTimeout())
	assert.Equal(t, "blacklist:", cfg.RevocationKeyPrefix)
	assert.Equal(t, "log", cfg.PushProvider)
}

func TestLoadSettings_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_AUDIENCE", "mobile,web")
	t.Setenv("AUTH_ALLOW_UNVERIFIED_FALLBACK", "true")
	t.Setenv("AUTH_REVOCATION_FAIL_OPEN", "false")
	t.Setenv("REVOCATION_TIMEOUT", "1s")

	cfg, err := auth.LoadSettings()
	require.NoError(t, err)

	assert.False(t, cfg.IsProduction())
	assert.Equal(t, []string{"mobile", "web"}, cfg.GetAudience())
	assert.True(t, cfg.GetAllowUnverifiedFallback())
	assert.False(t, cfg.GetRevocationFailOpen())
	assert.Equal(t, time.Second, cfg.GetRevocationTimeout())
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     auth.Settings
		wantErr string
	}{
		{name: "hmac with secret", cfg: auth.Settings{SigningMethod: "HS256", SigningKey: "k", TokenExpiration: 1}},
		{name: "hmac without secret", cfg: auth.Settings{SigningMethod: "HS256", TokenExpiration: 1}, wantErr: "JWT_SECRET"},
		{name: "rsa with jwks", cfg: auth.Settings{SigningMethod: "RS256", JWKSetURL: "https://keys", TokenExpiration: 1}},
		{name: "rsa without keys", cfg: auth.Settings{SigningMethod: "RS256", TokenExpiration: 1}, wantErr: "JWT_PUBLIC_KEY"},
		{name: "unknown algorithm", cfg: auth.Settings{SigningMethod: "none", TokenExpiration: 1}, wantErr: "unsupported"},
		{name: "zero expiration", cfg: auth.Settings{SigningMethod: "HS256", SigningKey: "k"}, wantErr: "JWT_EXPIRATION_HOURS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSettings_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := auth.LoadSettings()
	assert.Error(t, err)
}
