package auth

// UserIdentity adapts a User into the Identity interface for token generation.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

func (u UserIdentity) Username() string {
	return u.user.Username()
}

func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

func (u UserIdentity) Role() string {
	if u.user == nil {
		return ""
	}
	return string(u.user.Role)
}

// AuthIdentity is the identity the auth guard attaches to a call: the stored
// user merged with the credential it presented.
type AuthIdentity struct {
	User    *User
	Claims  *JWTClaims
	TokenID string
	CSRF    string
	// Unverified is set when the claims were accepted without a valid
	// signature through the non-production fallback.
	Unverified bool
}

func (a *AuthIdentity) ID() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.ID.String()
}

func (a *AuthIdentity) Username() string {
	if a == nil {
		return ""
	}
	return a.User.Username()
}

func (a *AuthIdentity) Email() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.Email
}

// Role is the stored role, not the one carried by the token.
func (a *AuthIdentity) Role() string {
	if a == nil || a.User == nil {
		return ""
	}
	return string(a.User.Role)
}

var (
	_ Identity = UserIdentity{}
	_ Identity = (*AuthIdentity)(nil)
)
