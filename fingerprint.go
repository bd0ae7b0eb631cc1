package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/goliatone/hashid/pkg/hashid"
)

const (
	// FingerprintPrefix marks device ids derived from request metadata
	FingerprintPrefix = "guest-"

	unknownAgent = "unknown-agent"
	unknownIP    = "unknown-ip"
)

// Fingerprint derives a stable device id from a user agent and client ip.
// Equal inputs always give the same id. It is a convenience key, not a
// credential.
func Fingerprint(userAgent, ip string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		userAgent = unknownAgent
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = unknownIP
	}

	seed := userAgent + "|" + ip
	if id, err := hashid.NewUUID(seed); err == nil {
		return FingerprintPrefix + id.String()
	}

	sum := sha256.Sum256([]byte(seed))
	return FingerprintPrefix + hex.EncodeToString(sum[:16])
}

// FingerprintFromHeaders reads the user agent and client ip from h.
func FingerprintFromHeaders(h HeaderReader) string {
	if h == nil {
		return Fingerprint("", "")
	}
	return Fingerprint(h.Header("User-Agent"), clientIP(h))
}
