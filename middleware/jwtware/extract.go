package jwtware

import (
	"strings"

	"github.com/goliatone/go-router"
)

const (
	// HeaderAuthorization is the default credential header
	HeaderAuthorization = router.HeaderAuthorization
	// DefaultTokenLookup is bearer header, raw header, cookie, then query.
	DefaultTokenLookup = "header:" + HeaderAuthorization + ",rawheader:" + HeaderAuthorization + ",cookie:access_token,query:access_token"
	// DefaultAuthScheme is the scheme stripped by header extractors
	DefaultAuthScheme = "Bearer"
)

// Source is the transport neutral view of a request that extractors read.
type Source interface {
	Header(name string) string
	Cookie(name string) string
	// Query returns the parameter only if it was sent exactly once.
	Query(name string) (string, bool)
}

// Extractor returns a credential candidate from src.
type Extractor func(src Source) (string, bool)

// GetExtractors parses a lookup string of the form
// "header:Authorization,rawheader:Authorization,cookie:jwt,query:token".
// Unknown sources are ignored.
func GetExtractors(tokenLookup string, authSchemes ...string) []Extractor {
	extractors := make([]Extractor, 0)

	authScheme := DefaultAuthScheme
	if len(authSchemes) > 0 && strings.TrimSpace(authSchemes[0]) != "" {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	if strings.TrimSpace(tokenLookup) == "" {
		tokenLookup = DefaultTokenLookup
	}

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, FromHeader(parts[1], authScheme))
		case "rawheader":
			extractors = append(extractors, FromRawHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, FromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, FromCookie(parts[1]))
		}
	}

	return extractors
}

// Extract runs extractors in order and returns the first candidate.
func Extract(src Source, extractors []Extractor) (string, bool) {
	if src == nil {
		return "", false
	}
	for _, extractor := range extractors {
		if token, ok := extractor(src); ok {
			return token, true
		}
	}
	return "", false
}

// FromHeader extracts the value following authScheme, compared
// case-insensitively.
func FromHeader(header, authScheme string) Extractor {
	return func(src Source) (string, bool) {
		a := src.Header(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l+1:]); token != "" {
				return token, true
			}
		}
		return "", false
	}
}

// FromRawHeader returns the header value verbatim. Values that carry
// authScheme belong to FromHeader and are skipped.
func FromRawHeader(header, authScheme string) Extractor {
	return func(src Source) (string, bool) {
		a := src.Header(header)
		if strings.TrimSpace(a) == "" || hasScheme(a, authScheme) {
			return "", false
		}
		return a, true
	}
}

// FromQuery extracts a single-valued query parameter.
func FromQuery(param string) Extractor {
	return func(src Source) (string, bool) {
		token, ok := src.Query(param)
		if !ok || token == "" {
			return "", false
		}
		return token, true
	}
}

// FromCookie extracts the named cookie.
func FromCookie(name string) Extractor {
	return func(src Source) (string, bool) {
		token := src.Cookie(name)
		if token == "" {
			return "", false
		}
		return token, true
	}
}

func hasScheme(value, authScheme string) bool {
	l := len(authScheme)
	if len(value) < l || !strings.EqualFold(value[:l], authScheme) {
		return false
	}
	return len(value) == l || value[l] == ' '
}
