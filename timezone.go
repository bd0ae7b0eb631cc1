package auth

import (
	"strings"
	"time"
	_ "time/tzdata"
)

var timezoneHeaders = []string{"X-Timezone", "X-Time-Zone", "Time-Zone", "Timezone"}

var countryHeaders = []string{"CF-IPCountry", "X-Country-Code", "CloudFront-Viewer-Country"}

// countryTimezones maps ISO country codes to a representative zone.
var countryTimezones = map[string]string{
	"AR": "America/Argentina/Buenos_Aires",
	"AU": "Australia/Sydney",
	"BR": "America/Sao_Paulo",
	"CA": "America/Toronto",
	"CL": "America/Santiago",
	"CN": "Asia/Shanghai",
	"CO": "America/Bogota",
	"DE": "Europe/Berlin",
	"ES": "Europe/Madrid",
	"FR": "Europe/Paris",
	"GB": "Europe/London",
	"IN": "Asia/Kolkata",
	"IT": "Europe/Rome",
	"JP": "Asia/Tokyo",
	"KR": "Asia/Seoul",
	"MX": "America/Mexico_City",
	"NL": "Europe/Amsterdam",
	"PE": "America/Lima",
	"PT": "Europe/Lisbon",
	"US": "America/New_York",
}

// DetectTimezone returns an IANA zone from explicit timezone headers, or
// from a country header when none is sent.
func DetectTimezone(h HeaderReader) (string, bool) {
	if h == nil {
		return "", false
	}

	for _, name := range timezoneHeaders {
		if tz, ok := validTimezone(h.Header(name)); ok {
			return tz, true
		}
	}

	for _, name := range countryHeaders {
		code := strings.ToUpper(strings.TrimSpace(h.Header(name)))
		if tz, ok := countryTimezones[code]; ok {
			return tz, true
		}
	}

	return "", false
}

func validTimezone(tz string) (string, bool) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "", false
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", false
	}
	return tz, true
}
