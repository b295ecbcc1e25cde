package utils

import (
	"net/url"
	"strings"
)

// -----------------------------------------------------------------------------

// MaskSecret keeps the first two characters of a secret, enough to tell two
// credentials apart in a log line
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-2)
}

// -----------------------------------------------------------------------------

// MaskEndpoint removes user info and masks token-like query values of an endpoint URL
func MaskEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}

	if u.User != nil {
		u.User = url.User(u.User.Username())
	}

	q := u.Query()
	changed := false
	for key := range q {
		switch strings.ToLower(key) {
		case "token", "password", "apikey", "api_key", "key":
			q.Set(key, "****")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
