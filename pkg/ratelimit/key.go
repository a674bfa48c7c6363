package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/dmitrymomot/linkguard/pkg/clientip"
)

// maxKeyLength bounds storage key size in backends like Redis.
const maxKeyLength = 64

// KeyFunc extracts the rate limit identity from a request. An empty key
// makes Middleware fall back to the raw RemoteAddr.
type KeyFunc func(*http.Request) string

// ClientIP keys requests by client address. It prefers the address resolved
// by clientip.Middleware and falls back to resolving it from r.
func ClientIP(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if ip := clientip.FromContext(r.Context()); ip != "" {
			return ip
		}
		return clientip.FromRequest(r, trustProxy)
	}
}

// Composite joins the non-empty keys of several KeyFuncs. Results longer
// than 64 characters are hashed to 32 hex characters.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}

		if len(parts) == 0 {
			return ""
		}

		return boundKey(strings.Join(parts, ":"))
	}
}

func boundKey(key string) string {
	if len(key) > maxKeyLength {
		hash := sha256.Sum256([]byte(key))
		return hex.EncodeToString(hash[:16])
	}
	return key
}
