package logger

import (
	"log/slog"
	"strings"
)

// DefaultRedactedKeys are masked in every record unless WithRedactedKeys
// replaces them. Matching ignores case and the enclosing group.
var DefaultRedactedKeys = []string{"token", "secret", "authorization", "api_key"}

const redactedValue = "[REDACTED]"

// WithRedactedKeys replaces the set of attribute keys whose values are
// masked. Call it with no keys to disable redaction.
func WithRedactedKeys(keys ...string) Option {
	return func(c *config) {
		c.redactKeys = keys
	}
}

func redactor(keys []string) func(groups []string, a slog.Attr) slog.Attr {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := set[strings.ToLower(a.Key)]; ok {
			return slog.String(a.Key, redactedValue)
		}
		return a
	}
}
