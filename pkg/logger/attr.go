package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Reason records a validation failure reason.
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// SubjectID records the business identifier a link was issued for.
func SubjectID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("subject_id", id)
}

// NonceKey records the hashed storage key of a nonce. Raw nonces are never logged.
func NonceKey(key string) slog.Attr {
	return slog.String("nonce_key", key)
}

func ClientIP(ip string) slog.Attr {
	return slog.String("client_ip", ip)
}

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Mode records the validation mode, inspect or consume.
func Mode(mode string) slog.Attr {
	return slog.String("mode", mode)
}

// Backend records which store implementation is in use.
func Backend(name string) slog.Attr {
	return slog.String("backend", name)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}
