// Package logger builds *slog.Logger instances with functional options and
// injects request-scoped values from context.Context into every record.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.AppEnv, cfg.AppName),
//		logger.WithContextExtractors(requestIDExtractor),
//	)
//
// Development logs are text at debug level; staging and production are JSON
// at info level. Both carry static "service" and "env" attributes.
//
// The attribute helpers (Reason, SubjectID, NonceKey, ClientIP, ...) keep key
// names consistent across packages. Never log signing secrets or raw tokens;
// nonces are logged only through NonceKey. As a backstop, values under the
// keys in DefaultRedactedKeys ("token", "secret", ...) are masked by the
// handler. WithRedactedKeys changes the set.
package logger
