package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/linkguard/pkg/logger"
)

type ctxKey struct{}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))

	log.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is below the default level")

	log.Info("hello", slog.Int("n", 1))
	m := decodeLine(t, &buf)
	assert.Equal(t, "hello", m["msg"])
	assert.Equal(t, float64(1), m["n"])
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env       string
		wantEnv   string
		wantJSON  bool
		wantDebug bool
	}{
		{env: "production", wantEnv: logger.EnvProduction, wantJSON: true},
		{env: "prod", wantEnv: logger.EnvProduction, wantJSON: true},
		{env: "staging", wantEnv: logger.EnvStaging, wantJSON: true},
		{env: "development", wantEnv: logger.EnvDevelopment, wantDebug: true},
		{env: "", wantEnv: logger.EnvDevelopment, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.New(logger.WithOutput(&buf), logger.WithEnvironment(tt.env, "linkguard"))

			assert.Equal(t, tt.wantDebug, log.Enabled(context.Background(), slog.LevelDebug))

			log.Info("started")
			if tt.wantJSON {
				m := decodeLine(t, &buf)
				assert.Equal(t, "linkguard", m["service"])
				assert.Equal(t, tt.wantEnv, m["env"])
			} else {
				assert.Contains(t, buf.String(), "service=linkguard")
				assert.Contains(t, buf.String(), "env="+tt.wantEnv)
			}
		})
	}
}

func TestWithFormat_PanicsOnUnknown(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
}

func TestContextExtraction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextValue("request_id", ctxKey{}),
		logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
			return slog.String("component", "api"), true
		}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	log.With(slog.String("k", "v")).InfoContext(ctx, "validated")

	m := decodeLine(t, &buf)
	assert.Equal(t, "req-1", m["request_id"])
	assert.Equal(t, "api", m["component"])
	assert.Equal(t, "v", m["k"])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	l, err := logger.ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = logger.ParseLevel("loud")
	assert.Error(t, err)
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, "boom", logger.Error(errors.New("boom")).Value.String())
	assert.Equal(t, slog.Attr{}, logger.SubjectID(""))
	assert.Equal(t, "subject_id", logger.SubjectID("biz_1").Key)
	assert.Equal(t, slog.Attr{}, logger.RequestID(""))
	assert.Equal(t, "reason", logger.Reason("expired").Key)
	assert.Equal(t, "nonce_key", logger.NonceKey("ab12").Key)
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())

	g := logger.Group("store", logger.Backend("redis"))
	assert.Equal(t, slog.KindGroup, g.Value.Kind())
}

func TestNew_RedactsSensitiveKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))

	log.Info("request",
		slog.String("token", "eyJzaWQiOiJ4In0.c2ln"),
		slog.Group("headers", slog.String("Authorization", "Bearer k")),
		slog.String("path", "/validate"),
	)
	m := decodeLine(t, &buf)
	assert.Equal(t, "[REDACTED]", m["token"])
	assert.Equal(t, map[string]any{"Authorization": "[REDACTED]"}, m["headers"])
	assert.Equal(t, "/validate", m["path"])
}

func TestNew_RedactionCanBeDisabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithRedactedKeys())

	log.Info("request", slog.String("token", "visible"))
	assert.Equal(t, "visible", decodeLine(t, &buf)["token"])
}
