package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

// ============================================================
// Helpers
// ============================================================

func newTestLogger(sanitize bool) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(NewSanitizingHandler(inner, sanitize)), &buf
}

func parseLogOutput(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse log output: %v\nraw: %s", err, buf.String())
	}
	return result
}

// ============================================================
// Handle tests
// ============================================================

func TestHandle_RedactsSensitiveKeys(t *testing.T) {
	keys := []string{"password", "secret", "token", "key_path", "credential", "passphrase", "auth_method", "SSH_PASSWORD"}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			logger, buf := newTestLogger(true)
			logger.Info("test", slog.String(key, "value"))

			result := parseLogOutput(t, buf)
			if result[key] != redacted {
				t.Errorf("%s = %v, want %s", key, result[key], redacted)
			}
		})
	}
}

func TestHandle_NonSensitivePassesThrough(t *testing.T) {
	logger, buf := newTestLogger(true)
	logger.Info("sftp put",
		slog.String("path", "/srv/data/report.csv"),
		slog.String("host", "example.com"),
		slog.Int64("bytes", 42),
	)

	result := parseLogOutput(t, buf)
	if result["path"] != "/srv/data/report.csv" || result["host"] != "example.com" {
		t.Errorf("non-sensitive attributes altered: %v", result)
	}
	if result["bytes"] != float64(42) {
		t.Errorf("bytes = %v, want 42", result["bytes"])
	}
	if result["msg"] != "sftp put" || result["level"] != "INFO" {
		t.Errorf("message or level altered: %v", result)
	}
}

func TestHandle_SanitizeFalse_NothingRedacted(t *testing.T) {
	logger, buf := newTestLogger(false)
	logger.Info("test", slog.String("password", "hunter2"))

	if result := parseLogOutput(t, buf); result["password"] != "hunter2" {
		t.Errorf("password = %v, want pass-through", result["password"])
	}
}

func TestHandle_NestedGroups(t *testing.T) {
	logger, buf := newTestLogger(true)
	logger.Info("test",
		slog.Group("server",
			slog.String("host", "example.com"),
			slog.Group("auth", slog.String("type", "password")),
			slog.Group("creds", slog.String("passphrase", "x"), slog.String("user", "test")),
		),
	)

	result := parseLogOutput(t, buf)
	server, ok := result["server"].(map[string]any)
	if !ok {
		t.Fatalf("expected 'server' group, got %v", result)
	}
	if server["host"] != "example.com" {
		t.Errorf("host = %v", server["host"])
	}
	if server["auth"] != redacted {
		t.Errorf("auth group = %v, want redacted as a whole", server["auth"])
	}
	creds, ok := server["creds"].(map[string]any)
	if !ok {
		t.Fatalf("expected 'creds' group, got %v", server)
	}
	if creds["passphrase"] != redacted || creds["user"] != "test" {
		t.Errorf("creds = %v", creds)
	}
}

// ============================================================
// WithAttrs / WithGroup tests
// ============================================================

func TestWithAttrs_Redacts(t *testing.T) {
	logger, buf := newTestLogger(true)
	logger.With(slog.String("token", "abc"), slog.String("server", "prod")).Info("test")

	result := parseLogOutput(t, buf)
	if result["token"] != redacted || result["server"] != "prod" {
		t.Errorf("result = %v", result)
	}
}

func TestWithGroup_RedactsInsideGroup(t *testing.T) {
	logger, buf := newTestLogger(true)
	logger.WithGroup("sftp").Info("connecting",
		slog.String("host", "prod.example.com"),
		slog.String("password", "s3cr3t"),
	)

	result := parseLogOutput(t, buf)
	group, ok := result["sftp"].(map[string]any)
	if !ok {
		t.Fatalf("expected 'sftp' group, got %v", result)
	}
	if group["host"] != "prod.example.com" || group["password"] != redacted {
		t.Errorf("group = %v", group)
	}
}

func TestEnabled_DelegatesToInner(t *testing.T) {
	inner := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewSanitizingHandler(inner, true)
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

// ============================================================
// Level tests
// ============================================================

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup_AndSetLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup(&buf, "warn", true)

	slog.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}

	SetLevel("debug")
	slog.Debug("visible", slog.String("password", "x"))

	result := parseLogOutput(t, &buf)
	if result["msg"] != "visible" || result["password"] != redacted {
		t.Errorf("result = %v", result)
	}
}
