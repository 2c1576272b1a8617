package infra

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerTestLevelSuppressesInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	logger := newLogger("test", &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message logged at test level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, `"service":"bluecut"`) {
		t.Fatalf("warn message missing or untagged: %s", out)
	}
}

func TestNewLoggerHonorsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Warn().Msg("quiet")
	if buf.Len() != 0 {
		t.Fatalf("warn logged despite LOG_LEVEL=error: %s", buf.String())
	}
}
