package logger

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestConfigureFileOutputWithRotation(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "trustclaw.log")

	log := Logger()
	if err := log.Configure("debug", "json", path, 7); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("unexpected level %s", log.GetLevel())
	}
	if _, ok := log.Out.(*lumberjack.Logger); !ok {
		t.Fatalf("expected lumberjack writer, got %T", log.Out)
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	if err := Logger().Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestWarnCountsPerComponent(t *testing.T) {
	log := Logger()
	log.SetOutput(io.Discard)

	log.WithComponent("scanner.whale").Warn("wallet fetch failed")
	log.WithComponent("scanner.whale").Error("boom")

	if got := snapshotCounts(&warnCounts)["scanner.whale"]; got < 1 {
		t.Fatalf("warn not counted: %d", got)
	}
	if got := snapshotCounts(&errorCounts)["scanner.whale"]; got < 1 {
		t.Fatalf("error not counted: %d", got)
	}

	RecordAlert("WHALE")
	if snapshotCounts(&alertCounts)["WHALE"] < 1 {
		t.Fatalf("alert not counted")
	}
}

func TestIsWrapperFrame(t *testing.T) {
	cases := map[string]bool{
		"github.com/sirupsen/logrus.(*Entry).Log":        true,
		"trustclaw/logger.(*Entry).Warn":                 true,
		"trustclaw/internal/metrics.EmitMetric":          true,
		"trustclaw/scanner.(*Whale).Run":                 false,
		"trustclaw/logger_test.TestSomething":            false,
		"trustclaw/internal/scheduler.(*Scheduler).fire": false,
	}
	for fn, want := range cases {
		if got := isWrapperFrame(fn); got != want {
			t.Errorf("isWrapperFrame(%q) = %v, want %v", fn, got, want)
		}
	}
}
