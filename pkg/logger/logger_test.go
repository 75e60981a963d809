package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "adapter.log")
	if err := Init(Config{Level: "debug", OutputFile: path, MaxSize: 1, JSON: true}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
		Logger = nil
	})

	Debugf("hello %s", "debug")
	logrus.WithField("component", "bybit").Info("from component")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "hello debug") {
		t.Fatalf("log file missing package logger output: %s", out)
	}
	if !strings.Contains(out, `"component":"bybit"`) {
		t.Fatalf("log file missing component logger output: %s", out)
	}
}

func TestInitBadLevelFallsBackToInfo(t *testing.T) {
	if err := Init(Config{Level: "nope"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { Logger = nil })
	if Logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info", Logger.GetLevel())
	}
}
