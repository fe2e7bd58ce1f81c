package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger_CreatesDirAndLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	// Directory should exist
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}

	log.Info("probe_started", zap.String("url", "http://localhost:8000/Atlasona.html"))
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "tileprobe.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"probe_started"`) || !strings.Contains(string(b), `"ts":`) {
		t.Fatalf("unexpected log line: %s", b)
	}
}

func TestNewConsoleLogger_TeesToConsole(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	log := NewConsoleLogger(dir, &buf, zap.InfoLevel)
	log.Debug("hidden")
	log.Info("browser_console", zap.String("text", "map init"))
	_ = log.Sync()

	out := buf.String()
	if !strings.Contains(out, "browser_console") || !strings.Contains(out, "map init") {
		t.Fatalf("console missing entry: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug should be filtered: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "tileprobe.log")); err != nil {
		t.Fatalf("file core missing: %v", err)
	}
}

func TestNewConsoleLogger_UnusableDirStillLogs(t *testing.T) {
	var buf bytes.Buffer
	// a regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	log := NewConsoleLogger(filepath.Join(blocker, "logs"), &buf, zap.InfoLevel)
	log.Info("still_here")
	if !strings.Contains(buf.String(), "log_file_unavailable") || !strings.Contains(buf.String(), "still_here") {
		t.Fatalf("unexpected console output: %q", buf.String())
	}
}
