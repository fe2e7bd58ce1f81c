package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/tileprobe/internal/probe"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

type stubEngine struct {
	ready  bool
	events []probe.ConsoleEvent
}

func (e *stubEngine) Launch(ctx context.Context, opts probe.LaunchOptions) (probe.Session, error) {
	return &stubSession{e: e}, nil
}

type stubSession struct {
	e   *stubEngine
	obs probe.Observer
}

func (s *stubSession) Observe(obs probe.Observer) { s.obs = obs }
func (s *stubSession) Navigate(url string, timeout time.Duration) error {
	for _, ev := range s.e.events {
		if s.obs != nil {
			s.obs(ev)
		}
	}
	return nil
}
func (s *stubSession) WaitVisible(selector string, timeout time.Duration) error {
	if s.e.ready {
		return nil
	}
	time.Sleep(timeout)
	return probe.ErrTimeout
}
func (s *stubSession) Screenshot(timeout time.Duration) ([]byte, error) { return pngBytes, nil }
func (s *stubSession) Close() error                                     { return nil }

func runCLI(t *testing.T, eng probe.Engine, args ...string) (string, error) {
	t.Helper()
	prev := newEngine
	newEngine = func() probe.Engine { return eng }
	t.Cleanup(func() { newEngine = prev })
	t.Setenv("LOG_DIR", t.TempDir())
	t.Setenv("S3_BUCKET", "")

	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRun_ReadyWritesVerificationScreenshot(t *testing.T) {
	dir := t.TempDir()
	eng := &stubEngine{ready: true, events: []probe.ConsoleEvent{{Kind: probe.EventConsole, Level: "log", Text: "map init"}}}

	out, err := runCLI(t, eng, "run", "--out", dir, "--console")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Verification screenshot taken") {
		t.Fatalf("stdout: %q", out)
	}
	if !strings.Contains(out, "BROWSER CONSOLE: map init") {
		t.Fatalf("console not forwarded: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "verification.png")); err != nil {
		t.Fatalf("verification.png: %v", err)
	}
}

func TestRun_NotReadyExitsNonZeroUnlessAllowed(t *testing.T) {
	dir := t.TempDir()
	eng := &stubEngine{}

	out, err := runCLI(t, eng, "run", "--out", dir, "--selector", ".nonexistent-class", "--timeout-ms", "30")
	if !errors.Is(err, errProbeFailed) {
		t.Fatalf("want errProbeFailed, got %v", err)
	}
	if !strings.Contains(out, "An error occurred") || !strings.Contains(out, "error screenshot taken") {
		t.Fatalf("stdout: %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "error.png")); err != nil {
		t.Fatalf("error.png: %v", err)
	}

	if _, err := runCLI(t, eng, "run", "--out", dir, "--selector", ".nonexistent-class", "--timeout-ms", "30", "--allow-failure"); err != nil {
		t.Fatalf("--allow-failure should exit 0, got %v", err)
	}
}

func TestRun_InvalidURLFailsBeforeLaunch(t *testing.T) {
	_, err := runCLI(t, &stubEngine{ready: true}, "run", "--url", "Atlasona.html")
	if err == nil || errors.Is(err, errProbeFailed) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestBatch_ProbesEveryTarget(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(t.TempDir(), "probes.yaml")
	yaml := `
targets:
  - name: atlas
    url: http://localhost:8000/Atlasona.html
    selector: "#map img.leaflet-tile-loaded"
  - name: atlas-js
    url: http://localhost:8000/Atlasonajs.html
    selector: .atlas-tile-loaded
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, &stubEngine{ready: true}, "batch", "-f", file, "--out", dir, "--concurrency", "2")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(out, "2/2 ready") {
		t.Fatalf("stdout: %q", out)
	}
	for _, name := range []string{"atlas", "atlas-js"} {
		if _, err := os.Stat(filepath.Join(dir, name, "verification.png")); err != nil {
			t.Fatalf("%s screenshot: %v", name, err)
		}
	}
}

func TestBatch_UnnamedEntriesGetTheirOwnScreenshots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(t.TempDir(), "targets.yaml")
	yaml := `
defaults:
  selector: "#map img.leaflet-tile-loaded"
targets:
  - url: http://localhost:8000/Atlasona.html
  - url: http://localhost:8000/Atlasonajs.html
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, &stubEngine{ready: true}, "batch", "-f", file, "--out", dir, "--concurrency", "2")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(out, "2/2 ready") {
		t.Fatalf("stdout: %q", out)
	}
	for _, name := range []string{"target-1", "target-2"} {
		if _, err := os.Stat(filepath.Join(dir, name, "verification.png")); err != nil {
			t.Fatalf("%s screenshot: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "verification.png")); !os.IsNotExist(err) {
		t.Fatalf("unnamed entries must not share the bare verification.png")
	}
}

func TestBatch_InvalidFileIsRejected(t *testing.T) {
	file := filepath.Join(t.TempDir(), "probes.yaml")
	if err := os.WriteFile(file, []byte("targets: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, &stubEngine{}, "batch", "-f", file); err == nil {
		t.Fatalf("expected validation error")
	}
}
