package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

const sampleTargets = `
concurrency: 2
defaults:
  selector: "#map img.leaflet-tile-loaded"
  timeout_ms: 10000
targets:
  - name: atlas
    url: http://localhost:8000/Atlasona.html
  - name: atlas-js
    url: http://localhost:8000/Atlasonajs.html
    selector: .atlas-tile-loaded
    timeout_ms: 15000
`

func TestLoadTargets_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.yaml")
	if err := os.WriteFile(path, []byte(sampleTargets), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("LoadTargets: %v", err)
	}
	if err := ValidateTargets(f); err != nil {
		t.Fatalf("ValidateTargets: %v", err)
	}
	got := f.Resolve()
	if len(got) != 2 || f.Concurrency != 2 {
		t.Fatalf("unexpected file: %+v", f)
	}
	if got[0].Selector != "#map img.leaflet-tile-loaded" || got[0].Timeout != 10*time.Second {
		t.Fatalf("defaults not applied: %+v", got[0])
	}
	if got[1].Selector != ".atlas-tile-loaded" || got[1].Timeout != 15*time.Second {
		t.Fatalf("overrides lost: %+v", got[1])
	}
	// Resolve must not write defaults back
	if f.Targets[0].Selector != "" {
		t.Fatalf("Resolve mutated the file")
	}
}

func TestLoadTargets_MissingFile(t *testing.T) {
	if _, err := LoadTargets(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateTargets_ReportsEveryProblem(t *testing.T) {
	f, err := ParseTargets([]byte(`
concurrency: -1
targets:
  - name: a
    url: ftp://tiles
    selector: .x
  - name: a
    url: http://localhost:8000/Atlasona.html
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	err = ValidateTargets(f)
	if err == nil {
		t.Fatalf("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"concurrency", "targets[0]: invalid url", "targets[1]: empty selector", `name "a" already used`} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %q", want, msg)
		}
	}
	if ValidateTargets(&TargetFile{}) == nil {
		t.Fatalf("empty file should not validate")
	}
}

func TestValidateTargets_NamedHTTPTargetsAreValid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		f := &TargetFile{}
		for i := 0; i < n; i++ {
			f.Targets = append(f.Targets, TargetEntry{
				Name:      rapid.StringMatching(`[a-z][a-z0-9-]{0,8}`).Draw(rt, "name") + "-" + string(rune('a'+i)),
				URL:       "http://localhost:" + rapid.StringMatching(`[1-9][0-9]{3}`).Draw(rt, "port") + "/Atlasona.html",
				Selector:  rapid.SampledFrom([]string{"#map img", ".atlas-tile-loaded", "img.leaflet-tile-loaded"}).Draw(rt, "sel"),
				TimeoutMS: rapid.IntRange(0, 60000).Draw(rt, "timeout"),
			})
		}
		if err := ValidateTargets(f); err != nil {
			rt.Fatalf("valid file rejected: %v", err)
		}
	})
}

func TestResolve_NamesUnnamedEntriesByPosition(t *testing.T) {
	f, err := ParseTargets([]byte(`
defaults:
  selector: "#map img.leaflet-tile-loaded"
targets:
  - url: http://localhost:8000/Atlasona.html
  - name: js
    url: http://localhost:8000/Atlasonajs.html
  - url: http://localhost:8000/Atlasona.html?layer=sat
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := ValidateTargets(f); err != nil {
		t.Fatalf("ValidateTargets: %v", err)
	}
	got := f.Resolve()
	names := []string{got[0].Name, got[1].Name, got[2].Name}
	if names[0] != "target-1" || names[1] != "js" || names[2] != "target-3" {
		t.Fatalf("unexpected names: %v", names)
	}
	if f.Targets[0].Name != "" {
		t.Fatalf("Resolve mutated the file")
	}
}
