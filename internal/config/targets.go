package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/tileprobe/internal/probe"
)

// TargetFile is the YAML probe list used by `tileprobe batch`.
//
//	concurrency: 2
//	defaults:
//	  timeout_ms: 10000
//	targets:
//	  - name: atlas
//	    url: http://localhost:8000/Atlasona.html
//	    selector: "#map img.leaflet-tile-loaded"
type TargetFile struct {
	Concurrency int           `yaml:"concurrency"`
	Defaults    TargetEntry   `yaml:"defaults"`
	Targets     []TargetEntry `yaml:"targets"`
}

type TargetEntry struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Selector  string `yaml:"selector"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

func LoadTargets(path string) (*TargetFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseTargets(b)
}

func ParseTargets(b []byte) (*TargetFile, error) {
	var f TargetFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	return &f, nil
}

// Resolve applies defaults and returns the probe targets in file order.
// Entries without a name are called target-<position> so each one writes its
// screenshots to its own directory.
func (f *TargetFile) Resolve() []probe.Target {
	out := make([]probe.Target, 0, len(f.Targets))
	for i, e := range f.Targets {
		if e.Name == "" {
			e.Name = fmt.Sprintf("target-%d", i+1)
		}
		if e.Selector == "" {
			e.Selector = f.Defaults.Selector
		}
		if e.URL == "" {
			e.URL = f.Defaults.URL
		}
		if e.TimeoutMS == 0 {
			e.TimeoutMS = f.Defaults.TimeoutMS
		}
		out = append(out, probe.Target{
			Name:     e.Name,
			URL:      e.URL,
			Selector: e.Selector,
			Timeout:  time.Duration(e.TimeoutMS) * time.Millisecond,
		})
	}
	return out
}

// ValidateTargets reports every problem in the file at once. The file is not
// modified.
func ValidateTargets(f *TargetFile) error {
	if f == nil {
		return errors.New("no targets file")
	}
	var errs []error
	if len(f.Targets) == 0 {
		errs = append(errs, errors.New("targets: at least one target is required"))
	}
	if f.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency: must not be negative, got %d", f.Concurrency))
	}
	seen := make(map[string]int)
	for i, t := range f.Resolve() {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d]: %w", i, err))
		}
		if j, dup := seen[t.Name]; dup {
			errs = append(errs, fmt.Errorf("targets[%d]: name %q already used by targets[%d]", i, t.Name, j))
			continue
		}
		seen[t.Name] = i
	}
	return errors.Join(errs...)
}
