package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout bounds navigation plus the readiness wait when a Target
// does not set one.
const DefaultTimeout = 10 * time.Second

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Target is what a single probe run looks at. It does not change while the
// probe runs.
type Target struct {
	// Name optionally scopes the artifacts of this target ("atlas" puts the
	// screenshot at atlas/verification.png). Empty keeps the bare names.
	Name     string        `json:"name,omitempty" yaml:"name"`
	URL      string        `json:"url" yaml:"url"`
	Selector string        `json:"selector" yaml:"selector"`
	Timeout  time.Duration `json:"timeout" yaml:"-"`
}

// Validate reports the first problem that would keep the target from being
// probed at all.
func (t Target) Validate() error {
	if t.Name != "" && !namePattern.MatchString(t.Name) {
		return fmt.Errorf("invalid name %q", t.Name)
	}
	u, err := url.Parse(strings.TrimSpace(t.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid url %q: want an absolute http(s) address", t.URL)
	}
	if strings.TrimSpace(t.Selector) == "" {
		return errors.New("empty selector")
	}
	if t.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", t.Timeout)
	}
	return nil
}

func (t Target) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

// Artifact is a screenshot written by a probe.
type Artifact struct {
	Name     string `json:"name"`     // store key, e.g. "verification.png"
	Location string `json:"location"` // file path or object URL
	Data     []byte `json:"-"`
}

// Result is the outcome of one probe. A failed probe still carries the
// error screenshot when one could be taken.
type Result struct {
	Target    Target        `json:"target"`
	Success   bool          `json:"success"`
	Artifact  *Artifact     `json:"artifact,omitempty"`
	Err       error         `json:"-"`
	Message   string        `json:"message,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// LatencyMS is Elapsed in milliseconds.
func (r Result) LatencyMS() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

// StatusLine is the one line an operator reads after a run.
func (r Result) StatusLine() string {
	if r.Success {
		loc := ""
		if r.Artifact != nil {
			loc = r.Artifact.Location
		}
		return fmt.Sprintf("Verification screenshot taken: %s (%s)", loc, r.Elapsed.Round(time.Millisecond))
	}
	if r.Artifact != nil {
		return fmt.Sprintf("An error occurred: %s; error screenshot taken: %s", r.Message, r.Artifact.Location)
	}
	return fmt.Sprintf("An error occurred: %s; no screenshot captured", r.Message)
}

// Prober runs a probe. Implementations never return an error or panic past
// this call; failures are reported in the Result.
type Prober interface {
	Probe(ctx context.Context, t Target) Result
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, t Target) Result

func (f ProberFunc) Probe(ctx context.Context, t Target) Result { return f(ctx, t) }
