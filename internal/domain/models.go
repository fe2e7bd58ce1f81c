package domain

import (
	"time"

	"github.com/hamed0406/tileprobe/internal/probe"
)

type TargetID string

// Target is a page the service keeps probing.
type Target struct {
	ID        TargetID  `json:"id"`
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url"`
	Selector  string    `json:"selector"`
	TimeoutMS int       `json:"timeout_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Probe converts the stored target into what the prober runs. Unnamed
// targets are scoped by ID so their screenshots never share a file.
func (t Target) Probe() probe.Target {
	name := t.Name
	if name == "" {
		name = string(t.ID)
	}
	return probe.Target{
		Name:     name,
		URL:      t.URL,
		Selector: t.Selector,
		Timeout:  time.Duration(t.TimeoutMS) * time.Millisecond,
	}
}

// ProbeRecord is a stored probe outcome.
type ProbeRecord struct {
	ID        int64     `json:"id"`
	TargetID  TargetID  `json:"target_id"`
	Ready     bool      `json:"ready"`
	Stage     string    `json:"stage,omitempty"`
	Artifact  string    `json:"artifact,omitempty"`
	LatencyMS float64   `json:"latency_ms"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// RecordOf flattens a probe result for storage.
func RecordOf(id TargetID, r probe.Result) *ProbeRecord {
	rec := &ProbeRecord{
		TargetID:  id,
		Ready:     r.Success,
		Stage:     string(probe.StageOf(r.Err)),
		LatencyMS: r.LatencyMS(),
		Reason:    r.Message,
		CheckedAt: r.StartedAt.Add(r.Elapsed).UTC(),
	}
	if r.Artifact != nil {
		rec.Artifact = r.Artifact.Location
	}
	if r.StartedAt.IsZero() {
		rec.CheckedAt = time.Now().UTC()
	}
	return rec
}
