package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/tileprobe/internal/domain"
)

var (
	// ErrDuplicate is returned when a target with the same URL and selector
	// already exists.
	ErrDuplicate = errors.New("target already exists")
	ErrNotFound  = errors.New("not found")
)

// Ports implemented by the memory and postgres stores.
type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	List(ctx context.Context) ([]*domain.Target, error)
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
}

type ResultStore interface {
	Append(ctx context.Context, r *domain.ProbeRecord) error
	Latest(ctx context.Context) ([]LatestRow, error)
}

// LatestRow is the most recent record of a target joined with the target.
type LatestRow struct {
	TargetID  string    `json:"target_id"`
	URL       string    `json:"url"`
	Selector  string    `json:"selector"`
	Ready     bool      `json:"ready"`
	Stage     string    `json:"stage,omitempty"`
	Artifact  string    `json:"artifact,omitempty"`
	LatencyMS *float64  `json:"latency_ms"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
