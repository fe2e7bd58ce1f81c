package repo

import (
	"context"
	"time"
)

// AlertRecord holds the last readiness we saw for a target and the last time
// a notification went out for it (used for cooldown).
type AlertRecord struct {
	TargetID   string
	LastReady  bool
	LastSentAt *time.Time
}

// AlertStore is implemented by a persistence layer to store alert state.
type AlertStore interface {
	// GetAlert returns nil, nil if there's no record yet.
	GetAlert(ctx context.Context, targetID string) (*AlertRecord, error)
	// SetAlert upserts the record. If sentAt.IsZero() we store NULL for last_sent_at.
	SetAlert(ctx context.Context, targetID string, lastReady bool, sentAt time.Time) error
}
