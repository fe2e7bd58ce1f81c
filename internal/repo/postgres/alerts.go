package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/tileprobe/internal/repo"
)

func (s *Store) GetAlert(ctx context.Context, targetID string) (*repo.AlertRecord, error) {
	const q = `SELECT last_ready, last_sent_at FROM alerts WHERE target_id=$1`
	var r repo.AlertRecord
	r.TargetID = targetID
	var lastSent *time.Time
	err := s.pool.QueryRow(ctx, q, targetID).Scan(&r.LastReady, &lastSent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r.LastSentAt = lastSent
	return &r, nil
}

func (s *Store) SetAlert(ctx context.Context, targetID string, lastReady bool, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (target_id, last_ready, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (target_id)
		DO UPDATE SET last_ready=EXCLUDED.last_ready, last_sent_at=EXCLUDED.last_sent_at
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	_, err := s.pool.Exec(ctx, q, targetID, lastReady, ts)
	return err
}
