package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/tileprobe/internal/notify"
	"github.com/hamed0406/tileprobe/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

type Alerter struct {
	results  repo.ResultStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	log      *zap.Logger
	cfg      AlerterConfig
	now      func() time.Time
}

func NewAlerter(
	results repo.ResultStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	log *zap.Logger,
	cfg AlerterConfig,
) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Alerter{
		results:  results,
		alertDB:  alertDB,
		notifier: notifier,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	if err := a.scanOnce(ctx); err != nil {
		a.log.Warn("alerter_scan_error", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := a.scanOnce(ctx); err != nil {
				a.log.Warn("alerter_scan_error", zap.Error(err))
			}
		}
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.results.Latest(ctx)
	if err != nil {
		return err
	}

	now := a.now()

	for _, r := range rows {
		rec, err := a.alertDB.GetAlert(ctx, r.TargetID)
		if err != nil {
			a.log.Warn("alert_state_read_error", zap.String("target_id", r.TargetID), zap.Error(err))
			continue
		}

		// A target seen for the first time counts as a change only when it is
		// not ready; a fresh ready target is not a recovery.
		stateChanged := (rec == nil && !r.Ready) || (rec != nil && rec.LastReady != r.Ready)

		// Cooldown only matters for not-ready alerts (suppresses flapping).
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		notReadyAlert := stateChanged && !r.Ready && cooled
		recoveryAlert := stateChanged && r.Ready && a.cfg.AlertOnRecovery // bypass cooldown

		if notReadyAlert || recoveryAlert {
			alert := notify.Alert{
				TargetID: r.TargetID,
				URL:      r.URL,
				Selector: r.Selector,
				Ready:    r.Ready,
				Stage:    r.Stage,
				Reason:   r.Reason,
				Artifact: r.Artifact,
				At:       r.CheckedAt,
			}
			// best effort; the send time is recorded either way so a broken
			// webhook does not cause a storm
			if err := a.notifier.Send(ctx, alert); err != nil {
				a.log.Warn("alert_send_error", zap.String("target_id", r.TargetID), zap.Error(err))
			} else {
				a.log.Info("alert_sent", zap.String("target_id", r.TargetID), zap.Bool("ready", r.Ready))
			}
			if err := a.alertDB.SetAlert(ctx, r.TargetID, r.Ready, now); err != nil {
				a.log.Warn("alert_state_write_error", zap.String("target_id", r.TargetID), zap.Error(err))
			}
			continue
		}

		// State changed (or first sighting) without a send: still record the
		// new state, keeping no send time.
		if rec == nil || stateChanged {
			if err := a.alertDB.SetAlert(ctx, r.TargetID, r.Ready, time.Time{}); err != nil {
				a.log.Warn("alert_state_write_error", zap.String("target_id", r.TargetID), zap.Error(err))
			}
		}
	}

	return nil
}
