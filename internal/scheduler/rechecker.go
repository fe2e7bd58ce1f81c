package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/tileprobe/internal/domain"
	"github.com/hamed0406/tileprobe/internal/probe"
	"github.com/hamed0406/tileprobe/internal/repo"
)

type Rechecker struct {
	Logger      *zap.Logger
	Targets     repo.TargetStore
	Results     repo.ResultStore
	Prober      probe.Prober
	Interval    time.Duration
	Timeout     time.Duration // used for targets without their own timeout
	Concurrency int
}

func NewRechecker(
	logger *zap.Logger,
	ts repo.TargetStore,
	rs repo.ResultStore,
	prober probe.Prober,
	interval time.Duration,
	timeout time.Duration,
	concurrency int,
) *Rechecker {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	return &Rechecker{
		Logger:      logger,
		Targets:     ts,
		Results:     rs,
		Prober:      prober,
		Interval:    interval,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// Stops when ctx is cancelled.
func (r *Rechecker) Run(ctx context.Context) {
	if r.Interval == 0 {
		// disabled
		r.Logger.Info("rechecker_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	// immediate pass
	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("rechecker_stopped")
			return
		case <-t.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Rechecker) runOnce(ctx context.Context) {
	ts, err := r.Targets.List(ctx)
	if err != nil {
		r.Logger.Warn("rechecker_list_error", zap.Error(err))
		return
	}
	if len(ts) == 0 {
		return
	}

	targets := make([]probe.Target, len(ts))
	for i, t := range ts {
		targets[i] = t.Probe()
		if targets[i].Timeout <= 0 {
			targets[i].Timeout = r.Timeout
		}
	}

	results := probe.Parallel(ctx, r.Prober, targets, r.Concurrency)

	for i, res := range results {
		t := ts[i]
		rec := domain.RecordOf(t.ID, res)
		if err := r.Results.Append(ctx, rec); err != nil {
			r.Logger.Warn("rechecker_append_error",
				zap.String("target_id", string(t.ID)),
				zap.String("url", t.URL),
				zap.Error(err),
			)
			continue
		}
		r.Logger.Debug("rechecker_checked",
			zap.String("target_id", string(t.ID)),
			zap.String("url", t.URL),
			zap.Bool("ready", rec.Ready),
			zap.String("stage", rec.Stage),
			zap.Float64("latency_ms", rec.LatencyMS),
			zap.String("reason", rec.Reason),
		)
	}
}
