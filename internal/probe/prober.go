package probe

import (
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/tileprobe/internal/artifact"
)

const (
	DefaultSuccessName     = "verification.png"
	DefaultErrorName       = "error.png"
	DefaultEvidenceTimeout = 5 * time.Second
)

// Options configures a VisualProber.
type Options struct {
	Engine Engine
	Store  artifact.Store
	Logger *zap.Logger

	Launch LaunchOptions

	SuccessName string
	ErrorName   string

	// ForwardConsole attaches a LogSink plus Observers to every page.
	ForwardConsole bool
	Observers      []Observer

	// EvidenceTimeout bounds each screenshot, including the one taken after
	// a failure.
	EvidenceTimeout time.Duration
}

// VisualProber opens a page, waits for the readiness selector to be visible
// and screenshots the result. On failure it still screenshots whatever the
// page shows.
type VisualProber struct {
	engine Engine
	store  artifact.Store
	log    *zap.Logger
	opts   Options
	now    func() time.Time
}

func NewVisualProber(opts Options) *VisualProber {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = artifact.NewFileStore(".")
	}
	if opts.SuccessName == "" {
		opts.SuccessName = DefaultSuccessName
	}
	if opts.ErrorName == "" {
		opts.ErrorName = DefaultErrorName
	}
	if opts.EvidenceTimeout <= 0 {
		opts.EvidenceTimeout = DefaultEvidenceTimeout
	}
	return &VisualProber{
		engine: opts.Engine,
		store:  opts.Store,
		log:    opts.Logger,
		opts:   opts,
		now:    time.Now,
	}
}

func (p *VisualProber) Probe(ctx context.Context, t Target) (res Result) {
	start := p.now()
	res = Result{Target: t, StartedAt: start.UTC()}
	log := p.log.With(zap.String("url", t.URL), zap.String("selector", t.Selector))

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Err = multierr.Append(res.Err, &Error{Stage: StageTeardown, Err: fmt.Errorf("panic: %v", r)})
		}
		res.Elapsed = p.now().Sub(start)
		if res.Err != nil {
			res.Message = res.Err.Error()
		}
		p.report(log, res)
	}()

	if err := t.Validate(); err != nil {
		res.Err = &Error{Stage: StageInput, Err: err}
		return res
	}
	if p.engine == nil {
		res.Err = &Error{Stage: StageLaunch, Err: fmt.Errorf("no browser engine configured")}
		return res
	}

	deadline := start.Add(t.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	remaining := func() time.Duration { return deadline.Sub(p.now()) }

	log.Info("probe_started", zap.Duration("timeout", t.timeout()))

	lctx, cancel := context.WithDeadline(ctx, deadline)
	sess, err := p.engine.Launch(lctx, p.opts.Launch)
	cancel()
	if err != nil {
		res.Err = &Error{Stage: StageLaunch, Err: err}
		return res
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("browser_close_error", zap.Error(cerr))
		}
	}()

	if p.opts.ForwardConsole {
		sess.Observe(Observers(append([]Observer{LogSink(p.log, t)}, p.opts.Observers...)...))
	}

	if err := step(ctx, remaining(), func(d time.Duration) error { return sess.Navigate(t.URL, d) }); err != nil {
		p.fail(ctx, sess, t, &res, StageNavigate, err)
		return res
	}
	if err := step(ctx, remaining(), func(d time.Duration) error { return sess.WaitVisible(t.Selector, d) }); err != nil {
		p.fail(ctx, sess, t, &res, StageWait, err)
		return res
	}

	data, err := sess.Screenshot(p.opts.EvidenceTimeout)
	if err != nil {
		res.Err = &Error{Stage: StageScreenshot, Err: err}
		return res
	}
	a, err := p.save(ctx, t, p.opts.SuccessName, data)
	if err != nil {
		res.Err = &Error{Stage: StageStore, Err: err}
		return res
	}
	res.Artifact = a
	res.Success = true
	return res
}

// fail records the primary error and captures the error screenshot on a
// best-effort basis. Evidence problems are appended, never substituted.
func (p *VisualProber) fail(ctx context.Context, sess Session, t Target, res *Result, stage Stage, cause error) {
	res.Err = &Error{Stage: stage, Err: cause}

	data, err := sess.Screenshot(p.opts.EvidenceTimeout)
	if err != nil {
		res.Err = multierr.Append(res.Err, &Error{Stage: StageEvidence, Err: err})
		return
	}
	a, err := p.save(ctx, t, p.opts.ErrorName, data)
	if err != nil {
		res.Err = multierr.Append(res.Err, &Error{Stage: StageEvidence, Err: err})
		return
	}
	res.Artifact = a
}

// save runs detached from ctx cancellation so evidence of a timed out probe
// still lands, bounded by EvidenceTimeout.
func (p *VisualProber) save(ctx context.Context, t Target, name string, data []byte) (*Artifact, error) {
	if t.Name != "" {
		name = path.Join(t.Name, name)
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.EvidenceTimeout)
	defer cancel()
	loc, err := p.store.Save(sctx, name, data)
	if err != nil {
		return nil, err
	}
	return &Artifact{Name: name, Location: loc, Data: data}, nil
}

func (p *VisualProber) report(log *zap.Logger, res Result) {
	fields := []zap.Field{
		zap.Float64("latency_ms", res.LatencyMS()),
	}
	if res.Artifact != nil {
		fields = append(fields, zap.String("artifact", res.Artifact.Location), zap.Int("bytes", len(res.Artifact.Data)))
	}
	if res.Success {
		log.Info("probe_succeeded", fields...)
		return
	}
	fields = append(fields,
		zap.String("stage", string(StageOf(res.Err))),
		zap.Bool("timeout", IsTimeout(res.Err)),
		zap.Error(res.Err),
	)
	log.Warn("probe_failed", fields...)
}

// step runs fn with the remaining budget, failing fast when none is left.
func step(ctx context.Context, budget time.Duration, fn func(time.Duration) error) error {
	if err := ctx.Err(); err != nil && budget > 0 {
		return err
	}
	if budget <= 0 {
		return fmt.Errorf("%w: deadline exceeded before step started", ErrTimeout)
	}
	return fn(budget)
}
