package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hamed0406/tileprobe/internal/artifact"
	"github.com/hamed0406/tileprobe/internal/config"
	"github.com/hamed0406/tileprobe/internal/logging"
	"github.com/hamed0406/tileprobe/internal/probe"
)

// newEngine is swapped out in tests.
var newEngine = func() probe.Engine { return probe.NewPlaywrightEngine() }

// probeFlags are shared by run and batch. Defaults come from the environment.
type probeFlags struct {
	cfg          config.Config
	console      bool
	allowFailure bool
	preflight    bool
	verbose      bool
	viewport     string
	waitUntil    string
	fullPage     bool
}

func (f *probeFlags) register(cmd *cobra.Command) {
	p := &f.cfg.Probe
	fl := cmd.Flags()
	fl.StringVar(&p.OutputDir, "out", p.OutputDir, "Directory (or S3 key prefix) for screenshots")
	fl.StringVar(&p.SuccessFile, "success-file", p.SuccessFile, "Screenshot name when the page became ready")
	fl.StringVar(&p.ErrorFile, "error-file", p.ErrorFile, "Screenshot name when the probe failed")
	fl.BoolVar(&p.Headless, "headless", p.Headless, "Run the browser without a window")
	fl.StringVar(&f.viewport, "viewport", "", "Viewport as WIDTHxHEIGHT, e.g. 1280x720")
	fl.StringVar(&f.waitUntil, "wait-until", "load", "Navigation event to wait for: load, domcontentloaded, networkidle, commit")
	fl.BoolVar(&f.fullPage, "full-page", false, "Capture the full scrollable page")
	fl.BoolVar(&f.console, "console", p.ForwardConsole, "Print browser console messages and page errors")
	fl.BoolVar(&f.allowFailure, "allow-failure", false, "Exit 0 even when the page never became ready")
	fl.BoolVar(&f.preflight, "preflight", false, "Check the page server answers plain HTTP before launching the browser")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Debug logging on stderr")
	fl.StringVar(&f.cfg.S3.Bucket, "s3-bucket", f.cfg.S3.Bucket, "Upload screenshots to this bucket instead of disk")
	fl.StringVar(&f.cfg.S3.Endpoint, "s3-endpoint", f.cfg.S3.Endpoint, "S3-compatible endpoint URL")
}

func (f *probeFlags) logger(stderr io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if f.verbose {
		level = zapcore.DebugLevel
	}
	return logging.NewConsoleLogger(f.cfg.LogDir, stderr, level)
}

func (f *probeFlags) prober(ctx context.Context, log *zap.Logger, stdout io.Writer) (probe.Prober, error) {
	p := f.cfg.Probe
	store, err := artifact.Open(ctx, p.OutputDir, artifact.S3Config{
		Endpoint:        f.cfg.S3.Endpoint,
		Region:          f.cfg.S3.Region,
		AccessKeyID:     f.cfg.S3.AccessKeyID,
		SecretAccessKey: f.cfg.S3.SecretAccessKey,
		Bucket:          f.cfg.S3.Bucket,
		PublicURL:       f.cfg.S3.PublicURL,
		UsePathStyle:    f.cfg.S3.Endpoint != "",
	})
	if err != nil {
		return nil, err
	}

	vp := probe.Viewport{Width: p.ViewportWidth, Height: p.ViewportHeight}
	if f.viewport != "" {
		w, h, ok := config.ParseViewport(f.viewport)
		if !ok {
			return nil, fmt.Errorf("invalid --viewport %q, want WIDTHxHEIGHT", f.viewport)
		}
		vp = probe.Viewport{Width: w, Height: h}
	}

	opts := probe.Options{
		Engine: newEngine(),
		Store:  store,
		Logger: log,
		Launch: probe.LaunchOptions{
			Headless:  p.Headless,
			Viewport:  vp,
			WaitUntil: f.waitUntil,
			FullPage:  f.fullPage,
		},
		SuccessName:    p.SuccessFile,
		ErrorName:      p.ErrorFile,
		ForwardConsole: f.console,
	}
	if f.console {
		opts.Observers = []probe.Observer{consolePrinter(stdout)}
	}
	return probe.NewVisualProber(opts), nil
}

// checkReachable warns when the page server does not answer. The probe still
// runs so the error screenshot is captured.
func (f *probeFlags) checkReachable(ctx context.Context, stderr io.Writer, urls ...string) {
	if !f.preflight {
		return
	}
	rc := probe.NewReachabilityChecker(5 * time.Second)
	for _, u := range urls {
		r := rc.Check(ctx, u)
		switch {
		case !r.Up:
			fmt.Fprintf(stderr, "warning: %s is not answering (%s)\n", u, r.Message)
		case !r.HTML && r.ContentType != "":
			fmt.Fprintf(stderr, "warning: %s is served as %s, not HTML\n", u, r.ContentType)
		}
	}
}

func consolePrinter(w io.Writer) probe.Observer {
	return func(ev probe.ConsoleEvent) {
		if ev.Kind == probe.EventPageError {
			fmt.Fprintf(w, "BROWSER ERROR: %s\n", ev.Text)
			return
		}
		fmt.Fprintf(w, "BROWSER CONSOLE: %s\n", ev.Text)
	}
}

func newRunCommand() *cobra.Command {
	f := &probeFlags{cfg: config.FromEnv()}
	var (
		target    probe.Target
		timeoutMS int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Probe one page and write verification.png or error.png",
		Example: `  tileprobe run
  tileprobe run --url http://localhost:8000/Atlasonajs.html --selector .atlas-tile-loaded --timeout-ms 15000
  tileprobe run --selector .nonexistent-class --timeout-ms 2000 --allow-failure`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			log := f.logger(cmd.ErrOrStderr())
			defer func() { _ = log.Sync() }()

			target.Timeout = time.Duration(timeoutMS) * time.Millisecond
			if err := target.Validate(); err != nil {
				return err
			}
			p, err := f.prober(ctx, log, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			f.checkReachable(ctx, cmd.ErrOrStderr(), target.URL)

			res := p.Probe(ctx, target)
			fmt.Fprintln(cmd.OutOrStdout(), res.StatusLine())
			if !res.Success && !f.allowFailure {
				return errProbeFailed
			}
			return nil
		},
	}

	p := f.cfg.Probe
	cmd.Flags().StringVar(&target.URL, "url", p.URL, "Page to load")
	cmd.Flags().StringVar(&target.Selector, "selector", p.Selector, "CSS selector that is visible once tiles are loaded")
	cmd.Flags().IntVar(&timeoutMS, "timeout-ms", int(p.Timeout/time.Millisecond), "Navigation plus wait budget in milliseconds")
	cmd.Flags().StringVar(&target.Name, "name", "", "Optional subdirectory for this target's screenshots")
	f.register(cmd)
	return cmd
}

func newBatchCommand() *cobra.Command {
	f := &probeFlags{cfg: config.FromEnv()}
	var (
		file        string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Probe every target listed in a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			log := f.logger(cmd.ErrOrStderr())
			defer func() { _ = log.Sync() }()

			tf, err := config.LoadTargets(file)
			if err != nil {
				return err
			}
			if err := config.ValidateTargets(tf); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			targets := tf.Resolve()
			if concurrency <= 0 {
				concurrency = tf.Concurrency
			}
			if concurrency <= 0 {
				concurrency = f.cfg.MaxConcurrentChecks
			}

			p, err := f.prober(ctx, log, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			urls := make([]string, len(targets))
			for i, t := range targets {
				urls[i] = t.URL
			}
			f.checkReachable(ctx, cmd.ErrOrStderr(), urls...)

			failed := 0
			for i, res := range probe.Parallel(ctx, p, targets, concurrency) {
				label := targets[i].Name
				if label == "" {
					label = targets[i].URL
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", label, res.StatusLine())
				if !res.Success {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d ready\n", len(targets)-failed, len(targets))
			if failed > 0 && !f.allowFailure {
				return errProbeFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "probes.yaml", "YAML list of targets")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Browsers to run at once (default from file, then MAX_CONCURRENT_CHECKS)")
	f.register(cmd)
	return cmd
}
