package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/multierr"
)

// PlaywrightEngine launches headless Chromium through the playwright driver.
// Every Launch starts its own driver and browser so nothing leaks between
// probes.
type PlaywrightEngine struct {
	RunOptions *playwright.RunOptions
}

func NewPlaywrightEngine() *PlaywrightEngine {
	return &PlaywrightEngine{}
}

// InstallChromium downloads the playwright driver and Chromium.
func InstallChromium() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

func (e *PlaywrightEngine) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var runOpts []*playwright.RunOptions
	if e.RunOptions != nil {
		runOpts = append(runOpts, e.RunOptions)
	}
	pw, err := playwright.Run(runOpts...)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	s := &pwSession{pw: pw, opts: opts}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if d, ok := ctx.Deadline(); ok {
		launch.Timeout = playwright.Float(millis(time.Until(d)))
	}
	s.browser, err = pw.Chromium.Launch(launch)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("launch chromium: %w", err), s.Close())
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	}
	s.bctx, err = s.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("new context: %w", err), s.Close())
	}
	s.page, err = s.bctx.NewPage()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("new page: %w", err), s.Close())
	}
	return s, nil
}

type pwSession struct {
	opts    LaunchOptions
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	closed  bool
}

func (s *pwSession) Observe(obs Observer) {
	if obs == nil {
		return
	}
	s.page.OnConsole(func(msg playwright.ConsoleMessage) {
		obs(ConsoleEvent{Kind: EventConsole, Level: msg.Type(), Text: msg.Text(), At: time.Now().UTC()})
	})
	s.page.OnPageError(func(err error) {
		obs(ConsoleEvent{Kind: EventPageError, Level: "error", Text: err.Error(), At: time.Now().UTC()})
	})
}

func (s *pwSession) Navigate(url string, timeout time.Duration) error {
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(s.opts.WaitUntil),
		Timeout:   playwright.Float(millis(timeout)),
	})
	if err != nil {
		return translate(err)
	}
	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("%s answered HTTP %d", url, resp.Status())
	}
	return nil
}

func (s *pwSession) WaitVisible(selector string, timeout time.Duration) error {
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(timeout)),
	})
	return translate(err)
}

func (s *pwSession) Screenshot(timeout time.Duration) ([]byte, error) {
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(s.opts.FullPage),
		Type:     playwright.ScreenshotTypePng,
		Timeout:  playwright.Float(millis(timeout)),
	})
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

// Close tears down page, context, browser and driver in that order. Later
// steps run even when earlier ones fail.
func (s *pwSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.page != nil {
		err = multierr.Append(err, s.page.Close())
	}
	if s.bctx != nil {
		err = multierr.Append(err, s.bctx.Close())
	}
	if s.browser != nil {
		err = multierr.Append(err, s.browser.Close())
	}
	if s.pw != nil {
		err = multierr.Append(err, s.pw.Stop())
	}
	return err
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func waitUntilState(s string) *playwright.WaitUntilState {
	switch s {
	case "domcontentloaded":
		return playwright.WaitUntilStateDomcontentloaded
	case "networkidle":
		return playwright.WaitUntilStateNetworkidle
	case "commit":
		return playwright.WaitUntilStateCommit
	default:
		return playwright.WaitUntilStateLoad
	}
}

func millis(d time.Duration) float64 {
	if d <= 0 {
		// playwright treats 0 as "no timeout"; keep the deadline strict.
		return 1
	}
	return float64(d) / float64(time.Millisecond)
}
