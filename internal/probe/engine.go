package probe

import (
	"context"
	"time"
)

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// LaunchOptions configures the disposable browser a probe runs in.
type LaunchOptions struct {
	Headless bool
	Viewport Viewport
	// WaitUntil is the navigation event Navigate waits for:
	// "load" (default), "domcontentloaded", "networkidle" or "commit".
	WaitUntil string
	FullPage  bool
}

// Engine starts browser sessions.
type Engine interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is one isolated browser with one open page. Close releases the
// page, the browser and the driver process and must be safe to call on every
// exit path.
type Session interface {
	Observe(obs Observer)
	Navigate(url string, timeout time.Duration) error
	WaitVisible(selector string, timeout time.Duration) error
	Screenshot(timeout time.Duration) ([]byte, error)
	Close() error
}
