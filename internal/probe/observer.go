package probe

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKind distinguishes console output from uncaught page errors.
type EventKind string

const (
	EventConsole   EventKind = "console"
	EventPageError EventKind = "pageerror"
)

// ConsoleEvent is one diagnostic message emitted by the page.
type ConsoleEvent struct {
	Kind  EventKind `json:"kind"`
	Level string    `json:"level,omitempty"` // console type: log, info, warning, error, debug
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Observer receives page diagnostics. It runs on the browser driver's event
// goroutine and has no say in the probe outcome.
type Observer func(ConsoleEvent)

// Observers fans an event out to each non-nil observer. A panicking observer
// is recovered so it cannot take the probe down with it.
func Observers(obs ...Observer) Observer {
	list := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return func(ev ConsoleEvent) {
		for _, o := range list {
			func() {
				defer func() { _ = recover() }()
				o(ev)
			}()
		}
	}
}

// LogSink writes page diagnostics to the logger.
func LogSink(log *zap.Logger, target Target) Observer {
	return func(ev ConsoleEvent) {
		fields := []zap.Field{
			zap.String("url", target.URL),
			zap.String("kind", string(ev.Kind)),
			zap.String("text", ev.Text),
		}
		switch {
		case ev.Kind == EventPageError:
			log.Warn("browser_page_error", fields...)
		case strings.EqualFold(ev.Level, "error"):
			log.Warn("browser_console", append(fields, zap.String("level", ev.Level))...)
		default:
			log.Info("browser_console", append(fields, zap.String("level", ev.Level))...)
		}
	}
}

// Recorder keeps every event it observes.
type Recorder struct {
	mu     sync.Mutex
	events []ConsoleEvent
}

func (r *Recorder) Observe(ev ConsoleEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []ConsoleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConsoleEvent, len(r.events))
	copy(out, r.events)
	return out
}
