package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Alert describes a readiness transition of one target.
type Alert struct {
	TargetID string
	URL      string
	Selector string
	Ready    bool
	Stage    string // failing stage, empty when ready
	Reason   string
	Artifact string // screenshot location, if any
	At       time.Time
}

// Title is a one-line summary suitable for a chat message header.
func (a Alert) Title() string {
	if a.Ready {
		return "RECOVERED: " + a.URL
	}
	return "NOT READY: " + a.URL
}

// Text is the message body.
func (a Alert) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "selector: `%s`\n", a.Selector)
	if !a.Ready {
		if a.Stage != "" {
			fmt.Fprintf(&b, "stage: %s\n", a.Stage)
		}
		if a.Reason != "" {
			fmt.Fprintf(&b, "reason: %s\n", a.Reason)
		}
	}
	if a.Artifact != "" {
		fmt.Fprintf(&b, "screenshot: %s\n", a.Artifact)
	}
	if !a.At.IsZero() {
		fmt.Fprintf(&b, "at: %s", a.At.UTC().Format(time.RFC3339))
	}
	return strings.TrimRight(b.String(), "\n")
}

type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// Multi sends to every notifier and returns all failures combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, a))
	}
	return err
}
