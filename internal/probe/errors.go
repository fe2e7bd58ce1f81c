package probe

import (
	"context"
	"errors"
	"fmt"
)

// Stage names the step of a probe that failed.
type Stage string

const (
	StageInput      Stage = "input"
	StageLaunch     Stage = "launch"
	StageNavigate   Stage = "navigate"
	StageWait       Stage = "wait"
	StageScreenshot Stage = "screenshot"
	StageStore      Stage = "store"
	StageEvidence   Stage = "evidence"
	StageTeardown   Stage = "teardown"
)

// ErrTimeout marks a step that ran out of its deadline.
var ErrTimeout = errors.New("timeout")

// Error is a probe failure tagged with the stage it happened in.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Stage) + " failed"
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StageOf returns the stage of the first *Error in err's chain, or "" when
// there is none.
func StageOf(err error) Stage {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// IsTimeout reports whether err was caused by a deadline, either the probe's
// own or the caller's context.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
