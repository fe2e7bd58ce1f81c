package probe

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image")

type fakeEngine struct {
	mu        sync.Mutex
	launchErr error
	make      func() *fakeSession
	sessions  []*fakeSession

	launchDeadline time.Time
	launchHasDL    bool
}

func (e *fakeEngine) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launchDeadline, e.launchHasDL = ctx.Deadline()
	if e.launchErr != nil {
		return nil, e.launchErr
	}
	s := &fakeSession{readyAfter: 0, shot: pngBytes}
	if e.make != nil {
		s = e.make()
	}
	e.sessions = append(e.sessions, s)
	return s, nil
}

// live counts sessions that were launched but never closed.
func (e *fakeEngine) live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, s := range e.sessions {
		if s.closeCount() == 0 {
			n++
		}
	}
	return n
}

type fakeSession struct {
	mu sync.Mutex

	navErr     error
	readyAfter time.Duration // negative: selector never appears
	shot       []byte
	shotErr    error
	events     []ConsoleEvent

	obs         Observer
	waitTimeout time.Duration
	shots       int
	closed      int
}

func (s *fakeSession) Observe(obs Observer) { s.obs = obs }

func (s *fakeSession) Navigate(url string, timeout time.Duration) error {
	for _, ev := range s.events {
		if s.obs != nil {
			s.obs(ev)
		}
	}
	return s.navErr
}

func (s *fakeSession) WaitVisible(selector string, timeout time.Duration) error {
	s.mu.Lock()
	s.waitTimeout = timeout
	s.mu.Unlock()
	if s.readyAfter < 0 || s.readyAfter > timeout {
		time.Sleep(timeout)
		return fmt.Errorf("%w: waiting for locator(%q) to be visible", ErrTimeout, selector)
	}
	time.Sleep(s.readyAfter)
	return nil
}

func (s *fakeSession) Screenshot(timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots++
	if s.shotErr != nil {
		return nil, s.shotErr
	}
	return s.shot, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
