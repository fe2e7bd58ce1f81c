package probe

import (
	"context"
	"io"
	"mime"
	"net/http"
	"time"
)

// Reachability says whether the page server answered, before a browser is
// started against it.
type Reachability struct {
	Up          bool    `json:"up"`
	Method      string  `json:"method,omitempty"`
	StatusCode  int     `json:"status_code,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	HTML        bool    `json:"html"`
	LatencyMS   float64 `json:"latency_ms"`
	Message     string  `json:"message"`
}

// ReachabilityChecker asks with HEAD so the page body is not downloaded, and
// retries with GET on servers that do not implement HEAD.
type ReachabilityChecker struct {
	Client *http.Client
}

func NewReachabilityChecker(timeout time.Duration) *ReachabilityChecker {
	return &ReachabilityChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func (h *ReachabilityChecker) Check(ctx context.Context, target string) Reachability {
	start := time.Now()
	out, status := h.ask(ctx, http.MethodHead, target)
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		out, _ = h.ask(ctx, http.MethodGet, target)
	}
	out.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	return out
}

func (h *ReachabilityChecker) ask(ctx context.Context, method, target string) (Reachability, int) {
	out := Reachability{Method: method}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		out.Message = err.Error()
		return out, 0
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		out.Message = err.Error()
		return out, 0
	}
	defer resp.Body.Close()
	// drain a little so the connection can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)

	out.StatusCode = resp.StatusCode
	out.Message = resp.Status
	out.Up = resp.StatusCode >= 200 && resp.StatusCode < 400
	out.ContentType = resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(out.ContentType); err == nil {
		out.HTML = mt == "text/html" || mt == "application/xhtml+xml"
	}
	return out, resp.StatusCode
}
