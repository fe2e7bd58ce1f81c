package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/tileprobe/internal/domain"
	apimw "github.com/hamed0406/tileprobe/internal/httpapi/middleware"
	"github.com/hamed0406/tileprobe/internal/probe"
	"github.com/hamed0406/tileprobe/internal/repo"
)

// MaxProbeTimeout caps the timeout a caller may ask for, since the request is
// held open for the whole probe.
const MaxProbeTimeout = 60 * time.Second

type Server struct {
	Logger  *zap.Logger
	Targets repo.TargetStore
	Results repo.ResultStore
	Prober  probe.Prober
	Metrics http.Handler // served on /metrics when set
}

func NewServer(l *zap.Logger, ts repo.TargetStore, rs repo.ResultStore, p probe.Prober) *Server {
	return &Server{Logger: l, Targets: ts, Results: rs, Prober: p}
}

// Router builds the HTTP API. Reads need any key, writes and probes need an
// admin key; each group is rate limited per client IP.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(pubRPM, pubBurst))
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/results/latest", s.handleLatest)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(admRPM, admBurst))
		r.Use(apimw.RequireAdmin(keys))
		r.Post("/api/targets", s.handleAddTarget)
		r.Post("/api/probe", s.handleProbe)
	})

	return r
}

type probePayload struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Selector  string `json:"selector"`
	TimeoutMS int    `json:"timeout_ms"`
}

// target validates the payload and returns the normalized probe target.
func (p probePayload) target() (probe.Target, error) {
	if !isValidHTTPURL(p.URL) {
		return probe.Target{}, errors.New("url must be an absolute http(s) address")
	}
	if p.TimeoutMS < 0 {
		return probe.Target{}, errors.New("timeout_ms must not be negative")
	}
	t := probe.Target{
		Name:     p.Name,
		URL:      normalizeHTTPURL(p.URL),
		Selector: strings.TrimSpace(p.Selector),
		Timeout:  time.Duration(p.TimeoutMS) * time.Millisecond,
	}
	if t.Timeout > MaxProbeTimeout {
		t.Timeout = MaxProbeTimeout
	}
	if err := t.Validate(); err != nil {
		return probe.Target{}, err
	}
	return t, nil
}

// summary is what the API reports for one probe run.
type summary struct {
	Ready      bool    `json:"ready"`
	Stage      string  `json:"stage,omitempty"`
	Timeout    bool    `json:"timeout,omitempty"`
	Message    string  `json:"message,omitempty"`
	StatusLine string  `json:"status_line"`
	Artifact   string  `json:"artifact,omitempty"`
	LatencyMS  float64 `json:"latency_ms"`
}

func summarize(res probe.Result) summary {
	out := summary{
		Ready:      res.Success,
		Stage:      string(probe.StageOf(res.Err)),
		Timeout:    probe.IsTimeout(res.Err),
		Message:    res.Message,
		StatusLine: res.StatusLine(),
		LatencyMS:  res.LatencyMS(),
	}
	if res.Artifact != nil {
		out.Artifact = res.Artifact.Location
	}
	return out
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p probePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	pt, err := p.target()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := &domain.Target{
		Name:      pt.Name,
		URL:       pt.URL,
		Selector:  pt.Selector,
		TimeoutMS: int(pt.Timeout / time.Millisecond),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Targets.Add(r.Context(), t); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			writeError(w, http.StatusConflict, "target already exists")
			return
		}
		s.Logger.Error("add_target_error", zap.String("url", t.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}

	// Run a single probe synchronously for immediate feedback
	res := s.Prober.Probe(r.Context(), t.Probe())
	rec := domain.RecordOf(t.ID, res)
	if err := s.Results.Append(r.Context(), rec); err != nil {
		s.Logger.Warn("append_result_error", zap.String("target_id", string(t.ID)), zap.Error(err))
	}

	s.Logger.Info("added_target",
		zap.String("url", t.URL),
		zap.String("selector", t.Selector),
		zap.Bool("ready", res.Success),
		zap.Float64("latency_ms", res.LatencyMS()),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"target": t, "summary": summarize(res),
	})
}

// handleProbe runs an ad-hoc probe that is not stored as a target.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var p probePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	pt, err := p.target()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if pt.Name == "" {
		// concurrent ad-hoc runs must not overwrite each other's screenshots
		pt.Name = "adhoc-" + uuid.NewString()
	}
	res := s.Prober.Probe(r.Context(), pt)
	writeJSON(w, http.StatusOK, summarize(res))
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if ts == nil {
		ts = []*domain.Target{}
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Results.Latest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "latest error")
		return
	}
	if rows == nil {
		rows = []repo.LatestRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// normalizeHTTPURL lowercases scheme and host, drops the default port and a
// bare trailing slash so equivalent spellings dedupe to one target.
func normalizeHTTPURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	if u.Path == "/" {
		u.Path = ""
	}
	u.Fragment = ""
	return u.String()
}
