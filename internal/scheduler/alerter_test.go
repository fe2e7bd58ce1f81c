package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/tileprobe/internal/notify"
	"github.com/hamed0406/tileprobe/internal/repo"
)

// ---- shared helpers ----

func row(id, url string, ready bool, ms float64) repo.LatestRow {
	msCopy := ms
	r := repo.LatestRow{
		TargetID:  id,
		URL:       url,
		Selector:  "#map img.leaflet-tile-loaded",
		Ready:     ready,
		LatencyMS: &msCopy,
		CheckedAt: time.Now(),
	}
	if !ready {
		r.Stage = "wait"
		r.Reason = "wait: timeout"
		r.Artifact = "error.png"
	}
	return r
}

type memAlerts struct {
	m map[string]repo.AlertRecord
}

func (m *memAlerts) GetAlert(ctx context.Context, targetID string) (*repo.AlertRecord, error) {
	r, ok := m.m[targetID]
	if !ok {
		return nil, nil
	}
	rr := r
	return &rr, nil
}

func (m *memAlerts) SetAlert(ctx context.Context, targetID string, lastReady bool, sentAt time.Time) error {
	if m.m == nil {
		m.m = map[string]repo.AlertRecord{}
	}
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	m.m[targetID] = repo.AlertRecord{TargetID: targetID, LastReady: lastReady, LastSentAt: ts}
	return nil
}

type memNotifier struct {
	sent []notify.Alert
	err  error
}

func (m *memNotifier) Send(ctx context.Context, a notify.Alert) error {
	m.sent = append(m.sent, a)
	return m.err
}

func newTestAlerter(results repo.ResultStore, alerts repo.AlertStore, nt notify.Notifier, cfg AlerterConfig) *Alerter {
	return NewAlerter(results, alerts, nt, zap.NewNop(), cfg)
}

// ---- tests ----

func TestAlerter_SendsOnNotReady_RespectsCooldown(t *testing.T) {
	results := &fakeResults{
		rows: []repo.LatestRow{row("A", "http://localhost:8000/Atlasona.html", false, 10000)},
	}
	alerts := &memAlerts{}
	nt := &memNotifier{}
	al := newTestAlerter(results, alerts, nt, AlerterConfig{
		AlertOnRecovery: true,
		Cooldown:        1 * time.Minute,
		PollInterval:    10 * time.Millisecond,
	})

	// first scan -> should alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("want 1 alert, got %d", len(nt.sent))
	}
	if got := nt.sent[0]; got.Ready || got.Stage != "wait" || got.Artifact != "error.png" {
		t.Fatalf("unexpected alert: %+v", got)
	}

	// second scan same not-ready within cooldown -> no new alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("want cooldown to suppress, got %d", len(nt.sent))
	}

	// flip to ready -> recovery alert allowed
	results.rows = []repo.LatestRow{row("A", "http://localhost:8000/Atlasona.html", true, 900)}
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.sent) != 2 || !nt.sent[1].Ready {
		t.Fatalf("want recovery alert, got %+v", nt.sent)
	}
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	results := &fakeResults{rows: []repo.LatestRow{row("B", "http://localhost:8000/Atlasonajs.html", true, 50)}}
	alerts := &memAlerts{}
	nt := &memNotifier{}
	al := newTestAlerter(results, alerts, nt, AlerterConfig{AlertOnRecovery: false})

	// first time ready (no previous) -> nothing to recover from
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.sent) != 0 {
		t.Fatalf("unexpected alert: %d", len(nt.sent))
	}
	if rec := alerts.m["B"]; !rec.LastReady {
		t.Fatalf("first sighting should be recorded: %+v", rec)
	}

	// go not-ready -> should alert
	results.rows = []repo.LatestRow{row("B", "http://localhost:8000/Atlasonajs.html", false, 120)}
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("want one not-ready alert, got %d", len(nt.sent))
	}

	// back to ready with recovery off -> state recorded, no alert
	results.rows = []repo.LatestRow{row("B", "http://localhost:8000/Atlasonajs.html", true, 80)}
	_ = al.scanOnce(context.Background())
	if len(nt.sent) != 1 || !alerts.m["B"].LastReady {
		t.Fatalf("unexpected: sent=%d state=%+v", len(nt.sent), alerts.m["B"])
	}
}

func TestAlerter_SendFailureStillRecordsState(t *testing.T) {
	results := &fakeResults{rows: []repo.LatestRow{row("C", "http://localhost:8000/Atlasona.html", false, 10)}}
	alerts := &memAlerts{}
	nt := &memNotifier{err: errors.New("webhook down")}
	al := newTestAlerter(results, alerts, nt, AlerterConfig{Cooldown: time.Minute})

	_ = al.scanOnce(context.Background())
	_ = al.scanOnce(context.Background())
	if len(nt.sent) != 1 {
		t.Fatalf("failed send must not be retried every scan, got %d", len(nt.sent))
	}
	if rec := alerts.m["C"]; rec.LastSentAt == nil || rec.LastReady {
		t.Fatalf("unexpected state: %+v", rec)
	}
}

func TestAlerter_LatestErrorIsReturned(t *testing.T) {
	al := newTestAlerter(&fakeResults{err: errors.New("db gone")}, &memAlerts{}, &memNotifier{}, AlerterConfig{})
	if err := al.scanOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
