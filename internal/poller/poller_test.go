package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	ticks chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ticks: make(chan struct{}, 16)}
}

func (r *recorder) UpdateAllServices(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "services")
}

func (r *recorder) UpdateAllRunsState(ctx context.Context) {
	r.mu.Lock()
	r.calls = append(r.calls, "runs")
	r.mu.Unlock()
	select {
	case r.ticks <- struct{}{}:
	default:
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// everyMillis fires every few milliseconds; cron descriptors round up to a second.
type everyMillis struct{}

func (everyMillis) Next(t time.Time) time.Time { return t.Add(5 * time.Millisecond) }

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{DefaultSchedule, false},
		{"@every 2m", false},
		{"@hourly", false},
		{"*/5 * * * *", false},
		{"", true},
		{"every minute", true},
		{"* * *", true},
	}
	for _, tt := range tests {
		_, err := ParseSchedule(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSchedule(%q) err = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestParseSchedule_Every(t *testing.T) {
	sched, err := ParseSchedule("@every 45s")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := sched.Next(base).Sub(base); got != 45*time.Second {
		t.Errorf("interval = %v, want 45s", got)
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	if _, err := New(newRecorder(), "not a schedule", nil); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestTick_Order(t *testing.T) {
	rec := newRecorder()
	var hooked []string
	p, err := New(rec, DefaultSchedule, nil, WithAfterTick(func(ctx context.Context) error {
		hooked = rec.snapshot()
		return nil
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	want := []string{"services", "runs"}
	if got := rec.snapshot(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if len(hooked) != 2 {
		t.Errorf("hook ran before the refresh finished: saw %v", hooked)
	}
}

func TestTick_HookError(t *testing.T) {
	boom := errors.New("disk full")
	p, err := New(newRecorder(), DefaultSchedule, nil, WithAfterTick(func(ctx context.Context) error { return boom }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Tick(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Tick err = %v, want %v", err, boom)
	}
}

func TestStartStop(t *testing.T) {
	rec := newRecorder()
	p, err := New(rec, "", nil, WithSchedule(everyMillis{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case <-rec.ticks:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d did not run", i+1)
		}
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Start returned %v after Stop", err)
	}
}

func TestStart_ContextCancel(t *testing.T) {
	p, err := New(newRecorder(), DefaultSchedule, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start err = %v, want context.Canceled", err)
	}
}
