package scheduler

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTarget struct {
	enabled bool
	open    int
	pending int
	kicks   atomic.Int32
}

func (f *fakeTarget) Enabled() bool        { return f.enabled }
func (f *fakeTarget) OpenConnections() int { return f.open }
func (f *fakeTarget) PendingAttempts() int { return f.pending }
func (f *fakeTarget) Kick()                { f.kicks.Add(1) }

func newTestWatchdog(t *testing.T, target PollingTarget, schedule string) *Watchdog {
	t.Helper()
	w, err := NewWatchdog(WatchdogConfig{
		Target:   target,
		Schedule: schedule,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewWatchdog: %v", err)
	}
	return w
}

func TestWatchdog_Tick(t *testing.T) {
	tests := []struct {
		name   string
		target *fakeTarget
		kick   bool
	}{
		{"disabled", &fakeTarget{enabled: false}, false},
		{"long-poll open", &fakeTarget{enabled: true, open: 1}, false},
		{"backing off", &fakeTarget{enabled: true, pending: 1}, false},
		{"idle", &fakeTarget{enabled: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatchdog(t, tt.target, "")

			if got := w.Tick(); got != tt.kick {
				t.Errorf("Tick() = %v, want %v", got, tt.kick)
			}
			wantKicks := int32(0)
			if tt.kick {
				wantKicks = 1
			}
			if tt.target.kicks.Load() != wantKicks {
				t.Errorf("target kicked %d times, want %d", tt.target.kicks.Load(), wantKicks)
			}
			if w.Kicks() != int64(wantKicks) {
				t.Errorf("Kicks() = %d", w.Kicks())
			}
		})
	}
}

func TestWatchdog_RunsOnSchedule(t *testing.T) {
	target := &fakeTarget{enabled: true}
	w := newTestWatchdog(t, target, "@every 1s")

	w.Start()
	defer w.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && target.kicks.Load() == 0 {
		time.Sleep(50 * time.Millisecond)
	}
	if target.kicks.Load() == 0 {
		t.Error("watchdog should kick idle target on schedule")
	}
}

func TestNewWatchdog_InvalidSchedule(t *testing.T) {
	_, err := NewWatchdog(WatchdogConfig{Target: &fakeTarget{}, Schedule: "sometimes"})
	if err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestValidateSchedule(t *testing.T) {
	valid := []string{"@every 1m", "@hourly", "*/5 * * * *", "0 9 * * 1-5"}
	for _, expr := range valid {
		if err := ValidateSchedule(expr); err != nil {
			t.Errorf("ValidateSchedule(%q): %v", expr, err)
		}
	}

	invalid := []string{"", "every minute", "* * *", "61 * * * *"}
	for _, expr := range invalid {
		if err := ValidateSchedule(expr); err == nil {
			t.Errorf("ValidateSchedule(%q) should fail", expr)
		}
	}
}

func TestNextCheck(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC)

	next, err := NextCheck("*/5 * * * *", from)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("NextCheck = %v, want %v", next, want)
	}
}
