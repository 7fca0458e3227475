package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/domain"
)

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		name string
		err  error
		want time.Duration
		kind string
	}{
		{"authentication", domain.ErrAuthentication, 20 * time.Second, FailureAuthentication},
		{"wrapped authentication", fmt.Errorf("sign in: %w", domain.ErrAuthentication), 20 * time.Second, FailureAuthentication},
		{"unavailable", fmt.Errorf("get tasks: %w", domain.ErrTemporarilyUnavailable), 20 * time.Second, FailureUnavailable},
		{"transport", errors.New("dial tcp: connection refused"), time.Second, FailureTransport},
		{"context", context.DeadlineExceeded, time.Second, FailureTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Delay(tt.err); got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
			if got := FailureKind(tt.err); got != tt.kind {
				t.Errorf("FailureKind() = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestBackoff_WithDefaults(t *testing.T) {
	b := Backoff{Transport: 5 * time.Millisecond}.withDefaults()

	if b.Transport != 5*time.Millisecond {
		t.Errorf("explicit value should be kept, got %v", b.Transport)
	}
	if b.Authentication != defaultAuthBackoff || b.Unavailable != defaultUnavailableBackoff {
		t.Errorf("zero fields should get defaults, got %+v", b)
	}
}

func TestSleep_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if sleep(ctx, 10*time.Second) {
		t.Error("sleep should report interruption")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("sleep should return promptly after cancel")
	}
}

func TestSleep_Completes(t *testing.T) {
	if !sleep(context.Background(), 5*time.Millisecond) {
		t.Error("sleep should complete without cancel")
	}
}
