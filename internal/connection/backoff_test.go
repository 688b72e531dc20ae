package connection

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(base, max, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelay_NeverExceedsCap(t *testing.T) {
	for attempt := 0; attempt < 64; attempt++ {
		if got := backoffDelay(250*time.Millisecond, 10*time.Second, attempt); got > 10*time.Second {
			t.Fatalf("attempt %d: delay %v exceeds cap", attempt, got)
		}
	}
}

func TestReconnectState(t *testing.T) {
	var r reconnectState
	now := time.Now()

	if d := r.schedule(time.Second, 3*time.Second, now); d != time.Second {
		t.Errorf("first delay = %v, want 1s", d)
	}
	if d := r.schedule(time.Second, 3*time.Second, now); d != 2*time.Second {
		t.Errorf("second delay = %v, want 2s", d)
	}
	if d := r.schedule(time.Second, 3*time.Second, now); d != 3*time.Second {
		t.Errorf("third delay = %v, want 3s (capped)", d)
	}
	if r.attempt != 3 {
		t.Errorf("attempt = %d, want 3", r.attempt)
	}
	if !r.lastAttemptAt.Equal(now) {
		t.Errorf("lastAttemptAt = %v, want %v", r.lastAttemptAt, now)
	}

	r.reset()
	if r.attempt != 0 || r.nextDelay != 0 {
		t.Errorf("after reset: attempt=%d nextDelay=%v", r.attempt, r.nextDelay)
	}
}
