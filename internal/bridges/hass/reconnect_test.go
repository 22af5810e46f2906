package hass

import (
	"testing"
	"time"
)

func TestBackoffDelaySequence(t *testing.T) {
	base := 1 * time.Second
	cap := 30 * time.Second

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	for attempt, expect := range want {
		if got := backoffDelay(base, cap, attempt); got != expect {
			t.Errorf("backoffDelay(attempt=%d) = %s, want %s", attempt, got, expect)
		}
	}
}

func TestBackoffDelayCapHolds(t *testing.T) {
	base := 1 * time.Second
	cap := 30 * time.Second

	for attempt := 4; attempt < 20; attempt++ {
		if got := backoffDelay(base, cap, attempt); got != cap {
			t.Errorf("backoffDelay(attempt=%d) = %s, want cap %s", attempt, got, cap)
		}
	}
}

func TestBackoffDelayCustomTuning(t *testing.T) {
	got := backoffDelay(500*time.Millisecond, 5*time.Second, 0)
	if got != 1*time.Second {
		t.Errorf("backoffDelay(base=500ms, attempt=0) = %s, want 1s", got)
	}
	got = backoffDelay(500*time.Millisecond, 5*time.Second, 10)
	if got != 5*time.Second {
		t.Errorf("backoffDelay far past cap = %s, want 5s", got)
	}
}
