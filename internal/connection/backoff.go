package connection

import "time"

// backoffDelay returns base * 2^attempt, capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	wait := base
	for i := 0; i < attempt; i++ {
		wait *= 2
		if max > 0 && wait >= max {
			return max
		}
	}
	if max > 0 && wait > max {
		return max
	}
	return wait
}

// reconnectState tracks consecutive failed attempts. Reset on connected.
type reconnectState struct {
	attempt       int
	lastAttemptAt time.Time
	nextDelay     time.Duration
}

// schedule computes the delay for the current attempt and advances the counter.
func (r *reconnectState) schedule(base, max time.Duration, now time.Time) time.Duration {
	r.nextDelay = backoffDelay(base, max, r.attempt)
	r.attempt++
	r.lastAttemptAt = now
	return r.nextDelay
}

func (r *reconnectState) reset() {
	r.attempt = 0
	r.nextDelay = 0
}
