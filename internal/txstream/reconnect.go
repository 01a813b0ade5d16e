package txstream

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// reconnectPolicy hands out exponential reconnection delays,
// baseDelay × 2^(attempt-1), for at most maxAttempts consecutive attempts.
//
// It is not safe for concurrent use; the client guards it with its mutex.
type reconnectPolicy struct {
	maxAttempts int
	attempts    int
	backoff     *backoff.ExponentialBackOff
}

func newReconnectPolicy(baseDelay time.Duration, maxAttempts int) *reconnectPolicy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxInterval(baseDelay, maxAttempts)
	b.Reset()

	return &reconnectPolicy{
		maxAttempts: maxAttempts,
		backoff:     b,
	}
}

// maxInterval returns baseDelay × 2^maxAttempts, saturating instead of
// overflowing, so the backoff cap never shortens a scheduled delay.
func maxInterval(baseDelay time.Duration, maxAttempts int) time.Duration {
	if baseDelay <= 0 {
		return 0
	}

	if maxAttempts >= 62 || baseDelay > time.Duration(math.MaxInt64>>maxAttempts) {
		return time.Duration(math.MaxInt64)
	}

	return baseDelay << maxAttempts
}

// next consumes one attempt and returns its delay. ok is false once the
// attempt budget is spent, in which case the counter is left untouched.
func (p *reconnectPolicy) next() (delay time.Duration, ok bool) {
	if p.attempts >= p.maxAttempts {
		return 0, false
	}

	p.attempts++
	return p.backoff.NextBackOff(), true
}

// reset clears the attempt counter and restarts the delay sequence.
func (p *reconnectPolicy) reset() {
	p.attempts = 0
	p.backoff.Reset()
}
