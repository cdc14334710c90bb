// ABOUTME: Backoff helpers shared by the LLM retry loop and the Qdrant readiness wait
// ABOUTME: Delays double per attempt with +/-25% jitter and never exceed MaxBackoff
package util

import (
	"context"
	"math/rand/v2"
	"time"
)

// MaxBackoff caps any single delay before jitter
const MaxBackoff = 30 * time.Second

// maxShift keeps 1<<attempt inside int64 range
const maxShift = 30

// CalculateBackoff returns base * 2^attempt, capped at MaxBackoff, with
// jitter. Attempt 0 or a zero base means no wait.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	backoff := baseDelay * time.Duration(1<<uint(min(attempt, maxShift)))
	if backoff <= 0 || backoff > MaxBackoff {
		backoff = MaxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
