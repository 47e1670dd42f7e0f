package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/synermind/synermind/internal/genai"
)

// Retry policy for agent generation calls. Only rate limiting is retried:
// backoff starts at one second and doubles between attempts.
const (
	maxAttempts    = 3
	initialBackoff = time.Second
)

// Fixed user-facing replies for degraded upstream conditions. These are
// returned as normal replies, never as errors, so the person chatting always
// gets something readable.
const (
	// RateLimitApology is returned when retries against rate limiting run out.
	RateLimitApology = "I'm sorry, I'm having trouble keeping up right now. Please give me a moment and try again."
	// AuthErrorReply is returned immediately on credential failures, which
	// retrying cannot fix.
	AuthErrorReply = "I'm sorry, the assistant isn't configured correctly right now. Please let the service operator know."
)

// sleepFunc pauses for the given duration, honoring context cancellation.
// Injectable so tests can observe backoff without waiting.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// callWithRetry runs fn with the retry policy. Rate-limit failures are
// retried with doubling backoff and degrade to RateLimitApology when
// exhausted. Auth failures return AuthErrorReply without a second attempt.
// Any other failure propagates to the caller. degraded is true when the
// reply is one of the fixed fallbacks rather than a real upstream answer;
// degraded replies must never be memoized, or a cleared rate limit or fixed
// credential would keep serving the apology for the cache lifetime.
func callWithRetry(ctx context.Context, sleep sleepFunc, fn func(ctx context.Context) (string, error)) (reply string, degraded bool, err error) {
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, err := fn(ctx)
		if err == nil {
			return reply, false, nil
		}
		if genai.IsAuthError(err) {
			slog.Error("dispatch.callWithRetry: credential failure, not retrying", "error", err)
			return AuthErrorReply, true, nil
		}
		if !genai.IsRateLimitError(err) {
			return "", false, err
		}
		if attempt == maxAttempts {
			slog.Warn("dispatch.callWithRetry: rate limited, retries exhausted", "attempts", attempt)
			return RateLimitApology, true, nil
		}
		slog.Warn("dispatch.callWithRetry: rate limited, backing off", "attempt", attempt, "backoff", backoff)
		if err := sleep(ctx, backoff); err != nil {
			return "", false, err
		}
		backoff *= 2
	}
	// Unreachable: the loop always returns.
	return RateLimitApology, true, nil
}
