package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// recordingSleep captures backoff delays without waiting them out.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestCallWithRetrySuccessFirstAttempt(t *testing.T) {
	sleeper := &recordingSleep{}
	calls := 0
	reply, degraded, err := callWithRetry(context.Background(), sleeper.sleep, func(ctx context.Context) (string, error) {
		calls++
		return "hello", nil
	})
	if err != nil || reply != "hello" {
		t.Fatalf("expected success, got (%q, %v)", reply, err)
	}
	if degraded {
		t.Error("a real upstream reply must not be marked degraded")
	}
	if calls != 1 || len(sleeper.delays) != 0 {
		t.Errorf("expected 1 call and no sleeps, got calls=%d sleeps=%d", calls, len(sleeper.delays))
	}
}

func TestCallWithRetryRateLimitRecovers(t *testing.T) {
	sleeper := &recordingSleep{}
	calls := 0
	reply, degraded, err := callWithRetry(context.Background(), sleeper.sleep, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("429: rate limit exceeded")
		}
		return "finally", nil
	})
	if err != nil || reply != "finally" {
		t.Fatalf("expected recovery, got (%q, %v)", reply, err)
	}
	if degraded {
		t.Error("a recovered reply must not be marked degraded")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(sleeper.delays))
	}
	for i, d := range want {
		if sleeper.delays[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, sleeper.delays[i], d)
		}
	}
}

func TestCallWithRetryRateLimitExhausted(t *testing.T) {
	sleeper := &recordingSleep{}
	calls := 0
	reply, degraded, err := callWithRetry(context.Background(), sleeper.sleep, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("rate limit exceeded")
	})
	if err != nil {
		t.Fatalf("exhaustion must degrade to an apology, not an error: %v", err)
	}
	if reply != RateLimitApology {
		t.Errorf("expected apology, got %q", reply)
	}
	if !degraded {
		t.Error("the apology must be marked degraded")
	}
	if calls != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, calls)
	}
	if len(sleeper.delays) != maxAttempts-1 {
		t.Errorf("expected %d sleeps, got %d", maxAttempts-1, len(sleeper.delays))
	}
}

func TestCallWithRetryAuthErrorNoRetry(t *testing.T) {
	sleeper := &recordingSleep{}
	calls := 0
	reply, degraded, err := callWithRetry(context.Background(), sleeper.sleep, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("401 Unauthorized: invalid api key")
	})
	if err != nil {
		t.Fatalf("auth failure must degrade to a fixed reply, not an error: %v", err)
	}
	if reply != AuthErrorReply {
		t.Errorf("expected auth reply, got %q", reply)
	}
	if !degraded {
		t.Error("the auth reply must be marked degraded")
	}
	if calls != 1 {
		t.Errorf("auth errors must not be retried, got %d attempts", calls)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("auth errors must not back off, got %d sleeps", len(sleeper.delays))
	}
}

func TestCallWithRetryUnknownErrorPropagates(t *testing.T) {
	sleeper := &recordingSleep{}
	calls := 0
	_, _, err := callWithRetry(context.Background(), sleeper.sleep, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("connection reset by peer")
	})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected propagated error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("unknown errors must not be retried, got %d attempts", calls)
	}
}

func TestCallWithRetryContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := callWithRetry(ctx, sleepWithContext, func(ctx context.Context) (string, error) {
		return "", errors.New("rate limit exceeded")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
