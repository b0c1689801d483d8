package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSuggestedDelayParsesExplicitHint(t *testing.T) {
	cases := []struct {
		msg  string
		want time.Duration
		ok   bool
	}{
		{"429 RESOURCE_EXHAUSTED: please retry in 12.0s", 12 * time.Second, true},
		{"quota exceeded, retryDelay: \"7s\"", 7 * time.Second, true},
		{"Retry in 2.5s", 2500 * time.Millisecond, true},
		{"permission denied", 0, false},
	}
	for _, tc := range cases {
		got, ok := SuggestedDelay(errors.New(tc.msg))
		if ok != tc.ok || got != tc.want {
			t.Errorf("SuggestedDelay(%q) = (%v, %v), want (%v, %v)", tc.msg, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNextDelayHintDominatesExponential(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, BaseDelay: time.Second, DelayHint: SuggestedDelay}
	err := errors.New("429 RESOURCE_EXHAUSTED: retry in 12.0s")

	// Exponential alone would suggest 1s on the first attempt; the hint plus
	// one second of slack must win.
	if d := p.NextDelay(1, err); d < 13*time.Second {
		t.Fatalf("NextDelay(1) = %v, want >= 13s", d)
	}
	// Far enough into the schedule the exponential takes over.
	if d := p.NextDelay(6, err); d != 32*time.Second {
		t.Fatalf("NextDelay(6) = %v, want 32s", d)
	}
}

func TestNextDelayExponentialWithoutHint(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, BaseDelay: time.Second, DelayHint: SuggestedDelay}
	err := errors.New("429 too many requests")
	for attempt, want := range map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		4: 8 * time.Second,
	} {
		if d := p.NextDelay(attempt, err); d != want {
			t.Errorf("NextDelay(%d) = %v, want %v", attempt, d, want)
		}
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, Retryable: IsRateLimited}
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("invalid credentials")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected immediate failure, got err=%v calls=%d", err, calls)
	}
}

func TestDoRetriesRateLimitUntilCeiling(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Retryable: IsRateLimited}
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("RESOURCE_EXHAUSTED")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 attempts, got err=%v calls=%d", err, calls)
	}
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, Retryable: IsRateLimited}
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("RESOURCE_EXHAUSTED")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got err=%v calls=%d", err, calls)
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")) {
		t.Error("expected 429 to be rate limited")
	}
	if IsRateLimited(errors.New("model not found")) {
		t.Error("not-found must not be treated as rate limited")
	}
	if IsRateLimited(nil) {
		t.Error("nil error must not be rate limited")
	}
}
