package ai

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy is a reusable retry-with-backoff combinator. Delay for attempt
// k (1-based) is BaseDelay * 2^(k-1); when DelayHint extracts a suggested
// wait from the error, the larger of the two wins, with one extra second of
// slack on top of the hint. Providers frequently tell the caller exactly how
// long to wait and that hint must dominate a blind exponential schedule.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
	DelayHint   func(error) (time.Duration, bool)
}

// NextDelay computes the wait before retrying after the given attempt failed.
func (p RetryPolicy) NextDelay(attempt int, err error) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if p.DelayHint != nil {
		if hint, ok := p.DelayHint(err); ok {
			if suggested := hint + time.Second; suggested > d {
				return suggested
			}
		}
	}
	return d
}

// Do runs fn until it succeeds, a non-retryable error occurs, the attempt
// ceiling is hit, or ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) || attempt == p.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.NextDelay(attempt, err)):
		}
	}
	return err
}

var (
	retryInRe    = regexp.MustCompile(`[Rr]etry in ([0-9]+(?:\.[0-9]+)?)\s*s`)
	retryDelayRe = regexp.MustCompile(`retryDelay[^0-9]*([0-9]+(?:\.[0-9]+)?)s`)
)

// SuggestedDelay extracts an explicit wait hint from a provider error
// message ("retry in 12.0s" or an embedded retryDelay field).
func SuggestedDelay(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	msg := err.Error()
	for _, re := range []*regexp.Regexp{retryInRe, retryDelayRe} {
		if m := re.FindStringSubmatch(msg); m != nil {
			if secs, perr := strconv.ParseFloat(m[1], 64); perr == nil {
				return time.Duration(secs * float64(time.Second)), true
			}
		}
	}
	return 0, false
}

// IsRateLimited reports whether the error message signals quota exhaustion.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "429") ||
		strings.Contains(strings.ToLower(msg), "quota") ||
		strings.Contains(strings.ToLower(msg), "rate limit")
}
