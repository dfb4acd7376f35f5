package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
)

// Policy bounds how often and how fast a failing call is repeated.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// FromConfig builds the policy a queue applies to failed items.
func FromConfig(cfg config.FailureConfig) Policy {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay.Std(),
		MaxDelay:    cfg.MaxDelay.Std(),
		Multiplier:  2.0,
	}
	if cfg.Mode != config.FailureModeRetry {
		p.MaxAttempts = 1
	}
	return p
}

// IsRetryable decides whether an error is worth another attempt.
type IsRetryable func(error) bool

// Always retries every error.
func Always(error) bool { return true }

// DefaultIsRetryable retries transient network failures.
func DefaultIsRetryable(err error) bool {
	return matchesAny(err,
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"too many requests",
		"eof",
	)
}

// TransactionIsRetryable retries nonce races and transient network failures.
func TransactionIsRetryable(err error) bool {
	return matchesAny(err,
		"nonce too low",
		"replacement transaction underpriced",
		"already known",
		"connection refused",
		"timeout",
		"network is unreachable",
	)
}

func matchesAny(err error, patterns ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. A nil isRetryable retries every error.
func Do(ctx context.Context, p Policy, fn func() error, isRetryable IsRetryable) error {
	if isRetryable == nil {
		isRetryable = Always
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		log.Debugf("Attempt %d/%d failed, retrying in %v: %v", attempt, attempts, delay, err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx), notify)
	if err == nil {
		return nil
	}
	if attempts > 1 && attempt == attempts {
		return fmt.Errorf("all %d attempts failed, last error: %w", attempts, err)
	}
	return err
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
