package supervisor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/opencode-remote/internal/config"
)

const baseReconnectDelay = time.Second

// reconnectBackOff doubles the delay on every attempt, capped by the
// settings ceiling. The ceiling is re-read on each NextBackOff call so a
// reconnect-mode change applies to a reconnect loop already in flight.
type reconnectBackOff struct {
	settings config.Settings
	attempt  int
}

var _ backoff.BackOff = (*reconnectBackOff)(nil)

func newReconnectBackOff(settings config.Settings) *reconnectBackOff {
	return &reconnectBackOff{settings: settings}
}

func (b *reconnectBackOff) NextBackOff() time.Duration {
	b.attempt++
	return reconnectDelay(b.attempt, b.settings.ReconnectMaxDelay())
}

// Reset is called when a stream delivers its first event, so the next
// failure starts the ladder over from the base delay.
func (b *reconnectBackOff) Reset() {
	b.attempt = 0
}

// reconnectDelay computes the delay for the n-th consecutive failed
// attempt: base * 2^(n-1), capped at maxDelay.
func reconnectDelay(attempt int, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseReconnectDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay || d <= 0 {
			return maxDelay
		}
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// retryREST wraps a short-lived REST call in a few jittered retries.
// Preload calls are best-effort, so the budget is deliberately small.
func retryREST(ctx context.Context, fn func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = time.Second
	return backoff.Retry(fn, backoff.WithContext(backoff.WithMaxRetries(exp, 2), ctx))
}
