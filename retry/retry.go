package retry

import (
	"context"
	"time"
)

// Policy beschreibt eine begrenzte Wiederholung mit exponentiellem Backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default ist die Standard-Policy für externe HTTP-Aufrufe.
var Default = Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

// Do führt fn aus und wiederholt bei Fehlern bis MaxAttempts erreicht ist.
// fn meldet über retryable, ob der Fehler transient ist; permanente Fehler
// brechen sofort ab. Der letzte Fehler wird zurückgegeben.
func (p Policy) Do(ctx context.Context, fn func() (retryable bool, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == attempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}
