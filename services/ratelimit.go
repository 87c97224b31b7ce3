package services

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateBudget erzwingt die beiden unabhängigen Budgets des
// Summarization-Service: ein kurzes Fenster (Requests pro Minute), auf das
// der Aufrufer blockierend wartet, und ein Tagesbudget, dessen Erschöpfung
// ein harter Stopp für den Rest des Laufs ist.
type RateBudget struct {
	minute *rate.Limiter

	mu       sync.Mutex
	dayLimit int
	dayUsed  int
}

// NewRateBudget erstellt ein Budget mit perMinute Requests/Minute und
// perDay Requests pro Lauf-Tag.
func NewRateBudget(perMinute, perDay int) *RateBudget {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateBudget{
		minute:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		dayLimit: perDay,
	}
}

// Acquire reserviert einen Request. Auf das Minuten-Budget wird gewartet
// (schlafen bis verfügbar); ist das Tagesbudget aufgebraucht, kommt sofort
// ErrRateBudgetExhausted zurück, damit der Aufrufer "kurz warten" von
// "Budget für heute weg" unterscheiden kann. Das Tagesbudget wird erst nach
// erfolgreichem Warten verbraucht: ein während des Wartens abgebrochener
// Context verbrennt kein Kontingent.
func (b *RateBudget) Acquire(ctx context.Context) error {
	if b.exhausted() {
		return ErrRateBudgetExhausted
	}

	if err := b.minute.Wait(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dayLimit > 0 && b.dayUsed >= b.dayLimit {
		return ErrRateBudgetExhausted
	}
	b.dayUsed++
	return nil
}

func (b *RateBudget) exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dayLimit > 0 && b.dayUsed >= b.dayLimit
}

// Remaining gibt das restliche Tagesbudget zurück (-1 = unbegrenzt).
func (b *RateBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dayLimit <= 0 {
		return -1
	}
	remaining := b.dayLimit - b.dayUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
