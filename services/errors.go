package services

import "errors"

var (
	// ErrInvalidDateSpec meldet eine unbrauchbare Datumsangabe; der Lauf
	// bricht ab, bevor irgendein I/O passiert.
	ErrInvalidDateSpec = errors.New("invalid date spec")

	// ErrRateBudgetExhausted meldet, dass das Tagesbudget für den
	// Summarization-Service aufgebraucht ist. Weitere Kandidaten werden
	// im laufenden Run nicht mehr angefasst.
	ErrRateBudgetExhausted = errors.New("daily rate budget exhausted")
)
