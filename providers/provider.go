package providers

import (
	"context"
	"time"

	"arxiv-digest/models"
)

// Provider ist das Interface, das jede Metadaten-Quelle implementieren muss.
type Provider interface {
	// FetchDay holt alle am gegebenen Kalendertag (UTC) veröffentlichten Paper
	// und gibt zusätzlich die Anzahl der wegen abweichendem Datum verworfenen
	// Einträge zurück.
	FetchDay(ctx context.Context, day time.Time) ([]*models.Paper, int, error)

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "arxiv").
	Name() string
}
