package services

import (
	"fmt"
	"time"
)

// testWindowDays ist das Fenster für Testläufe (letzte Woche).
const testWindowDays = 7

// RunSpec beschreibt den Modus eines Laufs. Ohne gesetzte Felder wird
// "gestern" verarbeitet; arXiv publiziert mit einem Tag Verzug, "heute"
// ist daher nie ein gültiges Ziel.
type RunSpec struct {
	// Date ist ein explizites Zieldatum im Format YYYY-MM-DD.
	Date string
	// DaysBack erweitert das Fenster auf die N Tage vor gestern.
	DaysBack int
	// Test entspricht DaysBack=7.
	Test bool
}

// ResolveDates löst einen RunSpec in eine geordnete, deduplizierte Liste
// von Kalendertagen auf (älteste zuerst, alle <= gestern in UTC).
func ResolveDates(spec RunSpec, now time.Time) ([]time.Time, error) {
	yesterday := midnightUTC(now).AddDate(0, 0, -1)

	if spec.Date != "" {
		target, err := time.ParseInLocation("2006-01-02", spec.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: %q lässt sich nicht als YYYY-MM-DD lesen", ErrInvalidDateSpec, spec.Date)
		}
		if target.After(yesterday) {
			return nil, fmt.Errorf("%w: %q liegt nach dem letzten Publikationstag %s",
				ErrInvalidDateSpec, spec.Date, yesterday.Format("2006-01-02"))
		}
		return []time.Time{target}, nil
	}

	daysBack := spec.DaysBack
	if spec.Test {
		daysBack = testWindowDays
	}
	if daysBack < 0 {
		return nil, fmt.Errorf("%w: days-back darf nicht negativ sein (%d)", ErrInvalidDateSpec, daysBack)
	}

	dates := make([]time.Time, 0, daysBack+1)
	for d := daysBack; d >= 0; d-- {
		dates = append(dates, yesterday.AddDate(0, 0, -d))
	}
	return dates, nil
}

// midnightUTC normalisiert einen Zeitpunkt auf 00:00 UTC desselben Tages.
func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
