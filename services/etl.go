package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"arxiv-digest/config"
	"arxiv-digest/models"
	"arxiv-digest/providers"
)

// insertBatchSize ist die Batch-Größe für Paper-Inserts.
const insertBatchSize = 100

// RunReport sammelt die Zähler eines Laufs für Logging und Exit-Status.
type RunReport struct {
	Fetched          int `json:"fetched"`
	Discarded        int `json:"discarded"`
	Inserted         int `json:"inserted"`
	Skipped          int `json:"skipped"`
	SummarizedOK     int `json:"summarized_ok"`
	SummarizedFailed int `json:"summarized_failed"`
	Backfilled       int `json:"backfilled"`
}

// ETLService orchestriert Extraktion, Dedup und Upsert der Paper.
type ETLService struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *zap.Logger
	Provider providers.Provider
}

// NewETLService erstellt eine neue Instanz des ETLService.
func NewETLService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, provider providers.Provider) *ETLService {
	return &ETLService{Config: cfg, DB: db, Logger: logger, Provider: provider}
}

// Run verarbeitet alle Tage des aufgelösten Datumsfensters: holt die Paper
// der Quelle, dedupliziert sie über Kategorien und Tage hinweg und schreibt
// neue Datensätze in den Store. Erster Fund gewinnt; vorhandene Zeilen
// werden nie überschrieben.
func (s *ETLService) Run(ctx context.Context, spec RunSpec) (*RunReport, error) {
	dates, err := ResolveDates(spec, time.Now())
	if err != nil {
		return nil, err
	}

	report := &RunReport{}
	unique := make(map[string]*models.Paper) // De-Duplizierung über den Lauf

	for _, day := range dates {
		papers, discarded, err := s.Provider.FetchDay(ctx, day)
		if err != nil {
			// Ein verlorener Tag bricht den Lauf nicht ab; bereits geholte
			// Tage werden trotzdem gespeichert.
			s.Logger.Error("Tag konnte nicht geholt werden",
				zap.String("provider", s.Provider.Name()),
				zap.String("day", day.Format("2006-01-02")), zap.Error(err))
			continue
		}
		report.Fetched += len(papers)
		report.Discarded += discarded

		for _, paper := range papers {
			if _, exists := unique[paper.ArxivID]; !exists {
				unique[paper.ArxivID] = paper
			}
		}
	}

	batch := make([]*models.Paper, 0, len(unique))
	for _, paper := range unique {
		batch = append(batch, paper)
	}

	inserted, skipped, err := s.Upsert(batch)
	if err != nil {
		return report, err
	}
	report.Inserted = inserted
	report.Skipped = skipped + (report.Fetched - len(batch)) // Quell-Duplikate zählen als skipped

	s.Logger.Info("ETL-Lauf abgeschlossen",
		zap.Int("fetched", report.Fetched),
		zap.Int("discarded", report.Discarded),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// Upsert schreibt neue Paper in den Store. Vorhandene arxiv_ids werden
// übersprungen; die Unique-Constraint des Stores ist der finale Schiedsrichter,
// eine Constraint-Verletzung durch einen parallelen Lauf wird damit still zu
// einem Skip statt zu einem Fehler.
func (s *ETLService) Upsert(papers []*models.Paper) (inserted, skipped int, err error) {
	if len(papers) == 0 {
		return 0, 0, nil
	}

	result := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "arxiv_id"}},
		DoNothing: true,
	}).CreateInBatches(papers, insertBatchSize)
	if result.Error != nil {
		return 0, 0, fmt.Errorf("paper-insert fehlgeschlagen: %w", result.Error)
	}

	inserted = int(result.RowsAffected)
	skipped = len(papers) - inserted
	return inserted, skipped, nil
}
