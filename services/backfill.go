package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"arxiv-digest/models"
)

// defaultBackfillBatch ist die Batch-Größe, wenn der Aufrufer keine nennt.
const defaultBackfillBatch = 50

// BackfillService trägt fehlende Kategorie-Namen auf Bestandsdaten nach.
// Paper, deren Codes die Taxonomie nicht kennt, bekommen die Codes selbst
// als Namen; eine zweite Runde über dieselben Zeilen gibt es damit nicht.
type BackfillService struct {
	DB       *gorm.DB
	Logger   *zap.Logger
	Taxonomy *Taxonomy
}

// NewBackfillService erstellt eine neue Instanz des BackfillService.
func NewBackfillService(db *gorm.DB, logger *zap.Logger, taxonomy *Taxonomy) *BackfillService {
	return &BackfillService{DB: db, Logger: logger, Taxonomy: taxonomy}
}

// Run übersetzt batchweise alle Paper ohne Kategorie-Namen, bis keine
// unübersetzten Zeilen mehr übrig sind. Rückgabe ist die Anzahl der
// aktualisierten Paper.
func (s *BackfillService) Run(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultBackfillBatch
	}

	updated := 0
	// Keyset-Pagination über die ID, und Paper ganz ohne Kategorie-Codes
	// bleiben außen vor: deren Namensliste wäre nach dem Update wieder leer,
	// die Zeile würde das Leer-Prädikat bei jedem Lauf erneut treffen.
	var lastID uint
	for {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		var papers []models.Paper
		err := s.DB.
			Where("categories_name IS NULL OR categories_name IN ('', '[]', 'null')").
			Where("categories IS NOT NULL AND categories NOT IN ('', '[]', 'null')").
			Where("id > ?", lastID).
			Order("id asc").
			Limit(batchSize).
			Find(&papers).Error
		if err != nil {
			return updated, fmt.Errorf("backfill-abfrage fehlgeschlagen: %w", err)
		}
		if len(papers) == 0 {
			break
		}

		for i := range papers {
			paper := &papers[i]
			lastID = paper.ID
			names := make([]string, 0, len(paper.Categories))
			for _, code := range paper.Categories {
				names = append(names, s.Taxonomy.Resolve(code))
			}
			paper.CategoriesName = names

			err := s.DB.Model(paper).Update("categories_name", paper.CategoriesName).Error
			if err != nil {
				return updated, fmt.Errorf("backfill-update für %s fehlgeschlagen: %w", paper.ArxivID, err)
			}
			updated++
		}

		s.Logger.Info("Backfill-Batch verarbeitet",
			zap.Int("batch", len(papers)), zap.Int("total", updated))
	}

	return updated, nil
}
