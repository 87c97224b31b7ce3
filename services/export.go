package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"arxiv-digest/models"
)

// defaultDigestLimit ist die Anzahl der Paper im Tages-Digest, wenn der
// Aufrufer keine nennt.
const defaultDigestLimit = 5

// DigestEntry ist ein Paper des Tages-Digests mit seiner abgeschlossenen
// Summary, flach für den Export serialisiert.
type DigestEntry struct {
	ArxivID        string   `json:"arxiv_id"`
	Title          string   `json:"title"`
	Authors        []string `json:"authors"`
	Categories     []string `json:"categories"`
	CategoriesName []string `json:"categories_name"`
	PublishedDate  string   `json:"published_date"`
	AbstractURL    string   `json:"abstract_url"`
	PDFURL         string   `json:"pdf_url,omitempty"`

	BeginnerTitle        string `json:"beginner_title"`
	IntermediateTitle    string `json:"intermediate_title"`
	BeginnerOverview     string `json:"beginner_overview"`
	IntermediateOverview string `json:"intermediate_overview"`
	BeginnerSummary      string `json:"beginner_summary"`
	IntermediateSummary  string `json:"intermediate_summary"`
	Model                string `json:"model,omitempty"`
}

// ExportService stellt den Tages-Digest zusammen: die neuesten Paper eines
// Kalendertags, die eine abgeschlossene Summary haben. Fehlgeschlagene oder
// fehlende Summaries tauchen im Digest nicht auf.
type ExportService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewExportService erstellt eine neue Instanz des ExportService.
func NewExportService(db *gorm.DB, logger *zap.Logger) *ExportService {
	return &ExportService{DB: db, Logger: logger}
}

// DailyDigest liefert bis zu limit Digest-Einträge für den gegebenen
// UTC-Kalendertag, neueste Veröffentlichung zuerst.
func (s *ExportService) DailyDigest(day time.Time, limit int) ([]DigestEntry, error) {
	day = midnightUTC(day)
	if limit <= 0 {
		limit = defaultDigestLimit
	}

	completed := s.DB.Model(&models.Summary{}).
		Select("arxiv_id").
		Where("processing_status = ?", models.StatusCompleted)

	var papers []models.Paper
	err := s.DB.
		Where("published_date >= ? AND published_date < ?", day, day.Add(24*time.Hour)).
		Where("arxiv_id IN (?)", completed).
		Order("published_date desc").
		Limit(limit).
		Find(&papers).Error
	if err != nil {
		return nil, fmt.Errorf("digest-abfrage fehlgeschlagen: %w", err)
	}

	entries := make([]DigestEntry, 0, len(papers))
	for i := range papers {
		paper := &papers[i]
		var summary models.Summary
		if err := s.DB.Where("arxiv_id = ?", paper.ArxivID).First(&summary).Error; err != nil {
			return nil, fmt.Errorf("summary zu %s konnte nicht geladen werden: %w", paper.ArxivID, err)
		}
		entries = append(entries, DigestEntry{
			ArxivID:              paper.ArxivID,
			Title:                paper.Title,
			Authors:              paper.Authors,
			Categories:           paper.Categories,
			CategoriesName:       paper.CategoriesName,
			PublishedDate:        paper.PublishedDate.UTC().Format("2006-01-02"),
			AbstractURL:          paper.AbstractURL,
			PDFURL:               paper.PDFURL,
			BeginnerTitle:        summary.BeginnerTitle,
			IntermediateTitle:    summary.IntermediateTitle,
			BeginnerOverview:     summary.BeginnerOverview,
			IntermediateOverview: summary.IntermediateOverview,
			BeginnerSummary:      summary.BeginnerSummary,
			IntermediateSummary:  summary.IntermediateSummary,
			Model:                summary.Model,
		})
	}

	s.Logger.Info("Tages-Digest zusammengestellt",
		zap.String("day", day.Format("2006-01-02")), zap.Int("entries", len(entries)))
	return entries, nil
}
