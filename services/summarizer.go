package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"arxiv-digest/config"
	"arxiv-digest/models"
	"arxiv-digest/pdftext"
)

// maxPromptRunes begrenzt den extrahierten Text im Prompt.
const maxPromptRunes = 30000

// Fehlerklassen, wie sie im error_detail einer fehlgeschlagenen Summary landen.
const (
	errClassDocumentFetch = "document fetch failed"
	errClassExtraction    = "text extraction failed"
	errClassGeneration    = "generation failed"
)

// CustomTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
type CustomTransport struct {
	Transport http.RoundTripper
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "arxiv-digest/1.0 (research paper pipeline)")
	return t.Transport.RoundTrip(req)
}

// documentClient wird für PDF-Downloads verwendet.
var documentClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &CustomTransport{
		Transport: http.DefaultTransport,
	},
}

// Generator ist der Summarization-Service hinter dem Rate-Budget.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Archiver legt geholte PDFs optional im Objekt-Storage ab.
type Archiver interface {
	ArchivePDF(ctx context.Context, key string, data []byte) (string, error)
}

// GeneratedFields sind die sechs Pflichtfelder einer Modell-Antwort.
type GeneratedFields struct {
	BeginnerTitle        string `json:"beginner_title"`
	IntermediateTitle    string `json:"intermediate_title"`
	BeginnerOverview     string `json:"beginner_overview"`
	IntermediateOverview string `json:"intermediate_overview"`
	BeginnerSummary      string `json:"beginner_summary"`
	IntermediateSummary  string `json:"intermediate_summary"`
}

// SummaryService fährt pro Kandidat die Kette
// Dokument holen -> Text extrahieren -> generieren -> Ergebnis speichern.
// Jeder Kandidat endet entweder als completed mit allen sechs Feldern oder
// als failed mit Fehlerklasse; Zwischenstände werden nie persistiert.
type SummaryService struct {
	Config    *config.Config
	DB        *gorm.DB
	Logger    *zap.Logger
	Generator Generator
	Budget    *RateBudget
	Archiver  Archiver
}

// NewSummaryService erstellt eine neue Instanz des SummaryService.
func NewSummaryService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, gen Generator, budget *RateBudget, archiver Archiver) *SummaryService {
	return &SummaryService{Config: cfg, DB: db, Logger: logger, Generator: gen, Budget: budget, Archiver: archiver}
}

// SelectCandidates liefert die neuesten Paper ohne abgeschlossene Summary,
// die ein abrufbares Dokument haben. limit ist die harte Obergrenze des
// Aufrufers; Rate-Limits setzt der Selector selbst nicht durch.
func (s *SummaryService) SelectCandidates(limit int) ([]models.Paper, error) {
	completed := s.DB.Model(&models.Summary{}).
		Select("arxiv_id").
		Where("processing_status = ?", models.StatusCompleted)

	var papers []models.Paper
	err := s.DB.
		Where("pdf_url <> ''").
		Where("arxiv_id NOT IN (?)", completed).
		Order("published_date desc").
		Limit(limit).
		Find(&papers).Error
	if err != nil {
		return nil, fmt.Errorf("kandidaten-abfrage fehlgeschlagen: %w", err)
	}
	return papers, nil
}

// ProcessPending verarbeitet bis zu limit Kandidaten. Ein erschöpftes
// Tagesbudget beendet die Schleife; die restlichen Kandidaten bleiben
// unangetastet und werden nicht als failed markiert.
func (s *SummaryService) ProcessPending(ctx context.Context, limit int) (completed, failed int, err error) {
	candidates, err := s.SelectCandidates(limit)
	if err != nil {
		return 0, 0, err
	}
	s.Logger.Info("Starte Summarization", zap.Int("candidates", len(candidates)))

	for i := range candidates {
		if ctx.Err() != nil {
			return completed, failed, ctx.Err()
		}

		ok, procErr := s.processCandidate(ctx, &candidates[i])
		if procErr != nil {
			if errors.Is(procErr, ErrRateBudgetExhausted) {
				s.Logger.Warn("Tagesbudget erschöpft, restliche Kandidaten bleiben liegen",
					zap.Int("remaining", len(candidates)-i))
				break
			}
			// Nur Context-Fehler kommen hier an; nichts wurde persistiert.
			return completed, failed, procErr
		}
		if ok {
			completed++
		} else {
			failed++
		}
	}

	s.Logger.Info("Summarization abgeschlossen",
		zap.Int("completed", completed), zap.Int("failed", failed))
	return completed, failed, nil
}

// processCandidate fährt die Verarbeitungskette für ein einzelnes Paper.
// Rückgabe true = completed-Zeile geschrieben, false = failed-Zeile.
// Nur ErrRateBudgetExhausted wird als Fehler nach oben gereicht.
func (s *SummaryService) processCandidate(ctx context.Context, paper *models.Paper) (bool, error) {
	log := s.Logger.With(zap.String("arxiv_id", paper.ArxivID))

	pdf, err := s.fetchDocument(ctx, paper.PDFURL)
	if err != nil {
		// Kein Retry innerhalb desselben Laufs; der nächste Lauf darf es
		// erneut versuchen, weil nur completed-Zeilen den Selector blocken.
		log.Warn("Dokument-Download fehlgeschlagen", zap.Error(err))
		return false, s.persistFailed(paper.ArxivID, errClassDocumentFetch, err, "")
	}

	archiveURL := s.archive(ctx, log, paper.ArxivID, pdf)

	text, err := pdftext.ExtractLeading(pdf, s.Config.SummaryMaxPages)
	if err != nil {
		log.Warn("Text-Extraktion fehlgeschlagen", zap.Error(err))
		return false, s.persistFailed(paper.ArxivID, errClassExtraction, err, archiveURL)
	}
	text = TruncateRunes(CleanExtractedText(text), maxPromptRunes)

	if err := s.Budget.Acquire(ctx); err != nil {
		if errors.Is(err, ErrRateBudgetExhausted) {
			return false, err
		}
		return false, err // Context abgelaufen während des Wartens
	}

	raw, err := s.Generator.Generate(ctx, buildPrompt(paper, text))
	if err != nil {
		log.Warn("Generierung fehlgeschlagen", zap.Error(err))
		return false, s.persistFailed(paper.ArxivID, errClassGeneration, err, archiveURL)
	}

	fields, err := parseGenerated(raw)
	if err != nil {
		log.Warn("Antwort unbrauchbar", zap.Error(err))
		return false, s.persistFailed(paper.ArxivID, errClassGeneration, err, archiveURL)
	}

	summary := &models.Summary{
		ArxivID:              paper.ArxivID,
		BeginnerTitle:        fields.BeginnerTitle,
		IntermediateTitle:    fields.IntermediateTitle,
		BeginnerOverview:     fields.BeginnerOverview,
		IntermediateOverview: fields.IntermediateOverview,
		BeginnerSummary:      fields.BeginnerSummary,
		IntermediateSummary:  fields.IntermediateSummary,
		ProcessingStatus:     models.StatusCompleted,
		Model:                s.Generator.Model(),
		ArchiveURL:           archiveURL,
	}
	if err := s.upsertSummary(summary); err != nil {
		log.Error("Summary konnte nicht gespeichert werden", zap.Error(err))
		return false, nil
	}

	log.Info("Paper zusammengefasst", zap.String("model", summary.Model))
	return true, nil
}

// fetchDocument lädt das PDF mit begrenztem Timeout.
func (s *SummaryService) fetchDocument(ctx context.Context, rawURL string) ([]byte, error) {
	timeout := time.Duration(s.Config.DocumentTimeout) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := documentClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// archive legt das PDF im Objekt-Storage ab, falls konfiguriert.
// Archivierungsfehler sind nie fatal für den Kandidaten.
func (s *SummaryService) archive(ctx context.Context, log *zap.Logger, arxivID string, pdf []byte) string {
	if s.Archiver == nil {
		return ""
	}
	url, err := s.Archiver.ArchivePDF(ctx, arxivID+".pdf", pdf)
	if err != nil {
		log.Warn("PDF-Archivierung fehlgeschlagen", zap.Error(err))
		return ""
	}
	return url
}

// persistFailed schreibt die terminale failed-Zeile eines Kandidaten.
func (s *SummaryService) persistFailed(arxivID, class string, cause error, archiveURL string) error {
	summary := &models.Summary{
		ArxivID:          arxivID,
		ProcessingStatus: models.StatusFailed,
		ErrorDetail:      fmt.Sprintf("%s: %v", class, cause),
		Model:            s.Generator.Model(),
		ArchiveURL:       archiveURL,
	}
	if err := s.upsertSummary(summary); err != nil {
		s.Logger.Error("failed-Zeile konnte nicht gespeichert werden",
			zap.String("arxiv_id", arxivID), zap.Error(err))
	}
	return nil
}

// upsertSummary schreibt die Summary unter der Unique-Constraint auf
// arxiv_id: ein erneuter Versuch aktualisiert die bestehende Zeile, statt
// eine zweite anzulegen.
func (s *SummaryService) upsertSummary(summary *models.Summary) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "arxiv_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"beginner_title", "intermediate_title",
			"beginner_overview", "intermediate_overview",
			"beginner_summary", "intermediate_summary",
			"processing_status", "error_detail", "model", "archive_url",
			"updated_at",
		}),
	}).Create(summary).Error
}

// buildPrompt kombiniert Titel, Abstract und extrahierten Text zu der
// Generierungs-Anfrage mit striktem JSON-Ausgabeformat.
func buildPrompt(paper *models.Paper, text string) string {
	var b strings.Builder
	b.WriteString("You are a science communicator. Summarize the following research paper ")
	b.WriteString("for two audiences: beginners (no ML background) and intermediate readers ")
	b.WriteString("(CS students). Respond with a single JSON object containing exactly these ")
	b.WriteString("keys, all non-empty strings: beginner_title, intermediate_title, ")
	b.WriteString("beginner_overview (one sentence), intermediate_overview (one sentence), ")
	b.WriteString("beginner_summary (3-5 paragraphs), intermediate_summary (3-5 paragraphs). ")
	b.WriteString("No markdown, no text outside the JSON object.\n\n")
	b.WriteString("Title: ")
	b.WriteString(paper.Title)
	b.WriteString("\n\nAbstract: ")
	b.WriteString(paper.Abstract)
	b.WriteString("\n\nPaper text (leading pages):\n")
	b.WriteString(text)
	return b.String()
}

// parseGenerated parst die Modell-Antwort und erzwingt alle sechs Felder.
// Fehlende oder leere Felder sind ein Generierungsfehler, kein Teilerfolg.
func parseGenerated(raw string) (*GeneratedFields, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("antwort enthält kein JSON-Objekt")
	}

	var fields GeneratedFields
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("antwort konnte nicht geparst werden: %w", err)
	}

	missing := func(name, value string) error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("feld %s fehlt oder ist leer", name)
		}
		return nil
	}
	for name, value := range map[string]string{
		"beginner_title":        fields.BeginnerTitle,
		"intermediate_title":    fields.IntermediateTitle,
		"beginner_overview":     fields.BeginnerOverview,
		"intermediate_overview": fields.IntermediateOverview,
		"beginner_summary":      fields.BeginnerSummary,
		"intermediate_summary":  fields.IntermediateSummary,
	} {
		if err := missing(name, value); err != nil {
			return nil, err
		}
	}
	return &fields, nil
}
