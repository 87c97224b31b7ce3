package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"arxiv-digest/config"
	"arxiv-digest/models"
	"arxiv-digest/retry"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// CategoryResolver übersetzt Kategorie-Codes in lesbare Namen.
type CategoryResolver interface {
	Resolve(code string) string
}

// Fetcher kapselt die Logik zur Interaktion mit der arXiv-API.
type Fetcher struct {
	Config   *config.Config
	Logger   *zap.Logger
	Resolver CategoryResolver
	Retry    retry.Policy
}

// NewFetcher erstellt eine neue Instanz des arXiv-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger, resolver CategoryResolver) *Fetcher {
	policy := retry.Default
	if cfg.FetchMaxRetries > 0 {
		policy.MaxAttempts = cfg.FetchMaxRetries
	}
	return &Fetcher{Config: cfg, Logger: logger, Resolver: resolver, Retry: policy}
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return "arxiv"
}

// FetchDay holt alle Paper des gegebenen UTC-Kalendertags über alle
// konfigurierten Kategorien. Der Datumsfilter der API ist nur ungefähr,
// deshalb wird jeder Eintrag zusätzlich strikt auf das Zieldatum geprüft;
// die Anzahl der dabei verworfenen Einträge wird mitgeliefert.
func (f *Fetcher) FetchDay(ctx context.Context, day time.Time) ([]*models.Paper, int, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	log := f.Logger.With(zap.String("day", day.Format("2006-01-02")))

	var papers []*models.Paper
	discarded := 0

	for _, category := range f.Config.Categories() {
		catPapers, catDiscarded, err := f.fetchCategory(ctx, log, category, day)
		if err != nil {
			// Einzelne Kategorien dürfen den Lauf nicht abbrechen.
			log.Error("Kategorie-Abfrage fehlgeschlagen, fahre mit nächster fort",
				zap.String("category", category), zap.Error(err))
			continue
		}
		papers = append(papers, catPapers...)
		discarded += catDiscarded
	}

	log.Info("arXiv-Abfrage abgeschlossen",
		zap.Int("papers", len(papers)), zap.Int("discarded_wrong_date", discarded))
	return papers, discarded, nil
}

// fetchCategory paginiert durch die Ergebnisse einer Kategorie für einen Tag.
func (f *Fetcher) fetchCategory(ctx context.Context, log *zap.Logger, category string, day time.Time) ([]*models.Paper, int, error) {
	pageSize := f.Config.ArxivPageSize
	var papers []*models.Paper
	discarded := 0

	for page := 0; page < f.Config.ArxivMaxPages; page++ {
		offset := page * pageSize
		queryURL := f.buildQueryURL(category, day, offset, pageSize)
		log.Debug("Rufe arXiv-API auf", zap.String("url", queryURL))

		feed, err := f.fetchPage(ctx, queryURL)
		if err != nil {
			// Seite ist nach erschöpften Retries verloren; der nächste Offset
			// ist trotzdem bekannt, also weiter mit der Folgeseite.
			log.Warn("Seite nach Retries verworfen",
				zap.String("category", category), zap.Int("offset", offset), zap.Error(err))
			continue
		}

		for _, entry := range feed.Entries {
			paper, err := f.parseEntry(&entry)
			if err != nil {
				log.Warn("Eintrag konnte nicht geparst werden", zap.String("entry_id", entry.ID), zap.Error(err))
				continue
			}
			if !paper.PublishedDate.UTC().Truncate(24 * time.Hour).Equal(day) {
				discarded++
				continue
			}
			papers = append(papers, paper)
		}

		if len(feed.Entries) < pageSize {
			break
		}
	}
	return papers, discarded, nil
}

// fetchPage holt und dekodiert eine einzelne Ergebnisseite unter der
// Retry-Policy. Netzwerkfehler, 429 und 5xx gelten als transient; eine
// nicht dekodierbare Seite nicht.
func (f *Fetcher) fetchPage(ctx context.Context, queryURL string) (*Feed, error) {
	var feed Feed
	err := f.Retry.Do(ctx, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
		if err != nil {
			return false, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return true, fmt.Errorf("arxiv query failed: status %d", resp.StatusCode)
		default:
			return false, fmt.Errorf("arxiv query failed: status %d", resp.StatusCode)
		}

		feed = Feed{}
		if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
			return false, fmt.Errorf("feed konnte nicht dekodiert werden: %w", err)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// buildQueryURL baut die URL für eine Kategorie-Abfrage mit Datumsfenster.
func (f *Fetcher) buildQueryURL(category string, day time.Time, start, maxResults int) string {
	window := fmt.Sprintf("submittedDate:[%s0000 TO %s2359]",
		day.Format("20060102"), day.Format("20060102"))
	query := fmt.Sprintf("cat:%s AND %s", category, window)

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	return f.Config.ArxivBaseURL + "?" + params.Encode()
}

// parseEntry wandelt einen Atom-Eintrag in unser Paper-Modell um.
func (f *Fetcher) parseEntry(entry *Entry) (*models.Paper, error) {
	published, err := time.Parse(time.RFC3339, entry.Published)
	if err != nil {
		return nil, fmt.Errorf("ungültiges published-Datum %q: %w", entry.Published, err)
	}
	updated := published
	if entry.Updated != "" {
		if t, err := time.Parse(time.RFC3339, entry.Updated); err == nil {
			updated = t
		}
	}

	paper := &models.Paper{
		ArxivID:       extractArxivID(entry.ID),
		Title:         strings.TrimSpace(entry.Title),
		Abstract:      strings.TrimSpace(entry.Summary),
		PublishedDate: published,
		UpdatedDate:   updated,
		AbstractURL:   entry.ID,
		ExtractedAt:   time.Now().UTC(),
	}
	if paper.ArxivID == "" {
		return nil, fmt.Errorf("eintrag ohne arXiv-ID: %q", entry.ID)
	}

	for _, author := range entry.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			paper.Authors = append(paper.Authors, name)
		}
	}

	pairs := make([]models.CategoryPair, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term == "" {
			continue
		}
		pairs = append(pairs, models.CategoryPair{Code: cat.Term, Name: f.Resolver.Resolve(cat.Term)})
	}
	paper.SetCategories(pairs)

	for _, link := range entry.Links {
		if link.Type == "application/pdf" {
			paper.PDFURL = link.Href
			break
		}
	}

	return paper, nil
}

// extractArxivID schneidet die ID aus der Abstract-URL
// (http://arxiv.org/abs/2501.01234v1 -> 2501.01234v1).
func extractArxivID(entryID string) string {
	trimmed := strings.TrimSuffix(entryID, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return strings.TrimSpace(trimmed)
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed[idx+1:], "abs/"))
}
