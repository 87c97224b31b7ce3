package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arxiv-digest/config"
	"arxiv-digest/models"
)

// fakeProvider liefert vorbereitete Paper pro Tag.
type fakeProvider struct {
	byDay     map[string][]*models.Paper
	discarded int
	err       error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchDay(ctx context.Context, day time.Time) ([]*models.Paper, int, error) {
	if p.err != nil {
		return nil, 0, p.err
	}
	return p.byDay[day.Format("2006-01-02")], p.discarded, nil
}

func testPaper(arxivID string, published time.Time) *models.Paper {
	return &models.Paper{
		ArxivID:       arxivID,
		Title:         "Paper " + arxivID,
		Abstract:      "Abstract " + arxivID,
		Authors:       []string{"Doe, Jane"},
		Categories:    []string{"cs.LG"},
		PublishedDate: published,
		PDFURL:        "http://arxiv.org/pdf/" + arxivID,
		ExtractedAt:   time.Now().UTC(),
	}
}

func newETLForTest(t *testing.T, provider *fakeProvider) *ETLService {
	t.Helper()
	return NewETLService(&config.Config{}, newTestDB(t), zap.NewNop(), provider)
}

func TestETLRun_InsertsNewPapers(t *testing.T) {
	yesterday := midnightUTC(time.Now()).AddDate(0, 0, -1)
	provider := &fakeProvider{byDay: map[string][]*models.Paper{
		yesterday.Format("2006-01-02"): {
			testPaper("2506.00001v1", yesterday),
			testPaper("2506.00002v1", yesterday),
		},
	}}
	svc := newETLForTest(t, provider)

	report, err := svc.Run(context.Background(), RunSpec{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 0, report.Skipped)

	var count int64
	svc.DB.Model(&models.Paper{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestETLRun_DeduplicatesAcrossDays(t *testing.T) {
	yesterday := midnightUTC(time.Now()).AddDate(0, 0, -1)
	dayBefore := yesterday.AddDate(0, 0, -1)
	// Dasselbe Paper taucht an beiden Tagen auf (Cross-Listing).
	provider := &fakeProvider{byDay: map[string][]*models.Paper{
		dayBefore.Format("2006-01-02"): {testPaper("2506.00001v1", dayBefore)},
		yesterday.Format("2006-01-02"): {
			testPaper("2506.00001v1", dayBefore),
			testPaper("2506.00002v1", yesterday),
		},
	}}
	svc := newETLForTest(t, provider)

	report, err := svc.Run(context.Background(), RunSpec{DaysBack: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
}

func TestETLRun_ExistingRowsAreSkippedNotOverwritten(t *testing.T) {
	yesterday := midnightUTC(time.Now()).AddDate(0, 0, -1)
	provider := &fakeProvider{byDay: map[string][]*models.Paper{
		yesterday.Format("2006-01-02"): {testPaper("2506.00001v1", yesterday)},
	}}
	svc := newETLForTest(t, provider)

	existing := testPaper("2506.00001v1", yesterday)
	existing.Title = "Original Title"
	require.NoError(t, svc.DB.Create(existing).Error)

	report, err := svc.Run(context.Background(), RunSpec{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 1, report.Skipped)

	var stored models.Paper
	require.NoError(t, svc.DB.Where("arxiv_id = ?", "2506.00001v1").First(&stored).Error)
	assert.Equal(t, "Original Title", stored.Title)
}

func TestETLRun_ReportsDiscarded(t *testing.T) {
	yesterday := midnightUTC(time.Now()).AddDate(0, 0, -1)
	provider := &fakeProvider{
		byDay: map[string][]*models.Paper{
			yesterday.Format("2006-01-02"): {testPaper("2506.00001v1", yesterday)},
		},
		discarded: 3,
	}
	svc := newETLForTest(t, provider)

	report, err := svc.Run(context.Background(), RunSpec{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Discarded)
	assert.Equal(t, 1, report.Inserted)
}

func TestETLRun_InvalidSpecFailsBeforeFetching(t *testing.T) {
	svc := newETLForTest(t, &fakeProvider{})
	_, err := svc.Run(context.Background(), RunSpec{Date: "not-a-date"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDateSpec)
}

func TestUpsert_EmptyBatch(t *testing.T) {
	svc := newETLForTest(t, &fakeProvider{})
	inserted, skipped, err := svc.Upsert(nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Zero(t, skipped)
}
