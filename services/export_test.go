package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arxiv-digest/models"
)

var digestDay = time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)

func seedDigestPaper(t *testing.T, svc *ExportService, arxivID string, published time.Time, status string) {
	t.Helper()
	require.NoError(t, svc.DB.Create(testPaper(arxivID, published)).Error)
	if status == "" {
		return
	}
	summary := &models.Summary{ArxivID: arxivID, ProcessingStatus: status}
	if status == models.StatusCompleted {
		summary.BeginnerTitle = "BT " + arxivID
		summary.IntermediateTitle = "IT " + arxivID
		summary.BeginnerOverview = "BO"
		summary.IntermediateOverview = "IO"
		summary.BeginnerSummary = "BS"
		summary.IntermediateSummary = "IS"
		summary.Model = "fake-model"
	}
	require.NoError(t, svc.DB.Create(summary).Error)
}

func TestDailyDigest_OnlyCompletedPapersOfTheDay(t *testing.T) {
	svc := NewExportService(newTestDB(t), zap.NewNop())

	seedDigestPaper(t, svc, "a1", digestDay.Add(10*time.Hour), models.StatusCompleted)
	seedDigestPaper(t, svc, "a2", digestDay.Add(8*time.Hour), models.StatusFailed)
	seedDigestPaper(t, svc, "a3", digestDay.Add(6*time.Hour), "")
	seedDigestPaper(t, svc, "a4", digestDay.AddDate(0, 0, -1), models.StatusCompleted) // falscher Tag

	entries, err := svc.DailyDigest(digestDay, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a1", entries[0].ArxivID)
	assert.Equal(t, "BT a1", entries[0].BeginnerTitle)
	assert.Equal(t, "2025-06-14", entries[0].PublishedDate)
	assert.Equal(t, "fake-model", entries[0].Model)
}

func TestDailyDigest_NewestFirstWithLimit(t *testing.T) {
	svc := NewExportService(newTestDB(t), zap.NewNop())

	seedDigestPaper(t, svc, "early", digestDay.Add(2*time.Hour), models.StatusCompleted)
	seedDigestPaper(t, svc, "late", digestDay.Add(20*time.Hour), models.StatusCompleted)
	seedDigestPaper(t, svc, "noon", digestDay.Add(12*time.Hour), models.StatusCompleted)

	entries, err := svc.DailyDigest(digestDay, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "late", entries[0].ArxivID)
	assert.Equal(t, "noon", entries[1].ArxivID)
}

func TestDailyDigest_EmptyDay(t *testing.T) {
	svc := NewExportService(newTestDB(t), zap.NewNop())
	entries, err := svc.DailyDigest(digestDay, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
