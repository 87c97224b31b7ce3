package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arxiv-digest/config"
	"arxiv-digest/retry"
)

// identityResolver lässt Kategorie-Codes unübersetzt.
type identityResolver struct{}

func (identityResolver) Resolve(code string) string { return code }

var testDay = time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)

func feedEntry(arxivID, published string, withPDF bool) string {
	pdfLink := ""
	if withPDF {
		pdfLink = fmt.Sprintf(`<link href="http://arxiv.org/pdf/%s" rel="related" type="application/pdf"/>`, arxivID)
	}
	return fmt.Sprintf(`<entry>
		<id>http://arxiv.org/abs/%s</id>
		<title>Paper %s</title>
		<summary>Abstract %s</summary>
		<published>%s</published>
		<updated>%s</updated>
		<author><name>Doe, Jane</name></author>
		<category term="cs.LG"/>
		<category term="stat.ML"/>
		<link href="http://arxiv.org/abs/%s" rel="alternate" type="text/html"/>
		%s
	</entry>`, arxivID, arxivID, arxivID, published, published, arxivID, pdfLink)
}

func feedXML(entries ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<totalResults>` + strconv.Itoa(len(entries)) + `</totalResults>
	<startIndex>0</startIndex>
	` + strings.Join(entries, "\n") + `
</feed>`
}

func newFetcherForTest(baseURL string, pageSize int) *Fetcher {
	cfg := &config.Config{
		ArxivBaseURL:    baseURL,
		ArxivPageSize:   pageSize,
		ArxivMaxPages:   5,
		ArxivCategories: "cs.LG",
	}
	f := NewFetcher(cfg, zap.NewNop(), identityResolver{})
	f.Retry = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return f
}

func TestFetchDay_ParsesEntries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("search_query"), "cat:cs.LG")
		assert.Contains(t, r.URL.Query().Get("search_query"), "submittedDate:[202506140000 TO 202506142359]")
		fmt.Fprint(w, feedXML(feedEntry("2506.00001v1", "2025-06-14T10:00:00Z", true)))
	}))
	defer ts.Close()

	f := newFetcherForTest(ts.URL, 200)
	papers, discarded, err := f.FetchDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Zero(t, discarded)

	paper := papers[0]
	assert.Equal(t, "2506.00001v1", paper.ArxivID)
	assert.Equal(t, "Paper 2506.00001v1", paper.Title)
	assert.Equal(t, []string{"Doe, Jane"}, paper.Authors)
	assert.Equal(t, []string{"cs.LG", "stat.ML"}, paper.Categories)
	assert.Len(t, paper.CategoriesName, len(paper.Categories))
	assert.Equal(t, "http://arxiv.org/pdf/2506.00001v1", paper.PDFURL)
	assert.Equal(t, "http://arxiv.org/abs/2506.00001v1", paper.AbstractURL)
	assert.Equal(t, testDay, paper.PublishedDate.UTC().Truncate(24*time.Hour))
}

func TestFetchDay_StrictDateFilterDiscardsWrongDays(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, feedXML(
			feedEntry("2506.00001v1", "2025-06-14T10:00:00Z", true),
			feedEntry("2506.00002v1", "2025-06-13T23:59:00Z", true), // falscher Tag
			feedEntry("2506.00003v1", "2025-06-14T00:00:00Z", true),
		))
	}))
	defer ts.Close()

	f := newFetcherForTest(ts.URL, 200)
	papers, discarded, err := f.FetchDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.Len(t, papers, 2)
	assert.Equal(t, 1, discarded)
}

func TestFetchDay_Paginates(t *testing.T) {
	var starts []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		starts = append(starts, start)
		if start == "0" {
			// Volle Seite, es muss eine weitere angefragt werden.
			fmt.Fprint(w, feedXML(
				feedEntry("2506.00001v1", "2025-06-14T10:00:00Z", true),
				feedEntry("2506.00002v1", "2025-06-14T11:00:00Z", true),
			))
			return
		}
		fmt.Fprint(w, feedXML(feedEntry("2506.00003v1", "2025-06-14T12:00:00Z", true)))
	}))
	defer ts.Close()

	f := newFetcherForTest(ts.URL, 2)
	papers, _, err := f.FetchDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.Len(t, papers, 3)
	assert.Equal(t, []string{"0", "2"}, starts)
}

func TestFetchDay_RetriesTransientErrors(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, feedXML(feedEntry("2506.00001v1", "2025-06-14T10:00:00Z", true)))
	}))
	defer ts.Close()

	f := newFetcherForTest(ts.URL, 200)
	papers, _, err := f.FetchDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.Len(t, papers, 1)
	assert.Equal(t, 2, calls)
}

func TestFetchDay_LostPageDoesNotAbortDay(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Erste Seite dauerhaft kaputt, zweite Seite liefert.
		if r.URL.Query().Get("start") == "0" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, feedXML(feedEntry("2506.00001v1", "2025-06-14T10:00:00Z", true)))
	}))
	defer ts.Close()

	f := newFetcherForTest(ts.URL, 2)
	papers, _, err := f.FetchDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestFetchDay_EntryWithoutPDFKeepsEmptyURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, feedXML(feedEntry("2506.00001v1", "2025-06-14T10:00:00Z", false)))
	}))
	defer ts.Close()

	f := newFetcherForTest(ts.URL, 200)
	papers, _, err := f.FetchDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Empty(t, papers[0].PDFURL)
}

func TestBuildQueryURL(t *testing.T) {
	f := newFetcherForTest("http://export.arxiv.org/api/query", 100)
	u := f.buildQueryURL("cs.LG", testDay, 200, 100)
	assert.Contains(t, u, "start=200")
	assert.Contains(t, u, "max_results=100")
	assert.Contains(t, u, "sortBy=submittedDate")
	assert.Contains(t, u, "sortOrder=descending")
	// Das Datumsfenster deckt genau den Zieltag ab.
	assert.Contains(t, u, "202506140000")
	assert.Contains(t, u, "202506142359")
}

func TestExtractArxivID(t *testing.T) {
	assert.Equal(t, "2501.01234v1", extractArxivID("http://arxiv.org/abs/2501.01234v1"))
	assert.Equal(t, "2501.01234v1", extractArxivID("http://arxiv.org/abs/2501.01234v1/"))
	assert.Equal(t, "2501.01234v1", extractArxivID("2501.01234v1"))
}
