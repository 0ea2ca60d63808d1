package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"scholarsift/scholarworker/config"
	apperrors "scholarsift/scholarworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCrawler(renderer Renderer) *ScholarshipCrawler {
	return NewScholarshipCrawler(NewFetcher(testFetcherConfig(), renderer, nil), NewLocator(nil, 0))
}

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	now = func() time.Time { return at }
	t.Cleanup(func() { now = time.Now })
}

func TestScrapeStaticOnly(t *testing.T) {
	at := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	fixClock(t, at)
	srv := siteServer(t, "", staticPage(daadHTML), nil)

	records, err := newTestCrawler(nil).Scrape(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "DAAD Masters Grant", record.Name)
	assert.Equal(t, srv.URL+"/apply", record.ApplicationLink)
	assert.Equal(t, srv.URL+"/x", record.SourceURL)
	assert.Equal(t, at, record.ScrapedAt)
}

func TestScrapeUsesRenderedPage(t *testing.T) {
	var hits int32
	srv := siteServer(t, "", staticPage("<html><body>nothing here</body></html>"), &hits)
	renderer := &stubRenderer{body: daadHTML}

	records, err := newTestCrawler(renderer).Scrape(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "DAAD Masters Grant", records[0].Name)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestScrapeFallsBackWhenRenderYieldsNothing(t *testing.T) {
	var hits int32
	srv := siteServer(t, "", staticPage(daadHTML), &hits)
	renderer := &stubRenderer{body: "<html><body><p>Loading...</p></body></html>"}

	records, err := newTestCrawler(renderer).Scrape(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "DAAD Masters Grant", records[0].Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestScrapeFallsBackWhenRenderFails(t *testing.T) {
	srv := siteServer(t, "", staticPage(daadHTML), nil)
	renderer := &stubRenderer{err: errors.New("renderer unavailable")}

	records, err := newTestCrawler(renderer).Scrape(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestScrapeNoCandidates(t *testing.T) {
	srv := siteServer(t, "", staticPage("<html><body><p>About us</p></body></html>"), nil)

	records, err := newTestCrawler(nil).Scrape(context.Background(), srv.URL+"/about")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScrapePolicyDenied(t *testing.T) {
	srv := siteServer(t, "User-agent: *\nDisallow: /\n", staticPage(daadHTML), nil)

	_, err := newTestCrawler(nil).Scrape(context.Background(), srv.URL+"/x")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePolicyDenied))
}

func TestScrapeCapsBlocks(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, `<div class="scholarship"><h3>Scholarship Program Number %02d</h3></div>`, i)
	}
	b.WriteString("</body></html>")
	srv := siteServer(t, "", staticPage(b.String()), nil)

	records, err := newTestCrawler(nil).Scrape(context.Background(), srv.URL+"/list")
	require.NoError(t, err)
	require.Len(t, records, DefaultMaxBlocks)
	assert.Equal(t, "Scholarship Program Number 00", records[0].Name)
	assert.Equal(t, "Scholarship Program Number 09", records[9].Name)
}

func TestExtractStripsScripts(t *testing.T) {
	html := `<html><body><div class="award">
		<script>var deadline = "2020-01-01";</script>
		<h2>Research Excellence Award</h2>
		<style>.x { color: red }</style>
		<p>Open to PhD candidates.</p>
	</div></body></html>`

	records, err := newTestCrawler(nil).Extract(strings.NewReader(html), "https://example.org/awards")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Description, "var deadline")
	assert.NotContains(t, records[0].Description, "color: red")
	assert.Equal(t, DegreePhD, records[0].DegreeLevel)
}

func TestCreateScraper(t *testing.T) {
	cfg := &config.Config{
		UserAgent:     testAgent,
		RespectRobots: true,
		FetchTimeout:  time.Second,
		RenderTimeout: time.Second,
		MaxBlocks:     3,
	}

	scraper := CreateScraper(cfg, nil)
	assert.False(t, scraper.fetcher.HasRenderer())
	assert.NotNil(t, scraper.fetcher.robots)
	assert.Equal(t, 3, scraper.locator.MaxBlocks)

	cfg.ChromeDBAddr = "http://chromedb:3000"
	cfg.RespectRobots = false
	scraper = CreateScraper(cfg, nil)
	assert.True(t, scraper.fetcher.HasRenderer())
	assert.Nil(t, scraper.fetcher.robots)
}
