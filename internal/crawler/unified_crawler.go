package crawler

import (
	"context"
	"io"

	"scholarsift/scholarworker/logger"
)

// ScholarshipCrawler turns a listing URL into scholarship records
type ScholarshipCrawler struct {
	fetcher *Fetcher
	locator *Locator
}

// NewScholarshipCrawler creates a crawler
func NewScholarshipCrawler(fetcher *Fetcher, locator *Locator) *ScholarshipCrawler {
	return &ScholarshipCrawler{fetcher: fetcher, locator: locator}
}

var _ Scraper = (*ScholarshipCrawler)(nil)

// Scrape fetches url and extracts its records. A rendered page that yields
// no records is fetched again statically, since some sites serve their
// listings only to plain clients.
func (c *ScholarshipCrawler) Scrape(ctx context.Context, url string) ([]Scholarship, error) {
	log := logger.ForCrawler(url)

	doc, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	records, err := c.Extract(doc.Body, url)
	if err != nil && !doc.Rendered {
		return nil, err
	}
	if len(records) > 0 || !doc.Rendered {
		return records, nil
	}

	log.Info().Msg("rendered page yielded no records, retrying with static fetch")
	body, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.Extract(body, url)
}

// Extract locates candidate blocks in an HTML body and assembles records
// from them in document order.
func (c *ScholarshipCrawler) Extract(body io.Reader, sourceURL string) ([]Scholarship, error) {
	doc, err := createDocument(body, sourceURL)
	if err != nil {
		return nil, err
	}

	blocks, tier := c.locator.Locate(doc, sourceURL)
	scrapedAt := now().UTC()

	records := make([]Scholarship, 0, len(blocks))
	for _, block := range blocks {
		record := Assemble(block)
		if record == nil {
			continue
		}
		record.ScrapedAt = scrapedAt
		records = append(records, *record)
	}

	logger.ForCrawler(sourceURL).Debug().
		Str("tier", tier).
		Int("blocks", len(blocks)).
		Int("records", len(records)).
		Msg("extracted records")
	return records, nil
}
