package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"scholarsift/scholarworker/helpers"
	"scholarsift/scholarworker/internal/crawler"
	"scholarsift/scholarworker/logger"
	apperrors "scholarsift/scholarworker/pkg/errors"
	"scholarsift/scholarworker/services/publisher"
)

// Failure records why one source URL produced no records
type Failure struct {
	URL string
	Err error
}

// Retryable reports whether a later run may succeed where this one failed
func (f Failure) Retryable() bool {
	var se *apperrors.ScrapeError
	return errors.As(f.Err, &se) && se.IsRetryable()
}

// Result is the outcome of one batch. Failures tell an all-failed batch
// apart from one that legitimately found nothing.
type Result struct {
	Records  []crawler.Scholarship
	Failures []Failure
}

// Worker scrapes the seed URLs and publishes the records
type Worker struct {
	ctx           context.Context
	scraper       crawler.Scraper
	urls          []string
	publisher     publisher.Publisher
	logger        helpers.LoggerInterface
	crawlInterval time.Duration
	logSamples    bool
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	scraper crawler.Scraper,
	urls []string,
	pub publisher.Publisher,
	logger helpers.LoggerInterface,
	crawlInterval time.Duration,
) *Worker {
	return &Worker{
		ctx:           ctx,
		scraper:       scraper,
		urls:          urls,
		publisher:     pub,
		logger:        logger,
		crawlInterval: crawlInterval,
	}
}

// LogSamples makes the worker log the first record of every source
func (w *Worker) LogSamples(enabled bool) {
	w.logSamples = enabled
}

// Start runs a batch every crawl interval until the context is cancelled
func (w *Worker) Start() {
	ticker := time.NewTicker(w.crawlInterval)
	defer ticker.Stop()

	for {
		w.RunOnce()

		select {
		case <-w.ctx.Done():
			logger.ForWorker().Info().Msg("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce scrapes every seed URL, publishes the records and trims the streams
func (w *Worker) RunOnce() Result {
	start := time.Now()
	result := w.ScrapeAll(w.ctx, w.urls)

	published := w.publish(result.Records)

	if err := w.publisher.TrimStreams(); err != nil {
		w.logger.LogError("StreamTrimming", err)
	}

	retryable, denied := 0, 0
	for _, f := range result.Failures {
		if f.Retryable() {
			retryable++
		}
		if apperrors.IsType(f.Err, apperrors.ErrorTypePolicyDenied) {
			denied++
		}
	}

	w.logger.LogInfo("batch finished in %s: %d records from %d urls, %d published, %d failed (%d retryable, %d denied by robots.txt)",
		time.Since(start).Round(time.Millisecond), len(result.Records), len(w.urls), published, len(result.Failures), retryable, denied)
	return result
}

// ScrapeAll runs one scrape per URL concurrently and waits for all of them.
// A failing URL is reported in Failures and never affects the others.
func (w *Worker) ScrapeAll(ctx context.Context, urls []string) Result {
	type outcome struct {
		records []crawler.Scholarship
		err     error
	}
	outcomes := make([]outcome, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			records, err := w.scrapeOne(ctx, url)
			outcomes[i] = outcome{records: records, err: err}
		}(i, url)
	}
	wg.Wait()

	result := Result{Records: []crawler.Scholarship{}}
	for i, o := range outcomes {
		if o.err != nil {
			w.logger.LogError(urls[i], o.err)
			result.Failures = append(result.Failures, Failure{URL: urls[i], Err: o.err})
			continue
		}
		result.Records = append(result.Records, o.records...)
	}
	return result
}

// scrapeOne turns a panic inside the pipeline into an error
func (w *Worker) scrapeOne(ctx context.Context, url string) (records []crawler.Scholarship, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ForCrawler(url).Error().Str("stack", string(debug.Stack())).Msg("scrape panicked")
			records, err = nil, fmt.Errorf("scrape %s panicked: %v", url, r)
		}
	}()
	return w.scraper.Scrape(ctx, url)
}

// publish sends each record to the publisher and returns how many succeeded
func (w *Worker) publish(records []crawler.Scholarship) int {
	published := 0
	sampled := make(map[string]bool)

	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			w.logger.LogError(record.SourceName, err)
			continue
		}

		if err := w.publisher.Publish(record.SourceName, data); err != nil {
			w.logger.LogError(record.SourceName, err)
			continue
		}
		published++

		if w.logSamples && !sampled[record.SourceName] {
			sampled[record.SourceName] = true
			w.logger.LogInfo("scraped record: %s", string(data))
		}
	}
	return published
}
