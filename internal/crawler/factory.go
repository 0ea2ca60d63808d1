package crawler

import (
	"scholarsift/scholarworker/config"
	"scholarsift/scholarworker/logger"
	"scholarsift/scholarworker/services/cache"
)

// CreateScraper wires a ScholarshipCrawler from the configuration.
// Rendering is enabled only when a ChromeDB address is configured.
func CreateScraper(cfg *config.Config, cacheSvc cache.CacheService) *ScholarshipCrawler {
	var renderer Renderer
	if cfg.ChromeDBAddr != "" {
		renderer = NewBrowserlessRenderer(cfg.ChromeDBAddr, cfg.UserAgent, cfg.RenderTimeout)
		logger.Info("Using ChromeDB renderer at %s", cfg.ChromeDBAddr)
	} else {
		logger.Info("No ChromeDB configured, using static fetch only")
	}

	if !cfg.RespectRobots {
		logger.Debug("robots.txt checks disabled")
	}

	fetcher := NewFetcher(FetcherConfig{
		UserAgent:     cfg.UserAgent,
		RespectRobots: cfg.RespectRobots,
		RequestDelay:  cfg.RequestDelay,
		FetchTimeout:  cfg.FetchTimeout,
		BlockTime:     cfg.RateLimitBlock,
	}, renderer, cacheSvc)

	return NewScholarshipCrawler(fetcher, NewLocator(DefaultKeywords, cfg.MaxBlocks))
}
