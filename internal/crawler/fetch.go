package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"scholarsift/scholarworker/helpers"
	"scholarsift/scholarworker/logger"
	apperrors "scholarsift/scholarworker/pkg/errors"
	"scholarsift/scholarworker/services/cache"
)

const blockedKeyPrefix = "blocked:"

// RawDocument is the body of a fetched page
type RawDocument struct {
	URL      string
	Body     io.Reader
	Rendered bool
}

// FetcherConfig holds the politeness and timeout settings of a Fetcher
type FetcherConfig struct {
	UserAgent     string
	RespectRobots bool
	RequestDelay  time.Duration
	FetchTimeout  time.Duration
	BlockTime     time.Duration
}

// Fetcher retrieves pages politely: robots.txt is consulted first, requests
// to one host are spaced out, and hosts that answered 429 are left alone
// for BlockTime.
type Fetcher struct {
	cfg      FetcherConfig
	client   *http.Client
	renderer Renderer
	robots   *RobotsChecker
	limiter  *HostLimiter
	cacheSvc cache.CacheService
}

// NewFetcher creates a fetcher. renderer and cacheSvc may be nil.
func NewFetcher(cfg FetcherConfig, renderer Renderer, cacheSvc cache.CacheService) *Fetcher {
	client := &http.Client{}
	limiter := NewHostLimiter(cfg.RequestDelay)

	f := &Fetcher{
		cfg:      cfg,
		client:   client,
		renderer: renderer,
		limiter:  limiter,
		cacheSvc: cacheSvc,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(client, cfg.UserAgent, cacheSvc, limiter)
		if cfg.FetchTimeout > 0 {
			f.robots.Timeout = cfg.FetchTimeout
		}
	}
	return f
}

// HasRenderer reports whether dynamic rendering is available
func (f *Fetcher) HasRenderer() bool {
	return f.renderer != nil
}

// CheckPolicy returns a policy_denied error when robots.txt disallows url
func (f *Fetcher) CheckPolicy(ctx context.Context, url string) error {
	if f.robots == nil {
		return nil
	}
	allowed, err := f.robots.Allowed(ctx, url)
	if err != nil {
		return apperrors.NewValidation(url, err.Error())
	}
	if !allowed {
		return apperrors.NewPolicyDenied(url, f.cfg.UserAgent)
	}
	return nil
}

// Fetch checks the crawl policy, then renders the page, falling back to a
// static GET when rendering is unavailable or fails.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*RawDocument, error) {
	if err := f.CheckPolicy(ctx, url); err != nil {
		return nil, err
	}

	var renderErr error
	if f.HasRenderer() {
		body, err := f.Render(ctx, url)
		if err == nil {
			return &RawDocument{URL: url, Body: body, Rendered: true}, nil
		}
		renderErr = err
		logger.ForCrawler(url).Warn().Err(err).Msg("render failed, falling back to static fetch")
	}

	body, err := f.Get(ctx, url)
	if err != nil {
		if renderErr != nil {
			return nil, fmt.Errorf("%w (render: %v)", err, renderErr)
		}
		return nil, err
	}
	return &RawDocument{URL: url, Body: body}, nil
}

// Render loads url through the renderer. The per-host delay applies.
func (f *Fetcher) Render(ctx context.Context, url string) (io.Reader, error) {
	if f.renderer == nil {
		return nil, apperrors.NewConfiguration("no renderer configured", nil)
	}
	if err := f.wait(ctx, url); err != nil {
		return nil, err
	}

	body, err := f.renderer.Render(ctx, url)
	if err != nil {
		return nil, classify(url, "render failed", err)
	}
	return body, nil
}

// Get performs a plain HTTP GET of url, converted to UTF-8
func (f *Fetcher) Get(ctx context.Context, url string) (io.Reader, error) {
	if err := f.wait(ctx, url); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	body, err := helpers.FetchPage(ctx, f.client, url, f.cfg.UserAgent)
	if err != nil {
		if errors.Is(err, helpers.ErrRateLimited) {
			f.block(url)
			return nil, apperrors.NewRateLimit(url, f.cfg.BlockTime)
		}
		return nil, classify(url, "fetch failed", err)
	}
	return body, nil
}

// wait enforces the host block and the per-host delay
func (f *Fetcher) wait(ctx context.Context, url string) error {
	host := helpers.HostOf(url)
	if f.blocked(host) {
		return apperrors.NewRateLimit(url, f.cfg.BlockTime)
	}
	if err := f.limiter.Wait(ctx, host); err != nil {
		return classify(url, "waiting for rate limiter", err)
	}
	return nil
}

func (f *Fetcher) blocked(host string) bool {
	if f.cacheSvc == nil || host == "" {
		return false
	}
	_, err := f.cacheSvc.Get(blockedKeyPrefix + host)
	return err == nil
}

func (f *Fetcher) block(url string) {
	host := helpers.HostOf(url)
	if f.cacheSvc == nil || host == "" || f.cfg.BlockTime <= 0 {
		return
	}
	seconds := fmt.Sprintf("%d", int(f.cfg.BlockTime/time.Second))
	if err := f.cacheSvc.Set(blockedKeyPrefix+host, []byte(seconds), f.cfg.BlockTime); err != nil {
		logger.ForCache().WithError(apperrors.NewCache(host, "set failed", err)).Debug().Msg("failed to set rate limit block")
		return
	}
	logger.ForFetcher().Warn().Str("host", host).Dur("block", f.cfg.BlockTime).Msg("host rate limited us, backing off")
}

// classify maps transport errors onto timeout or network errors
func classify(url, message string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.NewTimeout(url, message, err)
	}
	return apperrors.NewNetwork(url, message, err)
}
