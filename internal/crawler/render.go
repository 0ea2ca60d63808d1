package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scholarsift/scholarworker/logger"
)

// Renderer returns the HTML of a page after its scripts have run
type Renderer interface {
	Render(ctx context.Context, url string) (io.Reader, error)
}

// renderStrategy is one way of asking the browser service for a page
type renderStrategy struct {
	name      string
	waitUntil string
}

// Network idle first so client-side rendered listings are complete,
// then a plain load event for pages that never go idle.
var renderStrategies = []renderStrategy{
	{name: "networkidle-content", waitUntil: "networkidle0"},
	{name: "basic-content", waitUntil: "load"},
}

// BrowserlessRenderer renders pages through a browserless compatible
// ChromeDB service using its /content endpoint.
type BrowserlessRenderer struct {
	Addr      string
	UserAgent string
	Timeout   time.Duration
	client    *http.Client
}

// NewBrowserlessRenderer creates a renderer for the service at addr
func NewBrowserlessRenderer(addr, userAgent string, timeout time.Duration) *BrowserlessRenderer {
	return &BrowserlessRenderer{
		Addr:      strings.TrimRight(addr, "/"),
		UserAgent: userAgent,
		Timeout:   timeout,
		client:    &http.Client{},
	}
}

// Render tries each strategy in turn within the overall render timeout
func (r *BrowserlessRenderer) Render(ctx context.Context, url string) (io.Reader, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	log := logger.ForFetcher().WithField("url", url)

	var lastErr error
	for i, strategy := range renderStrategies {
		reader, err := r.execute(ctx, url, strategy)
		if err == nil {
			log.Debug().Str("strategy", strategy.name).Msg("render succeeded")
			return reader, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Debug().Err(err).Msgf("render strategy %d/%d (%s) failed", i+1, len(renderStrategies), strategy.name)
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("render %s: %w", url, ctx.Err())
	}
	return nil, fmt.Errorf("render %s: %w", url, lastErr)
}

func (r *BrowserlessRenderer) execute(ctx context.Context, url string, strategy renderStrategy) (io.Reader, error) {
	payload := map[string]interface{}{
		"url":       url,
		"userAgent": r.UserAgent,
		"viewport": map[string]int{
			"width":  1920,
			"height": 1080,
		},
		"gotoOptions": map[string]interface{}{
			"waitUntil": strategy.waitUntil,
			"timeout":   r.Timeout.Milliseconds(),
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Addr+"/content", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return processRawResponse(body)
}

// processRawResponse accepts the body only if it looks like an HTML document
func processRawResponse(data []byte) (io.Reader, error) {
	if len(data) < 50 {
		return nil, fmt.Errorf("response too short: %d bytes", len(data))
	}

	lower := strings.ToLower(string(data))
	if strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<!doctype") ||
		strings.Contains(lower, "<body") {
		return bytes.NewReader(data), nil
	}
	return nil, fmt.Errorf("response doesn't appear to be valid HTML")
}
