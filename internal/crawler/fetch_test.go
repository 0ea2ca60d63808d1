package crawler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "scholarsift/scholarworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	body  string
	err   error
	calls int32
}

func (s *stubRenderer) Render(ctx context.Context, url string) (io.Reader, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return strings.NewReader(s.body), nil
}

func testFetcherConfig() FetcherConfig {
	return FetcherConfig{
		UserAgent:     testAgent,
		RespectRobots: true,
		FetchTimeout:  2 * time.Second,
		BlockTime:     time.Minute,
	}
}

// siteServer serves robots.txt and a single page, counting page hits
func siteServer(t *testing.T, robots string, page http.HandlerFunc, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte(robots))
			return
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		page(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func staticPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestFetchPolicyDenied(t *testing.T) {
	var hits int32
	srv := siteServer(t, "User-agent: *\nDisallow: /private\n", staticPage(daadHTML), &hits)
	renderer := &stubRenderer{body: renderedPage}
	fetcher := NewFetcher(testFetcherConfig(), renderer, nil)

	_, err := fetcher.Fetch(context.Background(), srv.URL+"/private/list")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePolicyDenied))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&renderer.calls))
}

func TestFetchIgnoresRobotsWhenDisabled(t *testing.T) {
	srv := siteServer(t, "User-agent: *\nDisallow: /\n", staticPage(daadHTML), nil)
	cfg := testFetcherConfig()
	cfg.RespectRobots = false
	fetcher := NewFetcher(cfg, nil, nil)

	doc, err := fetcher.Fetch(context.Background(), srv.URL+"/list")
	require.NoError(t, err)
	assert.Equal(t, daadHTML, readAll(t, doc.Body))
}

func TestFetchPrefersRenderer(t *testing.T) {
	var hits int32
	srv := siteServer(t, "", staticPage(daadHTML), &hits)
	renderer := &stubRenderer{body: renderedPage}
	fetcher := NewFetcher(testFetcherConfig(), renderer, nil)

	doc, err := fetcher.Fetch(context.Background(), srv.URL+"/list")
	require.NoError(t, err)
	assert.True(t, doc.Rendered)
	assert.Equal(t, renderedPage, readAll(t, doc.Body))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFetchFallsBackToStatic(t *testing.T) {
	srv := siteServer(t, "", staticPage(daadHTML), nil)
	renderer := &stubRenderer{err: errors.New("browser crashed")}
	fetcher := NewFetcher(testFetcherConfig(), renderer, nil)

	doc, err := fetcher.Fetch(context.Background(), srv.URL+"/list")
	require.NoError(t, err)
	assert.False(t, doc.Rendered)
	assert.Equal(t, daadHTML, readAll(t, doc.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&renderer.calls))
}

func TestFetchBothStrategiesFail(t *testing.T) {
	srv := siteServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)
	renderer := &stubRenderer{err: errors.New("browser crashed")}
	fetcher := NewFetcher(testFetcherConfig(), renderer, nil)

	_, err := fetcher.Fetch(context.Background(), srv.URL+"/list")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNetwork))
	assert.Contains(t, err.Error(), "browser crashed")
}

func TestGetTimeout(t *testing.T) {
	srv := siteServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, nil)
	cfg := testFetcherConfig()
	cfg.FetchTimeout = 50 * time.Millisecond
	fetcher := NewFetcher(cfg, nil, nil)

	_, err := fetcher.Get(context.Background(), srv.URL+"/slow")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
}

func TestGetRateLimitedBlocksHost(t *testing.T) {
	var hits int32
	srv := siteServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}, &hits)
	cacheSvc := NewMockCacheService()
	fetcher := NewFetcher(testFetcherConfig(), nil, cacheSvc)

	_, err := fetcher.Get(context.Background(), srv.URL+"/list")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRateLimit))

	host := strings.TrimPrefix(srv.URL, "http://")
	value, ok := cacheSvc.value(blockedKeyPrefix + host)
	require.True(t, ok)
	assert.Equal(t, "60", string(value))

	// Blocked hosts are not contacted again
	_, err = fetcher.Get(context.Background(), srv.URL+"/other")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRateLimit))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetSpacesRequestsToSameHost(t *testing.T) {
	srv := siteServer(t, "", staticPage(daadHTML), nil)
	cfg := testFetcherConfig()
	cfg.RequestDelay = 100 * time.Millisecond
	fetcher := NewFetcher(cfg, nil, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := fetcher.Get(context.Background(), srv.URL+"/list")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 190*time.Millisecond)
}

func TestRenderWithoutRenderer(t *testing.T) {
	fetcher := NewFetcher(testFetcherConfig(), nil, nil)
	assert.False(t, fetcher.HasRenderer())

	_, err := fetcher.Render(context.Background(), "https://example.org")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestRenderTimeoutClassified(t *testing.T) {
	renderer := &stubRenderer{err: context.DeadlineExceeded}
	fetcher := NewFetcher(testFetcherConfig(), renderer, nil)

	_, err := fetcher.Render(context.Background(), "https://example.org")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
}

func TestFetchRobotsTxtHangs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			<-r.Context().Done()
			return
		}
		staticPage(daadHTML)(w, r)
	}))
	defer srv.Close()

	cfg := testFetcherConfig()
	cfg.FetchTimeout = 200 * time.Millisecond
	fetcher := NewFetcher(cfg, nil, nil)

	done := make(chan error, 1)
	go func() {
		doc, err := fetcher.Fetch(context.Background(), srv.URL+"/page")
		if err == nil {
			_, err = io.ReadAll(doc.Body)
		}
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("fetch blocked on a robots.txt that never answers")
	}
}

func TestRobotsAndPageShareHostLimiter(t *testing.T) {
	srv := siteServer(t, "User-agent: *\nAllow: /\n", staticPage(daadHTML), nil)
	cfg := testFetcherConfig()
	cfg.RequestDelay = 150 * time.Millisecond
	fetcher := NewFetcher(cfg, nil, nil)

	// robots.txt and the page are two requests to the same host:port
	start := time.Now()
	_, err := fetcher.Fetch(context.Background(), srv.URL+"/list")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}
