package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"scholarsift/scholarworker/logger"
	apperrors "scholarsift/scholarworker/pkg/errors"
	"scholarsift/scholarworker/services/cache"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const (
	robotsCacheTTL       = time.Hour
	robotsMaxBytes       = 512 * 1024
	robotsKeyPrefix      = "robots:"
	robotsDefaultTimeout = 30 * time.Second
)

// RobotsChecker answers whether a user agent may fetch a URL according to
// the host's robots.txt. Parsed files are kept per origin for the life of
// the checker and shared through the cache service between processes.
type RobotsChecker struct {
	// Timeout bounds a single robots.txt download
	Timeout time.Duration

	client    *http.Client
	userAgent string
	cacheSvc  cache.CacheService
	limiter   *HostLimiter

	mu     sync.RWMutex
	robots map[string]*robotstxt.RobotsData
	group  singleflight.Group
}

// NewRobotsChecker creates a checker. cacheSvc and limiter may be nil.
func NewRobotsChecker(client *http.Client, userAgent string, cacheSvc cache.CacheService, limiter *HostLimiter) *RobotsChecker {
	return &RobotsChecker{
		Timeout:   robotsDefaultTimeout,
		client:    client,
		userAgent: userAgent,
		cacheSvc:  cacheSvc,
		limiter:   limiter,
		robots:    make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched. A robots.txt that cannot be
// retrieved allows everything.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false, fmt.Errorf("invalid url %q", rawURL)
	}
	origin := u.Scheme + "://" + u.Host

	data := r.lookup(ctx, origin)
	if data == nil {
		return true, nil
	}
	return data.TestAgent(u.RequestURI(), r.userAgent), nil
}

func (r *RobotsChecker) lookup(ctx context.Context, origin string) *robotstxt.RobotsData {
	r.mu.RLock()
	data, ok := r.robots[origin]
	r.mu.RUnlock()
	if ok {
		return data
	}

	v, _, _ := r.group.Do(origin, func() (interface{}, error) {
		data := r.load(ctx, origin)
		// A cancelled caller must not pin an allow-all answer for everyone else
		if ctx.Err() == nil {
			r.mu.Lock()
			r.robots[origin] = data
			r.mu.Unlock()
		}
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

// load returns nil when robots.txt is unavailable
func (r *RobotsChecker) load(ctx context.Context, origin string) *robotstxt.RobotsData {
	log := logger.ForFetcher().WithField("origin", origin)
	key := robotsKeyPrefix + origin

	status, body, ok := r.fromCache(key)
	if !ok {
		var err error
		status, body, err = r.fetch(ctx, origin)
		if err != nil {
			log.Warn().Err(err).Msg("robots.txt unavailable, allowing all paths")
			return nil
		}
		r.toCache(key, status, body)
	}

	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		log.Warn().Err(err).Msg("robots.txt unparseable, allowing all paths")
		return nil
	}
	log.Debug().Int("status", status).Msg("robots.txt loaded")
	return data
}

func (r *RobotsChecker) fetch(ctx context.Context, origin string) (int, []byte, error) {
	u, _ := url.Parse(origin)
	if err := r.limiter.Wait(ctx, u.Host); err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// Cached entries are stored as "<status>\n<body>".
func (r *RobotsChecker) fromCache(key string) (int, []byte, bool) {
	if r.cacheSvc == nil {
		return 0, nil, false
	}
	raw, err := r.cacheSvc.Get(key)
	if err != nil {
		return 0, nil, false
	}
	head, body, found := bytes.Cut(raw, []byte("\n"))
	if !found {
		return 0, nil, false
	}
	status, err := strconv.Atoi(string(head))
	if err != nil {
		return 0, nil, false
	}
	return status, body, true
}

func (r *RobotsChecker) toCache(key string, status int, body []byte) {
	if r.cacheSvc == nil {
		return
	}
	value := append([]byte(strconv.Itoa(status)+"\n"), body...)
	if err := r.cacheSvc.Set(key, value, robotsCacheTTL); err != nil {
		logger.ForCache().WithError(apperrors.NewCache(key, "set failed", err)).Debug().Msg("failed to cache robots.txt")
	}
}
