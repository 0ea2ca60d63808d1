package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSeedURLs are the scholarship sources scraped when SEED_URLS is not set
var DefaultSeedURLs = []string{
	"https://www.daad.de/en/",
	"https://www.chevening.org/scholarships/",
	"https://mastercardfdn.org/",
	"https://opportunitiesforafricans.com/",
	"https://scholarshiproar.com/",
	"https://www.commonwealthscholarships.org/",
}

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Publisher configuration
	Publisher  string
	OutputPath string

	// Scraper configuration
	SeedURLs       []string
	UserAgent      string
	RespectRobots  bool
	RequestDelay   time.Duration
	FetchTimeout   time.Duration
	RenderTimeout  time.Duration
	ChromeDBAddr   string
	MaxBlocks      int
	RateLimitBlock time.Duration

	// Worker configuration
	CrawlInterval time.Duration
	RunOnce       bool

	ErrorLogFile string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "scholarships"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		Publisher:            getEnv("PUBLISHER", "redis"),
		OutputPath:           getEnv("OUTPUT_PATH", "data/scholarships.ndjson"),
		SeedURLs:             getEnvList("SEED_URLS", DefaultSeedURLs),
		UserAgent:            getEnv("SCRAPER_USER_AGENT", "ScholarSift/1.0 (Educational Research Bot)"),
		RespectRobots:        getEnvBool("RESPECT_ROBOTS_TXT", true),
		RequestDelay:         getEnvSeconds("REQUEST_DELAY_SECONDS", 2),
		FetchTimeout:         getEnvSeconds("FETCH_TIMEOUT_SECONDS", 30),
		RenderTimeout:        getEnvSeconds("RENDER_TIMEOUT_SECONDS", 30),
		ChromeDBAddr:         strings.TrimRight(os.Getenv("CHROMEDB_ADDR"), "/"),
		MaxBlocks:            getEnvInt("MAX_BLOCKS_PER_PAGE", 10),
		RateLimitBlock:       getEnvSeconds("RATE_LIMIT_BLOCK_SECONDS", 300),
		CrawlInterval:        getEnvSeconds("CRAWL_INTERVAL_SECONDS", 3600),
		RunOnce:              getEnvBool("RUN_ONCE", false),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", "scrape_errors.log"),
		Environment:          getEnv("SCHOLAR_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the worker cannot run with
func (c *Config) Validate() error {
	if len(c.SeedURLs) == 0 {
		return fmt.Errorf("no seed URLs configured")
	}
	for _, raw := range c.SeedURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid seed URL %q", raw)
		}
	}
	if c.FetchTimeout <= 0 || c.RenderTimeout <= 0 {
		return fmt.Errorf("fetch and render timeouts must be positive")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay must not be negative")
	}
	if c.MaxBlocks < 1 {
		return fmt.Errorf("MAX_BLOCKS_PER_PAGE must be at least 1, got %d", c.MaxBlocks)
	}
	if c.CrawlInterval <= 0 && !c.RunOnce {
		return fmt.Errorf("crawl interval must be positive")
	}

	switch c.Publisher {
	case "redis":
		if c.RedisStreamCount < 1 {
			return fmt.Errorf("REDIS_STREAM_COUNT must be at least 1, got %d", c.RedisStreamCount)
		}
	case "file":
		if c.OutputPath == "" {
			return fmt.Errorf("OUTPUT_PATH is required for the file publisher")
		}
	default:
		return fmt.Errorf("unknown publisher %q", c.Publisher)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

// getEnvList splits a comma separated variable, skipping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
