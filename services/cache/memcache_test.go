package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("robots:https://example.org", []byte("200\nUser-agent: *"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("robots:https://example.org")
	assert.NoError(t, err)
	assert.Equal(t, "200\nUser-agent: *", string(value))

	err = mc.Delete("robots:https://example.org")
	assert.NoError(t, err)

	_, err = mc.Get("robots:https://example.org")
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "scholarsift:blocked:www.daad.de", cacheKey("blocked:www.daad.de"))

	spaced := cacheKey("robots:https://bad host")
	assert.True(t, strings.HasPrefix(spaced, "scholarsift:h:"))
	assert.NotContains(t, spaced, " ")

	long := cacheKey("robots:https://" + strings.Repeat("a", 300) + ".org")
	assert.LessOrEqual(t, len(long), maxKeyLength)
	assert.Equal(t, long, cacheKey("robots:https://"+strings.Repeat("a", 300)+".org"))
}
