package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const (
	keyPrefix    = "scholarsift:"
	maxKeyLength = 250
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = time.Second
	return &MemcacheService{client: client}
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(cacheKey(key))
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        cacheKey(key),
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	return m.client.Delete(cacheKey(key))
}

// Ping checks that the server is reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// cacheKey namespaces key and keeps it within memcache's key rules.
// Keys that are too long or contain spaces or control characters are hashed.
func cacheKey(key string) string {
	full := keyPrefix + key
	if len(full) <= maxKeyLength && !strings.ContainsFunc(full, func(r rune) bool {
		return r <= ' ' || r == 0x7f
	}) {
		return full
	}
	sum := sha1.Sum([]byte(key))
	return keyPrefix + "h:" + hex.EncodeToString(sum[:])
}
