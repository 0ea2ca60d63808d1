package crawler

import (
	"errors"
	"sync"
	"time"
)

var errCacheMiss = errors.New("cache miss")

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
	ttls  map[string]time.Duration
	gets  int
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, errCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *MockCacheService) value(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cache[key]
	return v, ok
}

// failingCache behaves like an unreachable memcached
type failingCache struct{}

func (failingCache) Get(string) ([]byte, error) { return nil, errors.New("connection refused") }
func (failingCache) Set(string, []byte, time.Duration) error { return errors.New("connection refused") }
func (failingCache) Delete(string) error { return errors.New("connection refused") }
