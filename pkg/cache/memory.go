package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Memory is an in-process ScanCache used when Redis is disabled. It keys
// entries by generation the same way Redis does.
type Memory struct {
	cache *gocache.Cache

	mu          sync.Mutex
	generations map[string]Generation
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		cache:       gocache.New(ttl, ttl*2),
		generations: map[string]Generation{},
	}
}

func (m *Memory) Get(_ context.Context, key ScanKey) (*Entry, Generation, error) {
	m.mu.Lock()
	gen := m.generations[generationKey(key.TenantID, key.Kind)]
	m.mu.Unlock()

	v, ok := m.cache.Get(entryKey(key, gen))
	if !ok {
		return nil, gen, nil
	}
	entry, _ := v.(*Entry)
	return entry, gen, nil
}

func (m *Memory) Set(_ context.Context, key ScanKey, gen Generation, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generations[generationKey(key.TenantID, key.Kind)] != gen {
		return nil
	}
	m.cache.Set(entryKey(key, gen), entry, gocache.DefaultExpiration)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, tenantID string, kind models.EntityKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generations[generationKey(tenantID, kind)]++

	prefix := ScanKey{TenantID: tenantID, Kind: kind}.prefix() + ":"
	for k := range m.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			m.cache.Delete(k)
		}
	}
	return nil
}
