// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/wneessen/geo-loc/internal/location"
)

type cacheEntry struct {
	Fix    location.Fix
	Expiry time.Time
}

// MemoryStore keeps fixes for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	cache map[string]cacheEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (location.Fix, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cache[key]
	if !ok || !m.now().Before(entry.Expiry) {
		return location.Fix{}, false, nil
	}
	return entry.Fix, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, fix location.Fix, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cacheEntry{
		Fix:    fix,
		Expiry: m.now().Add(ttl),
	}
	return nil
}
