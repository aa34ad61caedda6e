package metasync

import "sync"

// FallbackCache is the process-local degraded-mode store for merged metadata.
// It is not durable and not shared across processes: it exists so that reads
// within one process stay consistent with a caller's writes while the
// identity provider is unreachable. Construct one per process and inject it
// into the Synchronizer.
type FallbackCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]any
}

// NewFallbackCache creates an empty cache.
func NewFallbackCache() *FallbackCache {
	return &FallbackCache{entries: make(map[string]map[string]any)}
}

// Get returns a copy of the cached metadata for a subject, or nil.
func (c *FallbackCache) Get(subjectID string) map[string]any {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneMetadata(c.entries[subjectID])
}

// Put stores a copy of the merged metadata for a subject.
func (c *FallbackCache) Put(subjectID string, metadata map[string]any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[subjectID] = cloneMetadata(metadata)
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
