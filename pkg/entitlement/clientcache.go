package entitlement

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// ClientCache is the advisory local mirror of the entitled flag, used for
// instant UI gating without a round trip. It is owned by one client context,
// never consulted for server-side access control, and tolerates silent
// divergence: the authoritative store wins on the next reconciliation.
//
// All writes funnel through MarkEntitled (verified success signal only) and
// Reconcile (authoritative value); there is no other write path.
type ClientCache struct {
	mu       sync.Mutex
	path     string
	entitled bool
}

type clientCacheFile struct {
	Entitled bool `json:"entitled"`
}

// NewClientCache creates a cache persisted at path. The file not existing is
// the empty cache; it is always safe to discard.
func NewClientCache(path string) *ClientCache {
	return &ClientCache{path: path}
}

// Load reads the persisted flag. A missing or corrupt file yields false,
// falling back to server truth.
func (c *ClientCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.entitled = false
			return nil
		}
		return err
	}

	var f clientCacheFile
	if err := json.Unmarshal(raw, &f); err != nil {
		c.entitled = false
		return nil
	}
	c.entitled = f.Entitled
	return nil
}

// Entitled returns the cached flag. Advisory only.
func (c *ClientCache) Entitled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entitled
}

// MarkEntitled sets the flag after a verified success signal. Call only once
// the session has been independently verified against the provider.
func (c *ClientCache) MarkEntitled() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entitled = true
	return c.persist()
}

// Reconcile overwrites the cached flag with a freshly fetched authoritative
// value. Divergence in either direction is corrected without error.
func (c *ClientCache) Reconcile(authoritative bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entitled == authoritative {
		return nil
	}
	c.entitled = authoritative
	return c.persist()
}

// persist writes atomically via rename so a crash never leaves a torn file.
// Caller must hold the mutex.
func (c *ClientCache) persist() error {
	raw, err := json.Marshal(clientCacheFile{Entitled: c.entitled})
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
