// Package assets handles model file lookup and caching.
package assets

import (
	"container/list"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

// Manager reads files from an ordered list of roots.
// Roots are searched in reverse order (last added = highest priority).
type Manager struct {
	roots []root
	cache *Cache
	mu    sync.RWMutex

	caching bool
}

type root struct {
	name string
	fsys fs.FS
}

// NewManager creates a new asset manager with caching enabled.
func NewManager() *Manager {
	return &Manager{
		cache:   NewCache(),
		caching: true,
	}
}

// SetCaching enables or disables the byte cache. Disabling clears it.
func (m *Manager) SetCaching(enabled bool) {
	m.mu.Lock()
	m.caching = enabled
	m.mu.Unlock()

	if !enabled {
		m.cache.Clear()
	}
}

// SetCacheLimit bounds the cache to maxBytes of file data. 0 removes the bound.
func (m *Manager) SetCacheLimit(maxBytes int64) {
	m.cache.SetLimit(maxBytes)
}

// AddFS adds a filesystem root under a display name.
func (m *Manager) AddFS(name string, fsys fs.FS) {
	m.mu.Lock()
	m.roots = append(m.roots, root{name: name, fsys: fsys})
	m.mu.Unlock()
}

// AddDir adds a directory on disk as a root.
func (m *Manager) AddDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding root %s: not a directory", dir)
	}

	m.AddFS(dir, os.DirFS(dir))
	return nil
}

// Roots returns the root names in search priority order.
func (m *Manager) Roots() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.roots))
	for i := len(m.roots) - 1; i >= 0; i-- {
		names = append(names, m.roots[i].name)
	}
	return names
}

// ReadFile loads a file by its slash-separated path relative to the roots.
// A file missing from every root yields an error matching fs.ErrNotExist.
func (m *Manager) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}

	m.mu.RLock()
	caching := m.caching
	m.mu.RUnlock()

	// Check cache first
	if caching {
		if data, ok := m.cache.Get(name); ok {
			return data, nil
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.roots) - 1; i >= 0; i-- {
		data, err := fs.ReadFile(m.roots[i].fsys, name)
		if err == nil {
			if caching {
				m.cache.Set(name, data)
			}
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s from %s: %w", name, m.roots[i].name, err)
		}
	}

	return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
}

// Exists reports whether any root holds the file.
func (m *Manager) Exists(name string) bool {
	if !fs.ValidPath(name) {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.roots {
		if _, err := fs.Stat(r.fsys, name); err == nil {
			return true
		}
	}
	return false
}

// List returns the sorted, de-duplicated paths of all files with the given
// extension across every root.
func (m *Manager) List(ext string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, r := range m.roots {
		err := fs.WalkDir(r.fsys, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(path.Ext(p), ext) {
				seen[p] = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", r.name, err)
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// CacheStats returns cache hit and miss counts.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

// CacheSize returns the number of cached bytes.
func (m *Manager) CacheSize() int64 {
	return m.cache.Size()
}

// Close drops all roots and clears the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots = nil
	m.cache.Clear()
}

// Cache is an in-memory cache for loaded files. With a byte limit set, the
// least recently used entries are evicted once the total size exceeds it.
type Cache struct {
	data  map[string]*list.Element
	order *list.List // Front is most recently used
	mu    sync.RWMutex

	size  int64
	limit int64 // 0 means unbounded

	// Stats
	hits      int
	misses    int
	evictions int
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewCache creates a new unbounded cache.
func NewCache() *Cache {
	return &Cache{
		data:  make(map[string]*list.Element),
		order: list.New(),
	}
}

// SetLimit bounds the total cached bytes, evicting entries if needed.
// A limit of 0 removes the bound.
func (c *Cache) SetLimit(maxBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = max(maxBytes, 0)
	c.evict()
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.data[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

// Set stores an item in cache. Items larger than the limit are not stored.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.data[key]; ok {
		c.remove(el)
	}
	if c.limit > 0 && int64(len(data)) > c.limit {
		return
	}

	c.data[key] = c.order.PushFront(&cacheEntry{key: key, data: data})
	c.size += int64(len(data))
	c.evict()
}

func (c *Cache) evict() {
	for c.limit > 0 && c.size > c.limit {
		c.remove(c.order.Back())
		c.evictions++
	}
}

func (c *Cache) remove(el *list.Element) {
	e := c.order.Remove(el).(*cacheEntry)
	delete(c.data, e.key)
	c.size -= int64(len(e.data))
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Size returns the total number of cached bytes.
func (c *Cache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Evictions returns how many entries were dropped to stay under the limit.
func (c *Cache) Evictions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictions
}
