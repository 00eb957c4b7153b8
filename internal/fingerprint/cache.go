package fingerprint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const cacheVersion = 1
const cacheSoftCap = 500

// cacheEntry wraps a cached lookup response with an insertion timestamp so
// the soft cap can evict the oldest entry first.
type cacheEntry struct {
	Response   json.RawMessage `json:"response"`
	InsertedAt time.Time       `json:"insertedAt"`
}

type cacheFile struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// Cache is the on-disk AcoustID lookup cache described in §4.7 step 2 and
// the shared-resource policy in §5: a single JSON document, read-modify-
// write, serialized per-process behind one mutex on the file path.
type Cache struct {
	path string
	mu   sync.Mutex
}

// NewCache opens (without yet reading) the cache file at path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

func (c *Cache) load() (cacheFile, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return cacheFile{Version: cacheVersion, Entries: map[string]cacheEntry{}}, nil
	}
	if err != nil {
		return cacheFile{}, err
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return cacheFile{Version: cacheVersion, Entries: map[string]cacheEntry{}}, nil
	}
	if cf.Entries == nil {
		cf.Entries = map[string]cacheEntry{}
	}
	return cf, nil
}

func (c *Cache) save(cf cacheFile) error {
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".fpcache_*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, c.path)
}

// Get returns the cached response for key, if present.
func (c *Cache) Get(key string) (json.RawMessage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cf, err := c.load()
	if err != nil {
		return nil, false, err
	}
	entry, ok := cf.Entries[key]
	if !ok {
		return nil, false, nil
	}
	return entry.Response, true, nil
}

// Put stores response under key, evicting the oldest entry if the cache
// exceeds its soft cap.
func (c *Cache) Put(key string, response json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cf, err := c.load()
	if err != nil {
		return err
	}
	cf.Entries[key] = cacheEntry{Response: response, InsertedAt: time.Now()}

	if len(cf.Entries) > cacheSoftCap {
		evictOldest(cf.Entries)
	}
	return c.save(cf)
}

func evictOldest(entries map[string]cacheEntry) {
	type keyed struct {
		key string
		at  time.Time
	}
	all := make([]keyed, 0, len(entries))
	for k, e := range entries {
		all = append(all, keyed{k, e.InsertedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	excess := len(entries) - cacheSoftCap
	for i := 0; i < excess; i++ {
		delete(entries, all[i].key)
	}
}
