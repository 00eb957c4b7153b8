package server

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jaki95/dropcrate/internal/domain"
)

// libraryCache scans outputDir for sidecar documents and serves the
// listing from memory, invalidated on filesystem change rather than
// rescanned on every request. Adapted from 9lbw-staccato's
// watcher.go/handleFileEvent shape: the watcher's job here is purely
// "invalidate cache", not "dispatch processing".
type libraryCache struct {
	outputDir string

	mu    sync.RWMutex
	rows  []LibraryRow
	valid bool

	// scanAlways is set when the watcher could not be started.
	scanAlways bool

	watcher *fsnotify.Watcher
}

func newLibraryCache(outputDir string) *libraryCache {
	return &libraryCache{outputDir: outputDir}
}

// start begins watching outputDir for changes. Failure to start the
// watcher is non-fatal: list() falls back to scanning on every call.
func (c *libraryCache) start() (err error) {
	defer func() {
		if err != nil {
			c.scanAlways = true
		}
	}()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.watcher = watcher

	if err := os.MkdirAll(c.outputDir, 0755); err != nil {
		return err
	}
	if err := watcher.Add(c.outputDir); err != nil {
		return err
	}

	go c.watchLoop()
	return nil
}

func (c *libraryCache) watchLoop() {
	defer c.watcher.Close()
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if strings.HasSuffix(event.Name, ".dropcrate.json") {
				c.invalidate()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("library watcher error", "error", err)
		}
	}
}

func (c *libraryCache) invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// list returns the cached rows, rebuilding by scanning outputDir when the
// cache is cold or has been invalidated.
func (c *libraryCache) list() []LibraryRow {
	c.mu.RLock()
	if c.valid && !c.scanAlways {
		rows := c.rows
		c.mu.RUnlock()
		return rows
	}
	c.mu.RUnlock()

	rows := c.scan()

	c.mu.Lock()
	c.rows = rows
	c.valid = true
	c.mu.Unlock()

	return rows
}

// scan walks outputDir for sidecar files, parsing each into a LibraryRow.
// Sidecars that fail to parse are skipped with a log entry, per §7's "the
// library listing endpoint surfaces no errors for individual sidecars it
// cannot parse". Rows are filtered to those with a populated audio output
// path (§9's Open Question resolution) and sorted desc by downloadedAt.
func (c *libraryCache) scan() []LibraryRow {
	entries, err := os.ReadDir(c.outputDir)
	if err != nil {
		slog.Warn("failed to read output directory for library listing", "dir", c.outputDir, "error", err)
		return nil
	}

	rows := make([]LibraryRow, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dropcrate.json") {
			continue
		}

		path := filepath.Join(c.outputDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read sidecar", "path", path, "error", err)
			continue
		}

		var doc domain.SidecarDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			slog.Warn("failed to parse sidecar", "path", path, "error", err)
			continue
		}

		if doc.Outputs.AudioPath == "" {
			continue
		}

		rows = append(rows, LibraryRow{
			ID:           doc.SourceID,
			Path:         doc.Outputs.AudioPath,
			Artist:       doc.Normalized.Artist,
			Title:        doc.Normalized.Title,
			Genre:        doc.DJDefaults.Genre,
			DownloadedAt: doc.DownloadedAt.Format(time.RFC3339),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].DownloadedAt > rows[j].DownloadedAt })
	return rows
}
