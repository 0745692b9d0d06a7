package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// FolderCache persists resolved folder IDs so repeat syncs skip the
// lookup round-trips. The cache is a plain JSON snapshot on disk; a
// missing or corrupt snapshot just means an empty cache.
type FolderCache struct {
	path string

	mu  sync.RWMutex
	ids map[string]string
}

// NewFolderCache loads the snapshot at path, or starts empty if there
// is none. An empty path keeps the cache memory-only.
func NewFolderCache(path string) *FolderCache {
	fc := &FolderCache{path: path, ids: make(map[string]string)}
	if path == "" {
		return fc
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	var ids map[string]string
	if err := json.Unmarshal(data, &ids); err == nil && ids != nil {
		fc.ids = ids
	}
	return fc
}

func folderKey(parentID, name string) string {
	return parentID + "/" + name
}

// Get returns the cached folder ID for name under parentID.
func (fc *FolderCache) Get(parentID, name string) (string, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	id, ok := fc.ids[folderKey(parentID, name)]
	return id, ok
}

// Put records a resolved folder ID and persists the snapshot.
func (fc *FolderCache) Put(parentID, name, id string) {
	fc.mu.Lock()
	fc.ids[folderKey(parentID, name)] = id
	snapshot, err := json.MarshalIndent(fc.ids, "", "  ")
	fc.mu.Unlock()
	if err != nil || fc.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(fc.path), 0o755); err != nil {
		return
	}
	// Snapshot loss is harmless, the next sync re-resolves.
	_ = os.WriteFile(fc.path, snapshot, 0o644)
}

// Forget drops a cached entry, for when a remote folder turns out to be
// stale (deleted or trashed out from under us).
func (fc *FolderCache) Forget(parentID, name string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.ids, folderKey(parentID, name))
}

// GetOrCreateFolder resolves the folder called name under parentID,
// creating it if it does not exist. Concurrent calls for the same
// folder are collapsed into one remote lookup, so a burst of first-run
// uploads cannot race to create duplicates.
func (c *Client) GetOrCreateFolder(ctx context.Context, parentID, name string) (string, error) {
	if c.folders != nil {
		if id, ok := c.folders.Get(parentID, name); ok {
			return id, nil
		}
	}

	v, err, _ := c.folderGroup.Do(folderKey(parentID, name), func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the cache while we queued.
		if c.folders != nil {
			if id, ok := c.folders.Get(parentID, name); ok {
				return id, nil
			}
		}

		id, err := c.resolveFolder(ctx, parentID, name)
		if err != nil {
			return "", err
		}
		if c.folders != nil {
			c.folders.Put(parentID, name, id)
		}
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) resolveFolder(ctx context.Context, parentID, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(name), folderMIME)
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}
	files, err := c.list(ctx, q, 1)
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %q: %w", name, err)
	}
	if len(files) > 0 {
		return files[0].ID, nil
	}
	return c.createFolder(ctx, parentID, name)
}

func (c *Client) createFolder(ctx context.Context, parentID, name string) (string, error) {
	meta := File{Name: name, MimeType: folderMIME}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode folder metadata: %w", err)
	}

	u := c.baseURL + "/files?fields=id,name"
	resp, err := c.do(ctx, http.MethodPost, u, "application/json; charset=UTF-8", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	f, err := decodeFile(resp)
	if err != nil {
		return "", err
	}
	c.logger.Printf("Created remote folder: %s (%s)", name, f.ID)
	return f.ID, nil
}

// FindFolder looks up a folder by name without creating it. It returns
// "" when the folder does not exist.
func (c *Client) FindFolder(ctx context.Context, parentID, name string) (string, error) {
	if c.folders != nil {
		if id, ok := c.folders.Get(parentID, name); ok {
			return id, nil
		}
	}
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(name), folderMIME)
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}
	files, err := c.list(ctx, q, 1)
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %q: %w", name, err)
	}
	if len(files) == 0 {
		return "", nil
	}
	if c.folders != nil {
		c.folders.Put(parentID, name, files[0].ID)
	}
	return files[0].ID, nil
}
