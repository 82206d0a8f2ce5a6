package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"luminis/internal/model"
)

const manifestFile = "manifest.json"

// LoadManifest loads the crawler's persisted cursor from the cache root.
// Returns the zero-value Manifest {0, nil} if no manifest has been written yet.
func (c *Cache) LoadManifest() (model.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(c.root, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Manifest{}, nil
		}
		return model.Manifest{}, fmt.Errorf("cache: read manifest: %w", err)
	}
	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return model.Manifest{}, fmt.Errorf("cache: parse manifest: %w", err)
	}
	return m, nil
}

// StoreManifest atomically replaces the persisted manifest.
func (c *Cache) StoreManifest(m model.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal manifest: %w", err)
	}
	return writeAtomic(c.root, manifestFile, data)
}
