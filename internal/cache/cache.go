// Package cache implements the staged, content-addressed artifact store that
// backs both the crawler's manifest and the worker's per-pid pipeline state.
//
// Directory layout:
//
//	<root>/manifest.json
//	<root>/<pid>/meta.json
//	<root>/<pid>/doc.bin              (optional)
//	<root>/<pid>/content.md
//	<root>/<pid>/summary.txt           (optional)
//	<root>/<pid>/summary.<channel>.txt (optional, per channel)
//	<root>/<pid>/post.<channel>.txt
//
// Cache is the single writer of all on-disk artifacts; the worker guarantees
// this by processing pids strictly sequentially. Every write is atomic per
// file: content is staged into a temp file in the same directory, then
// renamed into place, so a reader never observes a partial write.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"luminis/internal/model"
)

// Cache is a single-writer, content-addressed staged artifact store rooted
// at a directory on disk.
type Cache struct {
	root string
}

// New returns a Cache rooted at dir, creating dir if necessary.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: root dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create root dir: %w", err)
	}
	return &Cache{root: dir}, nil
}

// RootDir returns the cache's root directory.
func (c *Cache) RootDir() string { return c.root }

func (c *Cache) pidDir(pid string) string {
	return filepath.Join(c.root, pid)
}

func (c *Cache) pidPath(pid, name string) string {
	return filepath.Join(c.pidDir(pid), name)
}

// writeAtomic stages data into a temp file in dir and renames it to name.
// A reader either observes the previous complete file or the new one,
// never a partial write.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, name+".tmp.*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("cache: rename into place: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HasData reports whether content.md exists for pid.
func (c *Cache) HasData(pid string) bool {
	return exists(c.pidPath(pid, "content.md"))
}

// LoadMarkdown returns the extracted markdown for pid, or ErrCacheMiss if absent.
func (c *Cache) LoadMarkdown(pid string) (string, error) {
	return c.loadText(pid, "content.md")
}

// HasSummary reports whether the channel-agnostic summary exists for pid.
func (c *Cache) HasSummary(pid string) bool {
	return exists(c.pidPath(pid, "summary.txt"))
}

// LoadSummary returns the channel-agnostic summary for pid.
func (c *Cache) LoadSummary(pid string) (string, error) {
	return c.loadText(pid, "summary.txt")
}

// HasChannelSummary reports whether a per-channel summary exists for pid.
func (c *Cache) HasChannelSummary(pid, channel string) bool {
	return exists(c.pidPath(pid, "summary."+channel+".txt"))
}

// LoadChannelSummary returns the per-channel summary for pid.
func (c *Cache) LoadChannelSummary(pid, channel string) (string, error) {
	return c.loadText(pid, "summary."+channel+".txt")
}

// HasChannelPost reports whether a rendered post exists for pid on channel.
func (c *Cache) HasChannelPost(pid, channel string) bool {
	return exists(c.pidPath(pid, "post."+channel+".txt"))
}

// LoadChannelPost returns the rendered post for pid on channel.
func (c *Cache) LoadChannelPost(pid, channel string) (string, error) {
	return c.loadText(pid, "post."+channel+".txt")
}

func (c *Cache) loadText(pid, name string) (string, error) {
	data, err := os.ReadFile(c.pidPath(pid, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", model.ErrCacheMiss
		}
		return "", fmt.Errorf("cache: read %s/%s: %w", pid, name, err)
	}
	return string(data), nil
}

// IsPublished reports whether channel has already been recorded as
// published for pid, per meta.json's published_channels.
func (c *Cache) IsPublished(pid, channel string) bool {
	meta, err := c.loadMeta(pid)
	if err != nil {
		return false
	}
	return meta.HasPublished(channel)
}

// AddPublished records channel as published for pid. Append-only: calling
// this twice for the same channel is a no-op after the first call.
func (c *Cache) AddPublished(pid, channel string) error {
	meta, err := c.loadMeta(pid)
	if err != nil {
		return err
	}
	meta.AddPublished(channel)
	return c.saveMeta(meta)
}

func (c *Cache) metaPath(pid string) string {
	return c.pidPath(pid, "meta.json")
}

func (c *Cache) loadMeta(pid string) (*model.Meta, error) {
	data, err := os.ReadFile(c.metaPath(pid))
	if err != nil {
		if os.IsNotExist(err) {
			return &model.Meta{PID: pid}, nil
		}
		return nil, fmt.Errorf("cache: read meta for %s: %w", pid, err)
	}
	var meta model.Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("cache: parse meta for %s: %w", pid, err)
	}
	return &meta, nil
}

func (c *Cache) saveMeta(meta *model.Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal meta: %w", err)
	}
	return writeAtomic(c.pidDir(meta.PID), "meta.json", data)
}

// Artifacts is the set of artifacts SaveArtifacts may persist for a pid in
// one call. Any subset of fields may be set; nil/zero fields are skipped.
type Artifacts struct {
	Title          string
	URL            string
	DocBytes       []byte
	Markdown       *string
	Summary        *string
	Channel        string
	ChannelSummary *string
	ChannelPost    *string
}

// SaveArtifacts writes any subset of the listed artifacts atomically per
// file and updates meta.json when the title or url field is set. Channel
// only names the per-channel artifacts; published channels are recorded
// separately by AddPublished.
func (c *Cache) SaveArtifacts(pid string, a Artifacts) error {
	dir := c.pidDir(pid)

	if a.DocBytes != nil {
		if err := writeAtomic(dir, "doc.bin", a.DocBytes); err != nil {
			return err
		}
	}
	if a.Markdown != nil {
		if err := writeAtomic(dir, "content.md", []byte(*a.Markdown)); err != nil {
			return err
		}
	}
	if a.Summary != nil {
		if err := writeAtomic(dir, "summary.txt", []byte(*a.Summary)); err != nil {
			return err
		}
	}
	if a.ChannelSummary != nil {
		if a.Channel == "" {
			return fmt.Errorf("cache: channel summary requires a channel name")
		}
		if err := writeAtomic(dir, "summary."+a.Channel+".txt", []byte(*a.ChannelSummary)); err != nil {
			return err
		}
	}
	if a.ChannelPost != nil {
		if a.Channel == "" {
			return fmt.Errorf("cache: channel post requires a channel name")
		}
		if err := writeAtomic(dir, "post."+a.Channel+".txt", []byte(*a.ChannelPost)); err != nil {
			return err
		}
	}

	if a.Title != "" || a.URL != "" {
		meta, err := c.loadMeta(pid)
		if err != nil {
			return err
		}
		meta.PID = pid
		if a.Title != "" {
			meta.Title = a.Title
		}
		if a.URL != "" {
			meta.URL = a.URL
		}
		if err := c.saveMeta(meta); err != nil {
			return err
		}
	}

	return nil
}
