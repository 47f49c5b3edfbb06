package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Registry is the persistent video_id -> source path mapping. It
// replaces the in-process path caches the pipeline would otherwise
// accumulate: every operation that needs a video's source path or
// status reads it from here, and mutations are flushed atomically
// (write temp file, then rename).
type Registry struct {
	mu     sync.RWMutex
	path   string
	videos map[string]VideoRecord
}

// LoadRegistry reads the registry file, treating a missing file as an
// empty registry.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, videos: map[string]VideoRecord{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if err := json.Unmarshal(data, &r.videos); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return r, nil
}

// Get returns the record for a video id.
func (r *Registry) Get(videoID string) (VideoRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.videos[videoID]
	return rec, ok
}

// Put upserts a record and flushes to disk.
func (r *Registry) Put(rec VideoRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.UpdatedAt = time.Now().UTC()
	r.videos[rec.VideoID] = rec
	return r.save()
}

// SetStatus updates just the processing status of a video.
func (r *Registry) SetStatus(videoID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.videos[videoID]
	if !ok {
		rec = VideoRecord{VideoID: videoID}
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	r.videos[videoID] = rec
	return r.save()
}

// Delete removes a record and flushes to disk. Deleting an unknown id
// is a no-op.
func (r *Registry) Delete(videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[videoID]; !ok {
		return nil
	}
	delete(r.videos, videoID)
	return r.save()
}

// List returns all records ordered by video id.
func (r *Registry) List() []VideoRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]VideoRecord, 0, len(r.videos))
	for _, rec := range r.videos {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VideoID < out[j].VideoID })
	return out
}

// save writes the full map to a temp file and renames it into place so
// a crash mid-write never leaves a truncated registry. Caller holds mu.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.videos, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
