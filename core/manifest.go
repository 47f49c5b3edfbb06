package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FrameManifest persists the sampled-frame list for one video so a
// later search can resolve a vector ordinal back to a frame's path,
// index and timestamp without touching the video again.
type FrameManifest struct {
	VideoID string  `json:"video_id"`
	Stride  int     `json:"stride"`
	FPS     float64 `json:"fps"`
	Frames  []Frame `json:"frames"`
}

func manifestPath(storageDir, videoID string) string {
	return filepath.Join(storageDir, videoID, "frames.json")
}

// SaveManifest writes the manifest atomically under the video's
// storage directory.
func SaveManifest(storageDir string, m *FrameManifest) error {
	path := manifestPath(storageDir, m.VideoID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadManifest reads a previously saved manifest. A missing manifest
// means the video was never processed.
func LoadManifest(storageDir, videoID string) (*FrameManifest, error) {
	data, err := os.ReadFile(manifestPath(storageDir, videoID))
	if os.IsNotExist(err) {
		return nil, &NotIndexedError{VideoID: videoID, Modality: ModalityVisual}
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m FrameManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest for %s: %w", videoID, err)
	}
	return &m, nil
}

// RemoveVideoData deletes everything stored on disk for a video
// (frames, audio, manifest).
func RemoveVideoData(storageDir, videoID string) error {
	return os.RemoveAll(filepath.Join(storageDir, videoID))
}
