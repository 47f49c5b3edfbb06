package search

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"videomosaic/core"
	"videomosaic/processors"
)

// TrimFunc cuts [start, start+duration) of src into dst. Injectable so
// clip planning is testable without transcoding.
type TrimFunc func(src, dst string, start, duration float64) error

// FFmpegTrim re-encodes the window so cuts land on exact timestamps
// instead of the nearest keyframe.
func FFmpegTrim(src, dst string, start, duration float64) error {
	return processors.RunFFmpeg([]string{
		"-y", "-i", src,
		"-ss", strconv.FormatFloat(start, 'f', -1, 64),
		"-t", strconv.FormatFloat(duration, 'f', -1, 64),
		"-c:v", "libx264", "-c:a", "aac",
		dst,
	})
}

// ClipSynthesizer turns search hits into playable clip files.
type ClipSynthesizer struct {
	Trim       TrimFunc
	PreRoll    float64
	ClipLength float64
}

// window derives the trim window for one hit. Preference order:
// explicit time range, precomputed clip window, point timestamp. A hit
// with none of these cannot be clipped.
func (c *ClipSynthesizer) window(h core.Hit) (core.ClipWindow, bool) {
	switch {
	case h.Start != nil && h.End != nil:
		dur := *h.End - *h.Start
		if dur <= 0 {
			return core.ClipWindow{}, false
		}
		return core.ClipWindow{Start: *h.Start, Duration: dur}, true
	case h.ClipStart != nil && h.ClipDuration != nil:
		return core.ClipWindow{Start: *h.ClipStart, Duration: *h.ClipDuration}, true
	case h.Timestamp != nil:
		return core.PointWindow(*h.Timestamp, c.PreRoll, c.ClipLength), true
	}
	return core.ClipWindow{}, false
}

// Synthesize cuts one clip per usable hit into outDir. Filenames are
// numbered by input hit position, 1-based, so gaps from skipped or
// failed hits stay visible to the caller.
func (c *ClipSynthesizer) Synthesize(videoPath, outDir, prefix string, hits []core.Hit) (*core.ClipResult, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("source video not found: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create clip dir: %w", err)
	}
	trim := c.Trim
	if trim == nil {
		trim = FFmpegTrim
	}
	if prefix == "" {
		prefix = "clip"
	}

	result := &core.ClipResult{Processed: len(hits), ClipPaths: []string{}}
	for i, h := range hits {
		win, ok := c.window(h)
		if !ok {
			log.Printf("clip %d: hit carries no timing, skipping", i+1)
			result.Skipped = append(result.Skipped, i)
			continue
		}
		dst := filepath.Join(outDir, fmt.Sprintf("%s_%d.mp4", prefix, i+1))
		if err := trim(videoPath, dst, win.Start, win.Duration); err != nil {
			log.Printf("clip %d: trim failed: %v", i+1, err)
			result.Failed = append(result.Failed, i)
			continue
		}
		// ffmpeg can exit zero yet write nothing for a window past the
		// end of the source.
		if info, err := os.Stat(dst); err != nil || info.Size() == 0 {
			log.Printf("clip %d: no output produced at %s", i+1, dst)
			result.Failed = append(result.Failed, i)
			continue
		}
		result.Produced++
		result.ClipPaths = append(result.ClipPaths, dst)
	}
	return result, nil
}
