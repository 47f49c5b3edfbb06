package processors

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// AudioChunk is one bounded-duration slice of the source audio. Offset
// is the chunk's start within the full recording; every segment
// timestamp produced from this chunk must be shifted by it.
type AudioChunk struct {
	Path     string
	Offset   float64
	Duration float64
}

// ChunkSet owns the temporary chunk files for one transcription run.
// Release chunk files as their transcriptions complete, then Close.
type ChunkSet struct {
	Chunks []AudioChunk
	dir    string
	split  bool
}

// chunkSpan is one (start, duration) slot of the chunk plan.
type chunkSpan struct {
	Start    float64
	Duration float64
}

// planChunks partitions [0, total) into spans of at most chunkSec with
// no gaps and no overlaps. The last span may be shorter.
func planChunks(total, chunkSec float64) []chunkSpan {
	if total <= 0 {
		return nil
	}
	if total <= chunkSec {
		return []chunkSpan{{Start: 0, Duration: total}}
	}
	var spans []chunkSpan
	for start := 0.0; start < total; start += chunkSec {
		dur := chunkSec
		if start+dur > total {
			dur = total - start
		}
		spans = append(spans, chunkSpan{Start: start, Duration: dur})
	}
	return spans
}

// SplitAudio prepares the audio for a transcription service with an
// upload size limit. Files at or under uploadLimitMB are passed through
// as a single chunk at offset 0; larger files are cut into
// maxChunkSeconds pieces. Duration-probe failure also degrades to a
// single chunk rather than failing the job.
func SplitAudio(audioPath string, maxChunkSeconds float64, uploadLimitMB int64) (*ChunkSet, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}
	passthrough := func(dur float64) *ChunkSet {
		return &ChunkSet{Chunks: []AudioChunk{{Path: audioPath, Offset: 0, Duration: dur}}}
	}

	if info.Size() <= uploadLimitMB*1024*1024 {
		dur, _ := ProbeDuration(audioPath)
		return passthrough(dur), nil
	}

	total, err := ProbeDuration(audioPath)
	if err != nil {
		log.Printf("duration probe failed for %s (%v), transcribing unsplit", audioPath, err)
		return passthrough(0), nil
	}
	if total <= maxChunkSeconds {
		return passthrough(total), nil
	}

	dir, err := os.MkdirTemp("", "audio_chunks_")
	if err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}
	set := &ChunkSet{dir: dir, split: true}
	for i, span := range planChunks(total, maxChunkSeconds) {
		chunkPath := filepath.Join(dir, fmt.Sprintf("chunk_%04d.wav", i))
		args := []string{
			"-y", "-i", audioPath,
			"-ss", strconv.FormatFloat(span.Start, 'f', -1, 64),
			"-t", strconv.FormatFloat(span.Duration, 'f', -1, 64),
			"-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le",
			chunkPath,
		}
		if err := RunFFmpeg(args); err != nil {
			set.Close()
			return nil, err
		}
		set.Chunks = append(set.Chunks, AudioChunk{Path: chunkPath, Offset: span.Start, Duration: span.Duration})
	}
	return set, nil
}

// Release deletes the chunk file at index i once its transcription has
// completed. Removal failures are logged, never escalated, and the
// source file is never touched when no split happened.
func (s *ChunkSet) Release(i int) {
	if !s.split || i < 0 || i >= len(s.Chunks) {
		return
	}
	if err := os.Remove(s.Chunks[i].Path); err != nil && !os.IsNotExist(err) {
		log.Printf("cleanup chunk %s: %v", s.Chunks[i].Path, err)
	}
}

// Close removes the temporary chunk directory and anything left in it.
func (s *ChunkSet) Close() {
	if !s.split || s.dir == "" {
		return
	}
	if err := os.RemoveAll(s.dir); err != nil {
		log.Printf("cleanup chunk dir %s: %v", s.dir, err)
	}
}
