package storage

import (
	"context"
	"errors"
	"fmt"

	"videomosaic/core"
)

// VideoStore owns the collection naming and metadata conventions for
// one deployment: a visual vector index plus two document collections
// per video. Every Store* call fully overwrites its collection, so
// re-processing a video replaces stale entries instead of appending.
type VideoStore struct {
	Index IndexBackend
	Docs  DocBackend
}

func visualName(videoID string) string     { return "visual_" + videoID }
func transcriptName(videoID string) string { return "video_" + videoID }
func framesName(videoID string) string     { return "frames_" + videoID }

// StoreVisual writes the per-frame image embeddings. Vector i must
// embed frame i of the manifest; search results come back as ordinals
// resolved against that manifest.
func (s *VideoStore) StoreVisual(ctx context.Context, videoID string, vectors [][]float32) error {
	if err := s.Index.Replace(ctx, visualName(videoID), vectors); err != nil {
		return fmt.Errorf("store visual index for %s: %w", videoID, err)
	}
	return nil
}

// StoreTranscript writes the transcript collection: document 0 is the
// full transcript, documents 1..n are the individual segments with
// their time ranges. The full transcript spans start 0 to the last
// segment's end.
func (s *VideoStore) StoreTranscript(ctx context.Context, videoID, transcript string, segments []core.Segment, transcriptVec []float32, segmentVecs [][]float32) error {
	if len(segmentVecs) != len(segments) {
		return fmt.Errorf("store transcript for %s: %d vectors for %d segments", videoID, len(segmentVecs), len(segments))
	}
	var end float64
	if len(segments) > 0 {
		end = segments[len(segments)-1].End
	}
	docs := make([]Document, 0, len(segments)+1)
	docs = append(docs, Document{
		Ordinal: 0,
		Text:    transcript,
		Vector:  transcriptVec,
		Metadata: map[string]any{
			"type":  "transcript",
			"start": 0.0,
			"end":   end,
		},
	})
	for i, seg := range segments {
		docs = append(docs, Document{
			Ordinal: i + 1,
			Text:    seg.Text,
			Vector:  segmentVecs[i],
			Metadata: map[string]any{
				"type":  "transcript_segment",
				"start": seg.Start,
				"end":   seg.End,
			},
		})
	}
	if err := s.Docs.Replace(ctx, transcriptName(videoID), docs); err != nil {
		return fmt.Errorf("store transcript for %s: %w", videoID, err)
	}
	return nil
}

// StoreFrames writes the caption collection, one document per frame in
// manifest order.
func (s *VideoStore) StoreFrames(ctx context.Context, videoID string, frames []core.Frame, captionVecs [][]float32) error {
	if len(captionVecs) != len(frames) {
		return fmt.Errorf("store frames for %s: %d vectors for %d frames", videoID, len(captionVecs), len(frames))
	}
	docs := make([]Document, 0, len(frames))
	for i, f := range frames {
		docs = append(docs, Document{
			Ordinal: i,
			Text:    f.Caption,
			Vector:  captionVecs[i],
			Metadata: map[string]any{
				"type":        "frame",
				"frame_path":  f.Path,
				"frame_index": f.Index,
				"timestamp":   f.TimestampSec,
				"caption":     f.Caption,
			},
		})
	}
	if err := s.Docs.Replace(ctx, framesName(videoID), docs); err != nil {
		return fmt.Errorf("store frames for %s: %w", videoID, err)
	}
	return nil
}

func (s *VideoStore) notIndexed(err error, videoID string, modality core.Modality) error {
	if errors.Is(err, ErrCollectionMissing) {
		return &core.NotIndexedError{VideoID: videoID, Modality: modality}
	}
	return err
}

// SearchVisual ranks stored frame embeddings against the query vector.
func (s *VideoStore) SearchVisual(ctx context.Context, videoID string, vector []float32, k int) ([]IndexHit, error) {
	hits, err := s.Index.Search(ctx, visualName(videoID), vector, k)
	if err != nil {
		return nil, s.notIndexed(err, videoID, core.ModalityVisual)
	}
	return hits, nil
}

// SearchTranscriptSegments queries only the segment documents,
// excluding the full-transcript document from ranking.
func (s *VideoStore) SearchTranscriptSegments(ctx context.Context, videoID string, vector []float32, k int) ([]DocHit, error) {
	hits, err := s.Docs.Query(ctx, transcriptName(videoID), vector, k,
		map[string]any{"type": "transcript_segment"})
	if err != nil {
		return nil, s.notIndexed(err, videoID, core.ModalityTranscript)
	}
	return hits, nil
}

// SearchFrameCaptions queries the caption collection.
func (s *VideoStore) SearchFrameCaptions(ctx context.Context, videoID string, vector []float32, k int) ([]DocHit, error) {
	hits, err := s.Docs.Query(ctx, framesName(videoID), vector, k,
		map[string]any{"type": "frame"})
	if err != nil {
		return nil, s.notIndexed(err, videoID, core.ModalityFrameCaption)
	}
	return hits, nil
}

// TranscriptSegments returns all stored segments in time order, for
// summaries and full-transcript retrieval.
func (s *VideoStore) TranscriptSegments(ctx context.Context, videoID string) ([]DocHit, error) {
	hits, err := s.Docs.All(ctx, transcriptName(videoID),
		map[string]any{"type": "transcript_segment"})
	if err != nil {
		return nil, s.notIndexed(err, videoID, core.ModalityTranscript)
	}
	return hits, nil
}

// Indexed reports whether the video has any searchable collection.
func (s *VideoStore) Indexed(ctx context.Context, videoID string) bool {
	if ok, _ := s.Index.Has(ctx, visualName(videoID)); ok {
		return true
	}
	if ok, _ := s.Docs.Has(ctx, transcriptName(videoID)); ok {
		return true
	}
	ok, _ := s.Docs.Has(ctx, framesName(videoID))
	return ok
}

// Clear removes every collection belonging to the video.
func (s *VideoStore) Clear(ctx context.Context, videoID string) error {
	var firstErr error
	if err := s.Index.Drop(ctx, visualName(videoID)); err != nil {
		firstErr = err
	}
	if err := s.Docs.Drop(ctx, transcriptName(videoID)); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Docs.Drop(ctx, framesName(videoID)); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
