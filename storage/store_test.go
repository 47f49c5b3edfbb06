package storage

import (
	"context"
	"testing"

	"videomosaic/core"
)

func newTestStore(t *testing.T) *VideoStore {
	t.Helper()
	dir := t.TempDir()
	return &VideoStore{
		Index: NewFileIndexBackend(dir),
		Docs:  NewLocalDocBackend(dir),
	}
}

func TestStoreTranscriptLayout(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	segments := []core.Segment{
		{Start: 0, End: 4, Text: "welcome back"},
		{Start: 4, End: 9, Text: "today we cook"},
	}
	vecs := [][]float32{{1, 0}, {0, 1}}
	if err := s.StoreTranscript(ctx, "demo", "welcome back today we cook", segments, []float32{1, 1}, vecs); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Segment search never returns the full-transcript document.
	hits, err := s.SearchTranscriptSegments(ctx, "demo", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 segment hits, got %d", len(hits))
	}
	if hits[0].Text != "welcome back" {
		t.Errorf("closest segment %q", hits[0].Text)
	}
	if start, _ := hits[0].Metadata["start"].(float64); start != 0 {
		t.Errorf("segment start metadata %v", hits[0].Metadata["start"])
	}

	all, err := s.TranscriptSegments(ctx, "demo")
	if err != nil {
		t.Fatalf("all segments: %v", err)
	}
	if len(all) != 2 || all[0].Text != "welcome back" || all[1].Text != "today we cook" {
		t.Errorf("segments out of order: %+v", all)
	}
}

func TestStoreTranscriptVectorCountMismatch(t *testing.T) {
	s := newTestStore(t)
	err := s.StoreTranscript(context.Background(), "demo", "text",
		[]core.Segment{{Text: "a"}}, []float32{1}, nil)
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestStoreFramesMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	frames := []core.Frame{
		{Index: 0, TimestampSec: 0, Path: "f/00001.jpg", Caption: "a kitchen"},
		{Index: 1, TimestampSec: 0.333, Path: "f/00002.jpg", Caption: "a chef"},
	}
	if err := s.StoreFrames(ctx, "demo", frames, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("store: %v", err)
	}
	hits, err := s.SearchFrameCaptions(ctx, "demo", []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	h := hits[0]
	if h.Metadata["frame_path"] != "f/00002.jpg" {
		t.Errorf("frame_path %v", h.Metadata["frame_path"])
	}
	if idx, _ := h.Metadata["frame_index"].(float64); int(idx) != 1 {
		t.Errorf("frame_index %v", h.Metadata["frame_index"])
	}
	if ts, _ := h.Metadata["timestamp"].(float64); ts != 0.333 {
		t.Errorf("timestamp %v", h.Metadata["timestamp"])
	}
}

func TestStoreVisualOrdinalConsistency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	vectors := [][]float32{{0, 0}, {10, 0}, {0, 10}}
	if err := s.StoreVisual(ctx, "demo", vectors); err != nil {
		t.Fatalf("store: %v", err)
	}
	hits, err := s.SearchVisual(ctx, "demo", []float32{9, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Ordinal != 1 {
		t.Errorf("expected ordinal 1 nearest, got %+v", hits)
	}
}

func TestSearchUnindexedVideoReturnsNotIndexed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.SearchVisual(ctx, "ghost", []float32{1}, 5); !core.IsNotIndexed(err) {
		t.Errorf("visual: expected NotIndexedError, got %v", err)
	}
	if _, err := s.SearchTranscriptSegments(ctx, "ghost", []float32{1}, 5); !core.IsNotIndexed(err) {
		t.Errorf("transcript: expected NotIndexedError, got %v", err)
	}
	if _, err := s.SearchFrameCaptions(ctx, "ghost", []float32{1}, 5); !core.IsNotIndexed(err) {
		t.Errorf("captions: expected NotIndexedError, got %v", err)
	}
}

func TestIndexedAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if s.Indexed(ctx, "demo") {
		t.Error("fresh store reports indexed")
	}
	if err := s.StoreVisual(ctx, "demo", [][]float32{{1, 2}}); err != nil {
		t.Fatal(err)
	}
	if !s.Indexed(ctx, "demo") {
		t.Error("stored video not reported indexed")
	}
	if err := s.Clear(ctx, "demo"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.Indexed(ctx, "demo") {
		t.Error("cleared video still reported indexed")
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := HashEmbedder{Dim: 64}
	ctx := context.Background()
	a, err := e.EmbedTexts(ctx, []string{"chopping onions", "chopping onions"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a[0] {
		if a[0][i] != a[1][i] {
			t.Fatal("same text produced different vectors")
		}
	}
	if _, err := e.EmbedTexts(ctx, []string{" "}); err == nil {
		t.Error("expected error for blank text")
	}
}
