package search

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"videomosaic/config"
	"videomosaic/core"
	"videomosaic/processors"
	"videomosaic/storage"
)

// vocabEmbedder maps known phrases to fixed vectors so test distances
// are exact.
type vocabEmbedder struct {
	vocab map[string][]float32
}

func (e vocabEmbedder) lookup(text string) ([]float32, error) {
	v, ok := e.vocab[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (e vocabEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.lookup(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e vocabEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return e.lookup(text)
}

func (e vocabEmbedder) EmbedImage(_ context.Context, imagePath string) ([]float32, error) {
	return e.lookup(imagePath)
}

// fixedASR returns one canned transcription for any input.
type fixedASR struct {
	text string
}

func (f fixedASR) Transcribe(_ context.Context, _, _ string) (*processors.Transcription, error) {
	return &processors.Transcription{Text: f.text}, nil
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		StorageDir:          dir,
		AssumedFPS:          30.0,
		PreRollSec:          1.0,
		ClipLengthSec:       5.0,
		SimilarityThreshold: 15.0,
	}
}

func newTestEngine(t *testing.T, emb vocabEmbedder, asr processors.ASRProvider) (*Engine, *storage.VideoStore) {
	t.Helper()
	dir := t.TempDir()
	store := &storage.VideoStore{
		Index: storage.NewFileIndexBackend(dir),
		Docs:  storage.NewLocalDocBackend(dir),
	}
	return &Engine{
		Cfg:      testConfig(dir),
		Store:    store,
		Embedder: emb,
		Visual:   emb,
		ASR:      asr,
	}, store
}

func TestTranscriptSearchCarriesTimeRanges(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{
		"chopping onions":  {1, 0},
		"full":             {1, 1},
		"we chop onions":   {0.9, 0.1},
		"we plate the dish": {0, 1},
	}}
	e, store := newTestEngine(t, emb, nil)
	ctx := context.Background()

	segs := []core.Segment{
		{Start: 10, End: 15, Text: "we chop onions"},
		{Start: 40, End: 48, Text: "we plate the dish"},
	}
	segVecs := [][]float32{emb.vocab["we chop onions"], emb.vocab["we plate the dish"]}
	if err := store.StoreTranscript(ctx, "demo", "full", segs, emb.vocab["full"], segVecs); err != nil {
		t.Fatal(err)
	}

	res, err := e.Search(ctx, Request{VideoID: "demo", Modality: core.ModalityTranscript, Query: "chopping onions", K: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(res.Hits))
	}
	top := res.Hits[0]
	if top.Text != "we chop onions" {
		t.Errorf("top hit %q", top.Text)
	}
	if top.Start == nil || top.End == nil || *top.Start != 10 || *top.End != 15 {
		t.Errorf("time range missing or wrong: %+v", top)
	}
	if top.Timestamp != nil {
		t.Error("transcript hit should not carry a point timestamp")
	}
	if res.Hits[0].Distance > res.Hits[1].Distance {
		t.Error("hits not ascending by distance")
	}
}

func TestFrameCaptionSearchBuildsClipWindows(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{
		"red car":      {1, 0},
		"a red car":    {1, 0.05},
		"a blue house": {0, 1},
	}}
	e, store := newTestEngine(t, emb, nil)
	ctx := context.Background()

	frames := []core.Frame{
		{Index: 0, TimestampSec: 0.4, Path: "f/00001.jpg", Caption: "a red car"},
		{Index: 1, TimestampSec: 30, Path: "f/00002.jpg", Caption: "a blue house"},
	}
	if err := store.StoreFrames(ctx, "demo", frames, [][]float32{emb.vocab["a red car"], emb.vocab["a blue house"]}); err != nil {
		t.Fatal(err)
	}

	res, err := e.Search(ctx, Request{VideoID: "demo", Modality: core.ModalityFrameCaption, Query: "red car", K: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	top := res.Hits[0]
	if top.Caption != "a red car" || top.FramePath != "f/00001.jpg" {
		t.Errorf("top hit %+v", top)
	}
	if top.Timestamp == nil || *top.Timestamp != 0.4 {
		t.Fatalf("timestamp %v", top.Timestamp)
	}
	// Pre-roll clamps at zero for an early timestamp.
	if top.ClipStart == nil || *top.ClipStart != 0 || *top.ClipDuration != 5 {
		t.Errorf("clip window %v/%v", top.ClipStart, top.ClipDuration)
	}
	second := res.Hits[1]
	if second.ClipStart == nil || *second.ClipStart != 29 {
		t.Errorf("expected pre-rolled start 29, got %v", second.ClipStart)
	}
}

func TestFrameCaptionTimestampFallback(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{"anything": {1, 0}}}
	e, store := newTestEngine(t, emb, nil)
	ctx := context.Background()

	// A degraded document with no timestamp: the engine reconstructs
	// it from the frame index at the assumed frame rate.
	docs := []storage.Document{{
		Ordinal: 0,
		Text:    "old entry",
		Vector:  []float32{1, 0},
		Metadata: map[string]any{
			"type":        "frame",
			"frame_index": 60,
		},
	}}
	if err := store.Docs.Replace(ctx, "frames_demo", docs); err != nil {
		t.Fatal(err)
	}

	res, err := e.Search(ctx, Request{VideoID: "demo", Modality: core.ModalityFrameCaption, Query: "anything", K: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Hits[0].Timestamp == nil || *res.Hits[0].Timestamp != 2.0 {
		t.Errorf("expected fallback timestamp 60/30 = 2.0, got %v", res.Hits[0].Timestamp)
	}
}

func storeVisualFixture(t *testing.T, e *Engine, store *storage.VideoStore, vectors [][]float32) {
	t.Helper()
	ctx := context.Background()
	if err := store.StoreVisual(ctx, "demo", vectors); err != nil {
		t.Fatal(err)
	}
	frames := make([]core.Frame, len(vectors))
	for i := range frames {
		frames[i] = core.Frame{
			Index:        i,
			TimestampSec: float64(i) * 2,
			Path:         fmt.Sprintf("f/%05d.jpg", i+1),
			Caption:      fmt.Sprintf("scene %d", i),
		}
	}
	if err := core.SaveManifest(e.Cfg.StorageDir, &core.FrameManifest{
		VideoID: "demo", Stride: 10, FPS: 30, Frames: frames,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestVisualImageSearchWithinThreshold(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{
		"query.jpg": {1.5, 0},
	}}
	e, store := newTestEngine(t, emb, nil)
	storeVisualFixture(t, e, store, [][]float32{{0, 0}, {2, 0}})

	res, err := e.Search(context.Background(), Request{VideoID: "demo", Modality: core.ModalityVisual, ImagePath: "query.jpg", K: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.NoMatch {
		t.Fatalf("unexpected no-match: %s", res.Message)
	}
	top := res.Hits[0]
	// Squared L2: (2,0) is at distance 0.25 from the query, (0,0) at 2.25.
	if top.FrameIndex != 1 || top.FramePath != "f/00002.jpg" {
		t.Errorf("top hit %+v", top)
	}
	if top.Timestamp == nil || *top.Timestamp != 2 {
		t.Errorf("timestamp %v", top.Timestamp)
	}
	if top.ClipStart == nil || *top.ClipStart != 1 || *top.ClipDuration != 5 {
		t.Errorf("clip window %v/%v", top.ClipStart, top.ClipDuration)
	}
}

func TestVisualImageSearchBeyondThresholdIsNoMatch(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{
		"query.jpg": {10, 0},
	}}
	e, store := newTestEngine(t, emb, nil)
	// Best candidate sits at squared distance 16, past the 15.0 cutoff.
	storeVisualFixture(t, e, store, [][]float32{{6, 0}, {0, 0}})

	res, err := e.Search(context.Background(), Request{VideoID: "demo", Modality: core.ModalityVisual, ImagePath: "query.jpg", K: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.NoMatch {
		t.Fatalf("expected no-match sentinel, got hits %+v", res.Hits)
	}
	if res.BestDistance != 16 {
		t.Errorf("best distance %v, want 16", res.BestDistance)
	}
	if len(res.Hits) != 0 {
		t.Errorf("no-match result should carry no hits, got %d", len(res.Hits))
	}
}

func TestVisualTextSearchIsUngated(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{
		"a red car": {10, 0},
	}}
	e, store := newTestEngine(t, emb, nil)
	storeVisualFixture(t, e, store, [][]float32{{6, 0}})

	res, err := e.Search(context.Background(), Request{VideoID: "demo", Modality: core.ModalityVisual, Query: "a red car", K: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Same distance that gates an image query passes a text query
	// through: text queries are exploratory.
	if res.NoMatch || len(res.Hits) != 1 {
		t.Errorf("expected ungated hit, got %+v", res)
	}
}

func TestAudioSearchRoutesToTranscript(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{
		"find the recipe": {1, 0},
		"full":            {1, 1},
		"the recipe uses salt": {0.9, 0},
	}}
	e, store := newTestEngine(t, emb, fixedASR{text: "find the recipe"})
	ctx := context.Background()
	segs := []core.Segment{{Start: 3, End: 8, Text: "the recipe uses salt"}}
	if err := store.StoreTranscript(ctx, "demo", "full", segs, emb.vocab["full"],
		[][]float32{emb.vocab["the recipe uses salt"]}); err != nil {
		t.Fatal(err)
	}

	res, err := e.Search(ctx, Request{VideoID: "demo", Modality: core.ModalityAudio, AudioPath: "query.wav"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Modality != core.ModalityAudio {
		t.Errorf("modality %s", res.Modality)
	}
	if len(res.Hits) != 1 || res.Hits[0].Text != "the recipe uses salt" {
		t.Errorf("hits %+v", res.Hits)
	}
}

func TestAudioSearchNoSpeechIsNoMatch(t *testing.T) {
	e, _ := newTestEngine(t, vocabEmbedder{}, fixedASR{text: "   "})
	res, err := e.Search(context.Background(), Request{VideoID: "demo", Modality: core.ModalityAudio, AudioPath: "silence.wav"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.NoMatch {
		t.Error("expected no-match for silent query audio")
	}
}

func TestSearchUnindexedVideo(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{"q": {1}}}
	e, _ := newTestEngine(t, emb, nil)
	_, err := e.Search(context.Background(), Request{VideoID: "ghost", Modality: core.ModalityTranscript, Query: "q"})
	if !core.IsNotIndexed(err) {
		t.Errorf("expected NotIndexedError, got %v", err)
	}
}

func TestSummarizeTruncatesToWordLimit(t *testing.T) {
	emb := vocabEmbedder{vocab: map[string][]float32{"full": {1}, "one two three": {1}, "four five six": {1}}}
	e, store := newTestEngine(t, emb, nil)
	ctx := context.Background()
	segs := []core.Segment{
		{Start: 0, End: 2, Text: "one two three"},
		{Start: 2, End: 4, Text: "four five six"},
	}
	if err := store.StoreTranscript(ctx, "demo", "full", segs, []float32{1}, [][]float32{{1}, {1}}); err != nil {
		t.Fatal(err)
	}
	sum, err := e.Summarize(ctx, "demo", 4)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum != "one two three four..." {
		t.Errorf("summary %q", sum)
	}
	full, err := e.Summarize(ctx, "demo", 0)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(full, "...") || full != "one two three four five six" {
		t.Errorf("full summary %q", full)
	}
}
