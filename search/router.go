package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"videomosaic/config"
	"videomosaic/core"
	"videomosaic/processors"
	"videomosaic/storage"
)

// Request is one retrieval call against a processed video. Query is
// the text for transcript/frame_caption/visual searches; ImagePath
// switches a visual search to query-by-image; AudioPath carries the
// spoken query for the audio modality.
type Request struct {
	VideoID   string        `json:"video_id"`
	Modality  core.Modality `json:"modality"`
	Query     string        `json:"query,omitempty"`
	ImagePath string        `json:"image_path,omitempty"`
	AudioPath string        `json:"audio_path,omitempty"`
	K         int           `json:"top_k,omitempty"`
}

// Engine routes a request to the right index and shapes the hits for
// clip synthesis: transcript hits carry time ranges, frame and visual
// hits carry point timestamps plus a precomputed clip window.
type Engine struct {
	Cfg      *config.Config
	Store    *storage.VideoStore
	Embedder storage.Embedder
	Visual   storage.CrossModalEmbedder
	ASR      processors.ASRProvider
}

func (e *Engine) Search(ctx context.Context, req Request) (*core.SearchResult, error) {
	if req.VideoID == "" {
		return nil, fmt.Errorf("video_id is required")
	}
	k := req.K
	if k <= 0 {
		k = 5
	}
	switch req.Modality {
	case core.ModalityTranscript:
		return e.searchTranscript(ctx, req.VideoID, req.Query, k)
	case core.ModalityFrameCaption:
		return e.searchFrameCaptions(ctx, req.VideoID, req.Query, k)
	case core.ModalityVisual:
		return e.searchVisual(ctx, req, k)
	case core.ModalityAudio:
		return e.searchAudio(ctx, req, k)
	default:
		return nil, fmt.Errorf("unknown modality %q", req.Modality)
	}
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query text is required")
	}
	vecs, err := e.Embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vecs[0], nil
}

func (e *Engine) searchTranscript(ctx context.Context, videoID, query string, k int) (*core.SearchResult, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	docHits, err := e.Store.SearchTranscriptSegments(ctx, videoID, vec, k)
	if err != nil {
		return nil, err
	}
	hits := make([]core.Hit, 0, len(docHits))
	for _, d := range docHits {
		h := core.Hit{Distance: d.Distance, Text: d.Text}
		if start, ok := metaFloat(d.Metadata, "start"); ok {
			h.Start = &start
		}
		if end, ok := metaFloat(d.Metadata, "end"); ok {
			h.End = &end
		}
		hits = append(hits, h)
	}
	sortHits(hits)
	return &core.SearchResult{
		VideoID:  videoID,
		Modality: core.ModalityTranscript,
		Query:    query,
		Hits:     hits,
	}, nil
}

func (e *Engine) searchFrameCaptions(ctx context.Context, videoID, query string, k int) (*core.SearchResult, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	docHits, err := e.Store.SearchFrameCaptions(ctx, videoID, vec, k)
	if err != nil {
		return nil, err
	}
	hits := make([]core.Hit, 0, len(docHits))
	for _, d := range docHits {
		h := core.Hit{Distance: d.Distance, Caption: d.Text}
		if p, ok := d.Metadata["frame_path"].(string); ok {
			h.FramePath = p
		}
		if idx, ok := metaFloat(d.Metadata, "frame_index"); ok {
			h.FrameIndex = int(idx)
		}
		ts, ok := metaFloat(d.Metadata, "timestamp")
		if !ok {
			// Degraded metadata: reconstruct from the frame index at
			// the assumed frame rate rather than dropping the hit.
			ts = float64(h.FrameIndex) / e.Cfg.AssumedFPS
		}
		h.Timestamp = &ts
		win := core.PointWindow(ts, e.Cfg.PreRollSec, e.Cfg.ClipLengthSec)
		h.ClipStart = &win.Start
		h.ClipDuration = &win.Duration
		hits = append(hits, h)
	}
	sortHits(hits)
	return &core.SearchResult{
		VideoID:  videoID,
		Modality: core.ModalityFrameCaption,
		Query:    query,
		Hits:     hits,
	}, nil
}

// searchVisual ranks stored frame embeddings. An image query is gated
// by the similarity threshold: when even the best frame is too far,
// the result is the no-match sentinel instead of misleading hits. Text
// queries are exploratory and return their ranking ungated.
func (e *Engine) searchVisual(ctx context.Context, req Request, k int) (*core.SearchResult, error) {
	if e.Visual == nil {
		return nil, fmt.Errorf("no visual embedding provider configured")
	}
	var (
		vec        []float32
		err        error
		imageQuery bool
	)
	if req.ImagePath != "" {
		imageQuery = true
		vec, err = e.Visual.EmbedImage(ctx, req.ImagePath)
	} else {
		vec, err = e.Visual.EmbedText(ctx, req.Query)
	}
	if err != nil {
		return nil, fmt.Errorf("embed visual query: %w", err)
	}

	idxHits, err := e.Store.SearchVisual(ctx, req.VideoID, vec, k)
	if err != nil {
		return nil, err
	}
	result := &core.SearchResult{
		VideoID:  req.VideoID,
		Modality: core.ModalityVisual,
		Query:    req.Query,
	}
	if len(idxHits) == 0 {
		result.Hits = []core.Hit{}
		return result, nil
	}
	if imageQuery && idxHits[0].Distance > e.Cfg.SimilarityThreshold {
		result.NoMatch = true
		result.BestDistance = idxHits[0].Distance
		result.Message = fmt.Sprintf("no frame within similarity threshold %.1f (best distance %.2f)",
			e.Cfg.SimilarityThreshold, idxHits[0].Distance)
		return result, nil
	}

	manifest, err := core.LoadManifest(e.Cfg.StorageDir, req.VideoID)
	if err != nil {
		return nil, err
	}
	hits := make([]core.Hit, 0, len(idxHits))
	for _, ih := range idxHits {
		if ih.Ordinal < 0 || ih.Ordinal >= len(manifest.Frames) {
			continue
		}
		f := manifest.Frames[ih.Ordinal]
		ts := f.TimestampSec
		win := core.PointWindow(ts, e.Cfg.PreRollSec, e.Cfg.ClipLengthSec)
		hits = append(hits, core.Hit{
			Distance:     ih.Distance,
			Caption:      f.Caption,
			FramePath:    f.Path,
			FrameIndex:   f.Index,
			Timestamp:    &ts,
			ClipStart:    &win.Start,
			ClipDuration: &win.Duration,
		})
	}
	sortHits(hits)
	result.Hits = hits
	return result, nil
}

// searchAudio transcribes the spoken query and routes the text through
// the transcript index. Silent or unintelligible audio is a no-match,
// not an error.
func (e *Engine) searchAudio(ctx context.Context, req Request, k int) (*core.SearchResult, error) {
	if req.AudioPath == "" {
		return nil, fmt.Errorf("audio_path is required for audio search")
	}
	t, err := e.ASR.Transcribe(ctx, req.AudioPath, e.Cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("transcribe query audio: %w", err)
	}
	query := strings.TrimSpace(t.Text)
	if query == "" {
		return &core.SearchResult{
			VideoID:  req.VideoID,
			Modality: core.ModalityAudio,
			NoMatch:  true,
			Message:  "no speech recognized in query audio",
		}, nil
	}
	res, err := e.searchTranscript(ctx, req.VideoID, query, k)
	if err != nil {
		return nil, err
	}
	res.Modality = core.ModalityAudio
	return res, nil
}

// Summarize joins the stored transcript segments and truncates to
// maxWords for a quick content overview.
func (e *Engine) Summarize(ctx context.Context, videoID string, maxWords int) (string, error) {
	segs, err := e.Store.TranscriptSegments(ctx, videoID)
	if err != nil {
		return "", err
	}
	var texts []string
	for _, s := range segs {
		if s.Text != "" {
			texts = append(texts, s.Text)
		}
	}
	full := strings.Join(texts, " ")
	if maxWords <= 0 {
		return full, nil
	}
	words := strings.Fields(full)
	if len(words) <= maxWords {
		return full, nil
	}
	return strings.Join(words[:maxWords], " ") + "...", nil
}

// sortHits orders ascending by distance, preserving backend order on
// ties.
func sortHits(hits []core.Hit) {
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
}

func metaFloat(meta map[string]any, key string) (float64, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
