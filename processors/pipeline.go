package processors

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"videomosaic/config"
	"videomosaic/core"
	"videomosaic/storage"
)

// Pipeline runs the full ingestion for one video: sample frames,
// extract and transcribe audio, caption frames, embed everything and
// overwrite the video's collections. Failures split into two classes:
// extraction failures abort the job, per-item provider failures
// degrade (fallback captions, skipped chunks) and surface as warnings.
type Pipeline struct {
	Cfg        *config.Config
	Store      *storage.VideoStore
	Registry   *core.Registry
	ASR        ASRProvider
	Captioner  Captioner
	Embedder   storage.Embedder
	Visual     storage.CrossModalEmbedder
	Dispatcher *core.Dispatcher

	// Overridable ffmpeg steps, nil means the real tool.
	sampleFn  func(videoPath, framesDir string, stride int, assumedFPS float64) (*SampleResult, error)
	extractFn func(videoPath, audioOut string) error
	splitFn   func(audioPath string, maxChunkSeconds float64, uploadLimitMB int64) (*ChunkSet, error)
}

func (p *Pipeline) sample(videoPath, framesDir string, stride int, assumedFPS float64) (*SampleResult, error) {
	if p.sampleFn != nil {
		return p.sampleFn(videoPath, framesDir, stride, assumedFPS)
	}
	return SampleFrames(videoPath, framesDir, stride, assumedFPS)
}

func (p *Pipeline) extract(videoPath, audioOut string) error {
	if p.extractFn != nil {
		return p.extractFn(videoPath, audioOut)
	}
	return ExtractAudio(videoPath, audioOut)
}

func (p *Pipeline) split(audioPath string, maxChunkSeconds float64, uploadLimitMB int64) (*ChunkSet, error) {
	if p.splitFn != nil {
		return p.splitFn(audioPath, maxChunkSeconds, uploadLimitMB)
	}
	return SplitAudio(audioPath, maxChunkSeconds, uploadLimitMB)
}

// Process ingests the video at path under videoID. Phases run in a
// fixed order; the visual index, transcript collection and caption
// collection are each written as soon as their inputs are ready, so a
// late failure leaves the earlier modalities searchable.
func (p *Pipeline) Process(ctx context.Context, videoID, path string) (*core.ProcessResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video not found: %w", err)
	}
	result := &core.ProcessResult{VideoID: videoID}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Printf("process %s: %s", videoID, msg)
		result.Warnings = append(result.Warnings, msg)
	}

	if err := p.Registry.Put(core.VideoRecord{VideoID: videoID, Path: path, Status: core.JobProcessing}); err != nil {
		return nil, fmt.Errorf("register video: %w", err)
	}
	fail := func(err error) (*core.ProcessResult, error) {
		if rerr := p.Registry.SetStatus(videoID, core.JobFailed); rerr != nil {
			log.Printf("process %s: update status: %v", videoID, rerr)
		}
		return nil, err
	}

	videoDir := filepath.Join(p.Cfg.StorageDir, videoID)
	framesDir := filepath.Join(videoDir, "frames")

	// Frame sampling.
	sample, err := p.sample(path, framesDir, p.Cfg.FrameStride, p.Cfg.AssumedFPS)
	if err != nil {
		return fail(fmt.Errorf("sample frames: %w", err))
	}
	frames := sample.Frames
	result.FramesExtracted = len(frames)
	if err := core.SaveManifest(p.Cfg.StorageDir, &core.FrameManifest{
		VideoID: videoID,
		Stride:  sample.Stride,
		FPS:     sample.FPS,
		Frames:  frames,
	}); err != nil {
		return fail(fmt.Errorf("save frame manifest: %w", err))
	}

	// Visual embeddings index frames for image and cross-modal text
	// queries. Provider failure drops the modality, not the job.
	if p.Visual != nil {
		if err := p.indexVisual(ctx, videoID, frames); err != nil {
			warn("visual indexing skipped: %v", err)
		}
	}

	// Audio extraction and transcription. Extraction and chunking run
	// ffmpeg on the source; a tool failure here means the video itself
	// is bad, so the job fails rather than completing without audio.
	audioPath := filepath.Join(videoDir, "audio.wav")
	if err := p.extract(path, audioPath); err != nil {
		return fail(fmt.Errorf("extract audio: %w", err))
	}
	set, err := p.split(audioPath, p.Cfg.ChunkSeconds, p.Cfg.UploadLimitMB)
	if err != nil {
		return fail(fmt.Errorf("chunk audio: %w", err))
	}
	transcript, segments, tw := AssembleTranscript(ctx, set, p.ASR, p.Cfg.Language, p.Dispatcher)
	result.Warnings = append(result.Warnings, tw...)
	set.Close()
	result.Transcript = transcript
	result.TranscriptLength = len(transcript)
	result.SegmentsCount = len(segments)

	if len(segments) > 0 {
		if err := p.indexTranscript(ctx, videoID, transcript, segments); err != nil {
			warn("transcript indexing failed: %v", err)
		}
	}

	// Captioning plus dense interpolation, then the caption collection.
	if len(frames) > 0 {
		frames, result.FramesCaptioned = CaptionFrames(ctx, frames, p.Captioner, p.Cfg.CaptionInterval, p.Dispatcher)
		if err := core.SaveManifest(p.Cfg.StorageDir, &core.FrameManifest{
			VideoID: videoID,
			Stride:  sample.Stride,
			FPS:     sample.FPS,
			Frames:  frames,
		}); err != nil {
			return fail(fmt.Errorf("save captioned manifest: %w", err))
		}
		if err := p.indexCaptions(ctx, videoID, frames); err != nil {
			warn("caption indexing failed: %v", err)
		}
	}

	if err := p.Registry.Put(core.VideoRecord{
		VideoID:    videoID,
		Path:       path,
		FrameCount: len(frames),
		Status:     core.JobCompleted,
	}); err != nil {
		return nil, fmt.Errorf("update registry: %w", err)
	}
	return result, nil
}

func (p *Pipeline) indexVisual(ctx context.Context, videoID string, frames []core.Frame) error {
	if len(frames) == 0 {
		return nil
	}
	vectors := make([][]float32, len(frames))
	errs := p.Dispatcher.Run(ctx, len(frames), func(ctx context.Context, i int) error {
		v, err := p.Visual.EmbedImage(ctx, frames[i].Path)
		if err != nil {
			return err
		}
		vectors[i] = v
		return nil
	})
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("embed frame %d: %w", i, err)
		}
	}
	return p.Store.StoreVisual(ctx, videoID, vectors)
}

func (p *Pipeline) indexTranscript(ctx context.Context, videoID, transcript string, segments []core.Segment) error {
	texts := make([]string, 0, len(segments)+1)
	texts = append(texts, transcript)
	kept := make([]core.Segment, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		kept = append(kept, seg)
		texts = append(texts, seg.Text)
	}
	vecs, err := p.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed transcript: %w", err)
	}
	return p.Store.StoreTranscript(ctx, videoID, transcript, kept, vecs[0], vecs[1:])
}

func (p *Pipeline) indexCaptions(ctx context.Context, videoID string, frames []core.Frame) error {
	texts := make([]string, len(frames))
	for i, f := range frames {
		texts[i] = f.Caption
	}
	vecs, err := p.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed captions: %w", err)
	}
	return p.Store.StoreFrames(ctx, videoID, frames, vecs)
}
