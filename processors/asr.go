package processors

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videomosaic/core"
)

// Transcription is one chunk's speech-to-text result with chunk-local
// timestamps.
type Transcription struct {
	Text     string
	Segments []core.Segment
}

// ASRProvider transcribes a single audio file.
type ASRProvider interface {
	Transcribe(ctx context.Context, audioPath, language string) (*Transcription, error)
}

// WhisperASR calls an OpenAI-compatible transcription endpoint with
// verbose JSON output so segment timestamps come back with the text.
type WhisperASR struct {
	cli   *openai.Client
	model string
}

func NewWhisperASR(cli *openai.Client, model string) WhisperASR {
	return WhisperASR{cli: cli, model: model}
}

func (w WhisperASR) Transcribe(ctx context.Context, audioPath, language string) (*Transcription, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	resp, err := w.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, err
	}
	t := &Transcription{Text: strings.TrimSpace(resp.Text)}
	for _, seg := range resp.Segments {
		t.Segments = append(t.Segments, core.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	if len(t.Segments) == 0 && t.Text != "" {
		t.Segments = []core.Segment{{Start: 0, End: resp.Duration, Text: t.Text}}
	}
	return t, nil
}

// MockASR produces placeholder segments from the audio duration; it
// keeps the pipeline runnable without any API configuration.
type MockASR struct{}

func (MockASR) Transcribe(_ context.Context, audioPath, _ string) (*Transcription, error) {
	dur, err := ProbeDuration(audioPath)
	if err != nil {
		return nil, err
	}
	const segLen = 15.0
	t := &Transcription{}
	texts := make([]string, 0)
	for start := 0.0; start < dur; start += segLen {
		end := start + segLen
		if end > dur {
			end = dur
		}
		text := fmt.Sprintf("Placeholder transcript from %.0fs to %.0fs", start, end)
		t.Segments = append(t.Segments, core.Segment{Start: start, End: end, Text: text})
		texts = append(texts, text)
	}
	t.Text = strings.Join(texts, " ")
	return t, nil
}

// AssembleTranscript transcribes every chunk in order and merges the
// results into one absolute-time segment sequence. Segment timestamps
// are shifted by their chunk's offset; a failed chunk is skipped with
// a warning so a partial transcript still indexes. Chunk files are
// released as soon as their transcription finishes. The dispatcher
// bounds concurrency and paces calls against the service's rate limit;
// results are merged in chunk order regardless of completion order.
func AssembleTranscript(ctx context.Context, set *ChunkSet, asr ASRProvider, language string, disp *core.Dispatcher) (string, []core.Segment, []string) {
	results := make([]*Transcription, len(set.Chunks))
	errs := disp.Run(ctx, len(set.Chunks), func(ctx context.Context, i int) error {
		t, err := asr.Transcribe(ctx, set.Chunks[i].Path, language)
		set.Release(i)
		if err != nil {
			return err
		}
		results[i] = t
		return nil
	})

	var warnings []string
	var texts []string
	var segments []core.Segment
	for i, t := range results {
		if errs[i] != nil {
			log.Printf("transcription failed for chunk %d (offset %.0fs): %v", i, set.Chunks[i].Offset, errs[i])
			warnings = append(warnings, fmt.Sprintf("chunk %d transcription failed: %v", i, errs[i]))
			continue
		}
		if t.Text != "" {
			texts = append(texts, t.Text)
		}
		offset := set.Chunks[i].Offset
		for _, seg := range t.Segments {
			segments = append(segments, core.Segment{
				Start: seg.Start + offset,
				End:   seg.End + offset,
				Text:  seg.Text,
			})
		}
	}
	return strings.Join(texts, " "), segments, warnings
}
