package processors

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videomosaic/core"
)

// Captioner produces one descriptive sentence for a frame image.
type Captioner interface {
	Caption(ctx context.Context, imagePath string, timestamp float64) (string, error)
}

// VisionCaptioner asks a vision chat model to describe a frame. The
// image travels inline as a base64 data URL.
type VisionCaptioner struct {
	cli   *openai.Client
	model string
}

func NewVisionCaptioner(cli *openai.Client, model string) VisionCaptioner {
	return VisionCaptioner{cli: cli, model: model}
}

func (v VisionCaptioner) Caption(ctx context.Context, imagePath string, timestamp float64) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	prompt := fmt.Sprintf("Describe this video frame at %.1f seconds in one concise sentence. "+
		"Focus on: people, actions, objects, scene, text visible. Be specific and descriptive for search purposes.", timestamp)
	resp, err := v.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
		MaxTokens:   150,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty captioning response")
	}
	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", fmt.Errorf("empty caption")
	}
	return caption, nil
}

// MockCaptioner returns deterministic captions for offline runs.
type MockCaptioner struct{}

func (MockCaptioner) Caption(_ context.Context, _ string, timestamp float64) (string, error) {
	return fmt.Sprintf("Video frame at %.1fs", timestamp), nil
}

// FallbackCaption is the deterministic caption used when the
// captioning service fails for a frame. It embeds the timestamp and is
// never empty: downstream embedding generation rejects empty text.
func FallbackCaption(index int, timestamp float64) string {
	return fmt.Sprintf("Video frame %d at %.1fs", index+1, timestamp)
}

// ExpandCaptions densifies sparse captions (one per interval-th frame)
// to all n frames. Frame i inherits the caption of the nearest
// preceding sampled index: sparse[min(i/interval, len(sparse)-1)].
func ExpandCaptions(sparse []string, n, interval int) []string {
	if n <= 0 || len(sparse) == 0 {
		return nil
	}
	dense := make([]string, n)
	for i := 0; i < n; i++ {
		idx := i / interval
		if idx >= len(sparse) {
			idx = len(sparse) - 1
		}
		dense[i] = sparse[idx]
	}
	return dense
}

// CaptionFrames captions every interval-th frame through the
// rate-limited dispatcher and fills the rest by interpolation. The
// scene changes slowly relative to the sampling stride, so inheriting
// the nearest preceding caption is an acceptable stand-in for the cost
// of captioning every frame. Returns the frames with captions set and
// the count of directly captioned frames.
func CaptionFrames(ctx context.Context, frames []core.Frame, captioner Captioner, interval int, disp *core.Dispatcher) ([]core.Frame, int) {
	if len(frames) == 0 {
		return frames, 0
	}
	sampled := make([]int, 0, (len(frames)+interval-1)/interval)
	for i := 0; i < len(frames); i += interval {
		sampled = append(sampled, i)
	}

	sparse := make([]string, len(sampled))
	errs := disp.Run(ctx, len(sampled), func(ctx context.Context, k int) error {
		f := frames[sampled[k]]
		caption, err := captioner.Caption(ctx, f.Path, f.TimestampSec)
		if err != nil {
			return err
		}
		sparse[k] = caption
		return nil
	})
	for k, err := range errs {
		if err != nil {
			f := frames[sampled[k]]
			log.Printf("captioning failed for frame %d: %v", f.Index, err)
			sparse[k] = FallbackCaption(f.Index, f.TimestampSec)
		}
	}

	dense := ExpandCaptions(sparse, len(frames), interval)
	for i := range frames {
		frames[i].Caption = dense[i]
		frames[i].Captioned = i%interval == 0
	}
	return frames, len(sampled)
}
