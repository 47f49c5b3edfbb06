package processors

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"videomosaic/core"
)

// SampleResult is the outcome of keyframe sampling for one video.
type SampleResult struct {
	Frames     []core.Frame
	Stride     int
	FPS        float64
	FPSAssumed bool
}

// SampleFrames extracts every stride-th frame of the video into
// framesDir and reconstructs playback timestamps. A frame-rate probe
// failure degrades to assumedFPS (timestamps lose precision but
// processing continues); an extraction failure is fatal for the video.
func SampleFrames(videoPath, framesDir string, stride int, assumedFPS float64) (*SampleResult, error) {
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	fps, err := ProbeFrameRate(videoPath)
	assumed := false
	if err != nil || fps <= 0 {
		log.Printf("frame rate probe failed for %s (%v), assuming %.0f fps", videoPath, err, assumedFPS)
		fps = assumedFPS
		assumed = true
	}

	pattern := filepath.Join(framesDir, "%05d.jpg")
	args := []string{
		"-y", "-i", videoPath,
		"-vf", fmt.Sprintf("select='not(mod(n,%d))'", stride),
		"-vsync", "vfr",
		"-q:v", "2",
		pattern,
	}
	if err := RunFFmpeg(args); err != nil {
		return nil, err
	}

	frames, err := enumerateFrames(framesDir, stride, fps)
	if err != nil {
		return nil, err
	}
	return &SampleResult{Frames: frames, Stride: stride, FPS: fps, FPSAssumed: assumed}, nil
}

// enumerateFrames lists the extracted jpgs in lexicographic order
// (zero-padded names make that temporal order) and assigns timestamps
// by the reconstruction rule: frame i came from original frame
// i*stride, so timestamp(i) = (i*stride)/fps.
func enumerateFrames(framesDir string, stride int, fps float64) ([]core.Frame, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir: %w", err)
	}
	frames := make([]core.Frame, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".jpg")
		seq, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		// ffmpeg numbers output files from 1.
		i := seq - 1
		if i != len(frames) {
			return nil, fmt.Errorf("frame sequence gap: expected %05d.jpg, found %s", len(frames)+1, e.Name())
		}
		frames = append(frames, core.Frame{
			Index:        i,
			TimestampSec: float64(i*stride) / fps,
			Path:         filepath.Join(framesDir, e.Name()),
		})
	}
	return frames, nil
}

// ExtractAudio pulls the audio track as 16 kHz mono wav, the format
// the transcription service expects.
func ExtractAudio(videoPath, audioOut string) error {
	args := []string{
		"-y", "-i", videoPath,
		"-vn", "-ac", "1", "-ar", "16000",
		"-c:a", "pcm_s16le", "-f", "wav",
		audioOut,
	}
	return RunFFmpeg(args)
}
