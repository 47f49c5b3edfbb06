package processors

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"videomosaic/core"
)

// RunFFmpeg executes ffmpeg with the given arguments, capturing stderr
// so a failure surfaces the tool's diagnostics instead of a bare exit
// code.
func RunFFmpeg(args []string) error {
	cmd := exec.Command("ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &core.ExtractionError{Tool: "ffmpeg", Output: tailLines(stderr.String(), 10), Err: err}
	}
	return nil
}

func runFFprobe(args ...string) (string, error) {
	cmd := exec.Command("ffprobe", args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &core.ExtractionError{Tool: "ffprobe", Output: tailLines(stderr.String(), 10), Err: err}
	}
	return strings.TrimSpace(out.String()), nil
}

// ProbeDuration returns the container duration in seconds.
func ProbeDuration(path string) (float64, error) {
	s, err := runFFprobe("-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return d, nil
}

// ProbeFrameRate returns the source frame rate of the first video
// stream. ffprobe reports it as a rational like "30000/1001".
func ProbeFrameRate(path string) (float64, error) {
	s, err := runFFprobe("-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate", "-of", "csv=p=0", path)
	if err != nil {
		return 0, err
	}
	return parseFrameRate(s)
}

func parseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("parse frame rate %q: zero denominator", s)
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("parse frame rate %q", s)
	}
	return f, nil
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
