package processors

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"30/1", 30, false},
		{"30000/1001", 29.97002997002997, false},
		{"25", 25, false},
		{" 24/1\n", 24, false},
		{"0/0", 0, true},
		{"garbage", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := parseFrameRate(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseFrameRate(%q): expected error, got %v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseFrameRate(%q): %v", c.in, err)
			continue
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("parseFrameRate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func writeFrameFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("jpg"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEnumerateFramesTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeFrameFiles(t, dir, "00001.jpg", "00002.jpg", "00003.jpg", "00004.jpg", "00005.jpg", "00006.jpg")

	frames, err := enumerateFrames(dir, 10, 30.0)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(frames) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(frames))
	}
	// Sampled frame i came from original frame i*stride.
	for i, f := range frames {
		if f.Index != i {
			t.Errorf("frame %d: index %d", i, f.Index)
		}
		want := float64(i*10) / 30.0
		if math.Abs(f.TimestampSec-want) > 1e-9 {
			t.Errorf("frame %d: timestamp %v, want %v", i, f.TimestampSec, want)
		}
	}
	// Frame 5 at stride 10, 30 fps lands at 50/30 seconds.
	if want := 50.0 / 30.0; math.Abs(frames[5].TimestampSec-want) > 1e-9 {
		t.Errorf("frame 5 timestamp %v, want %v", frames[5].TimestampSec, want)
	}
}

func TestEnumerateFramesDetectsGap(t *testing.T) {
	dir := t.TempDir()
	writeFrameFiles(t, dir, "00001.jpg", "00003.jpg")
	if _, err := enumerateFrames(dir, 10, 30.0); err == nil {
		t.Fatal("expected sequence gap error")
	}
}

func TestEnumerateFramesIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeFrameFiles(t, dir, "00001.jpg", "00002.jpg")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	frames, err := enumerateFrames(dir, 10, 30.0)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("expected 2 frames, got %d", len(frames))
	}
}
