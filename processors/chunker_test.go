package processors

import (
	"math"
	"testing"
)

func TestPlanChunksPartitions(t *testing.T) {
	cases := []struct {
		total, chunk float64
		wantOffsets  []float64
	}{
		{1500, 600, []float64{0, 600, 1200}},
		{600, 600, []float64{0}},
		{599.5, 600, []float64{0}},
		{601, 600, []float64{0, 600}},
	}
	for _, c := range cases {
		spans := planChunks(c.total, c.chunk)
		if len(spans) != len(c.wantOffsets) {
			t.Errorf("planChunks(%v, %v): %d spans, want %d", c.total, c.chunk, len(spans), len(c.wantOffsets))
			continue
		}
		var covered float64
		for i, s := range spans {
			if math.Abs(s.Start-c.wantOffsets[i]) > 1e-9 {
				t.Errorf("planChunks(%v, %v) span %d starts at %v, want %v", c.total, c.chunk, i, s.Start, c.wantOffsets[i])
			}
			if math.Abs(s.Start-covered) > 1e-9 {
				t.Errorf("planChunks(%v, %v) span %d leaves a gap: start %v after %v covered", c.total, c.chunk, i, s.Start, covered)
			}
			if s.Duration <= 0 || s.Duration > c.chunk+1e-9 {
				t.Errorf("planChunks(%v, %v) span %d has duration %v", c.total, c.chunk, i, s.Duration)
			}
			covered += s.Duration
		}
		if math.Abs(covered-c.total) > 1e-9 {
			t.Errorf("planChunks(%v, %v) covers %v seconds", c.total, c.chunk, covered)
		}
	}
}

func TestPlanChunksEmpty(t *testing.T) {
	if spans := planChunks(0, 600); spans != nil {
		t.Errorf("expected nil plan for zero duration, got %v", spans)
	}
	if spans := planChunks(-3, 600); spans != nil {
		t.Errorf("expected nil plan for negative duration, got %v", spans)
	}
}
