package core

import "testing"

func TestPointWindow(t *testing.T) {
	cases := []struct {
		name          string
		ts, pre, len  float64
		wantStart     float64
		wantDuration  float64
	}{
		{"normal", 30.0, 1.0, 5.0, 29.0, 5.0},
		{"clamped at zero", 0.5, 1.0, 5.0, 0.0, 5.0},
		{"exactly at preroll", 1.0, 1.0, 5.0, 0.0, 5.0},
		{"zero timestamp", 0.0, 1.0, 5.0, 0.0, 5.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := PointWindow(c.ts, c.pre, c.len)
			if w.Start != c.wantStart || w.Duration != c.wantDuration {
				t.Errorf("PointWindow(%v, %v, %v) = %+v, want start=%v duration=%v",
					c.ts, c.pre, c.len, w, c.wantStart, c.wantDuration)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	cases := []struct {
		sec  float64
		want string
	}{
		{0, "00:00"},
		{59.9, "00:59"},
		{61, "01:01"},
		{600, "10:00"},
		{-5, "00:00"},
	}
	for _, c := range cases {
		if got := FormatTime(c.sec); got != c.want {
			t.Errorf("FormatTime(%v) = %q, want %q", c.sec, got, c.want)
		}
	}
}
