package core

import (
	"crypto/rand"
	"fmt"
	"math"
)

// NewID returns a random 32-hex-char identifier for jobs.
func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// FormatTime renders seconds as mm:ss for user-facing hit rendering.
func FormatTime(sec float64) string {
	sec = math.Max(sec, 0)
	m := int(sec) / 60
	s := int(sec) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}
