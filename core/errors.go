package core

import (
	"errors"
	"fmt"
	"strings"
)

// ExtractionError reports a non-zero exit from an external media tool.
// It carries the tool's diagnostic output because ffmpeg writes the
// useful part of its failure to stderr.
type ExtractionError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ExtractionError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, out)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NotIndexedError is the expected-absence result for querying a video
// whose collections were never written. It is recoverable: process the
// video and retry.
type NotIndexedError struct {
	VideoID  string
	Modality Modality
}

func (e *NotIndexedError) Error() string {
	return fmt.Sprintf("video %q has no %s index; process it first", e.VideoID, e.Modality)
}

// IsNotIndexed reports whether err is a NotIndexedError.
func IsNotIndexed(err error) bool {
	var nie *NotIndexedError
	return errors.As(err, &nie)
}

// ErrJobActive rejects a second ingestion request for a video whose
// collections are currently being overwritten.
var ErrJobActive = errors.New("an ingestion job is already active for this video")

// ErrUnknownJob is returned when polling a job id that was never started.
var ErrUnknownJob = errors.New("unknown job id")
