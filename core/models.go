package core

import "time"

// Modality is an independently searchable facet of a video.
type Modality string

const (
	ModalityTranscript   Modality = "transcript"
	ModalityFrameCaption Modality = "frame_caption"
	ModalityVisual       Modality = "visual"
	ModalityAudio        Modality = "audio"
)

// Frame is one sampled still from the source video. Index is the
// 0-based position in sampling order; the original frame number is
// Index*stride and the timestamp is (Index*stride)/fps.
type Frame struct {
	Index        int     `json:"frame_index"`
	TimestampSec float64 `json:"timestamp_sec"`
	Path         string  `json:"path"`
	Caption      string  `json:"caption,omitempty"`
	Captioned    bool    `json:"is_directly_captioned"`
}

// Segment is one offset-corrected transcript span.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Hit is one similarity-search result. Exactly one of {Start,End} or
// {Timestamp} is set: transcript hits carry a time range, frame and
// caption hits carry a point timestamp. Distance is lower-is-better.
type Hit struct {
	Distance     float64  `json:"distance"`
	Text         string   `json:"text,omitempty"`
	Caption      string   `json:"caption,omitempty"`
	FramePath    string   `json:"frame_path,omitempty"`
	FrameIndex   int      `json:"frame_index,omitempty"`
	Start        *float64 `json:"start,omitempty"`
	End          *float64 `json:"end,omitempty"`
	Timestamp    *float64 `json:"timestamp,omitempty"`
	ClipStart    *float64 `json:"clip_start,omitempty"`
	ClipDuration *float64 `json:"clip_duration,omitempty"`
}

// ClipWindow is the concrete trim window derived from a hit. It is
// computed on demand and never persisted.
type ClipWindow struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// PointWindow applies the pre-roll rule for a point timestamp.
func PointWindow(timestamp, preRoll, clipLength float64) ClipWindow {
	start := timestamp - preRoll
	if start < 0 {
		start = 0
	}
	return ClipWindow{Start: start, Duration: clipLength}
}

// SearchResult wraps the hits for one query. NoMatch is the sentinel
// for image searches whose best candidate exceeded the similarity
// threshold; callers must check it before generating clips.
type SearchResult struct {
	VideoID      string   `json:"video_id"`
	Modality     Modality `json:"modality"`
	Query        string   `json:"query,omitempty"`
	Hits         []Hit    `json:"hits"`
	NoMatch      bool     `json:"no_match,omitempty"`
	Message      string   `json:"message,omitempty"`
	BestDistance float64  `json:"best_distance,omitempty"`
}

// ProcessResult is the ingestion job summary returned to callers.
type ProcessResult struct {
	VideoID          string   `json:"video_id"`
	FramesExtracted  int      `json:"frames_extracted"`
	FramesCaptioned  int      `json:"frames_captioned"`
	TranscriptLength int      `json:"transcript_length"`
	SegmentsCount    int      `json:"segments_count"`
	Transcript       string   `json:"transcript"`
	Warnings         []string `json:"warnings,omitempty"`
}

// ClipResult reports clip synthesis for a batch of hits. Produced may
// be lower than Processed; filename indices keep the gaps so callers
// can correlate failures with their input hits.
type ClipResult struct {
	Processed int      `json:"hits_processed"`
	Produced  int      `json:"clips_generated"`
	ClipPaths []string `json:"clip_paths"`
	Skipped   []int    `json:"skipped_hits,omitempty"`
	Failed    []int    `json:"failed_hits,omitempty"`
}

// Job statuses for a background ingestion job.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// JobRecord is the pollable status of one fire-and-forget ingestion.
type JobRecord struct {
	ID         string         `json:"job_id"`
	VideoID    string         `json:"video_id"`
	Status     string         `json:"status"`
	Result     *ProcessResult `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// VideoRecord is the persisted registry entry mapping a video id to
// its source path and processing state.
type VideoRecord struct {
	VideoID    string    `json:"video_id"`
	Path       string    `json:"path"`
	FrameCount int       `json:"frame_count"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VideoInfo is the per-video summary exposed by get_info/list_videos.
type VideoInfo struct {
	VideoID    string `json:"video_id"`
	Status     string `json:"status"`
	FrameCount int    `json:"frame_count"`
	Indexed    bool   `json:"indexed"`
}
