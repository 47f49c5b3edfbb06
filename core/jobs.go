package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// JobManager runs ingestion jobs fire-and-forget and enforces the
// single-writer rule: at most one active job per video id. The in-memory
// guard covers this process; a lock file (flock) covers concurrent
// server processes sharing one storage directory, since an ingestion
// job destructively overwrites the video's collections.
type JobManager struct {
	mu      sync.Mutex
	lockDir string
	jobs    map[string]*JobRecord
	active  map[string]*flock.Flock
}

// NewJobManager creates a manager whose lock files live under lockDir.
func NewJobManager(lockDir string) *JobManager {
	return &JobManager{
		lockDir: lockDir,
		jobs:    map[string]*JobRecord{},
		active:  map[string]*flock.Flock{},
	}
}

// Start launches run in the background and returns the pollable job
// record. It fails with ErrJobActive when a job for the same video id
// is still in flight.
func (m *JobManager) Start(videoID string, run func() (*ProcessResult, error)) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.active[videoID]; busy {
		return nil, ErrJobActive
	}
	if err := os.MkdirAll(m.lockDir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(filepath.Join(m.lockDir, videoID+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ingestion lock: %w", err)
	}
	if !locked {
		return nil, ErrJobActive
	}
	m.active[videoID] = fl

	rec := &JobRecord{
		ID:        NewID(),
		VideoID:   videoID,
		Status:    JobPending,
		StartedAt: time.Now().UTC(),
	}
	m.jobs[rec.ID] = rec

	go m.run(rec, fl, run)
	// The goroutine mutates rec; hand the caller a snapshot.
	snapshot := *rec
	return &snapshot, nil
}

func (m *JobManager) run(rec *JobRecord, fl *flock.Flock, run func() (*ProcessResult, error)) {
	m.setStatus(rec.ID, JobProcessing, nil, "")
	result, err := run()

	m.mu.Lock()
	delete(m.active, rec.VideoID)
	m.mu.Unlock()
	if uerr := fl.Unlock(); uerr == nil {
		// Best effort; a stale lock file without a flock holder is inert.
		_ = os.Remove(fl.Path())
	}

	if err != nil {
		m.setStatus(rec.ID, JobFailed, nil, err.Error())
		return
	}
	m.setStatus(rec.ID, JobCompleted, result, "")
}

func (m *JobManager) setStatus(jobID, status string, result *ProcessResult, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return
	}
	rec.Status = status
	rec.Error = errMsg
	if result != nil {
		rec.Result = result
	}
	if status == JobCompleted || status == JobFailed {
		now := time.Now().UTC()
		rec.FinishedAt = &now
	}
}

// Get returns a copy of the job record for polling.
func (m *JobManager) Get(jobID string) (JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return JobRecord{}, ErrUnknownJob
	}
	return *rec, nil
}

// Active reports whether an ingestion job is in flight for a video.
func (m *JobManager) Active(videoID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.active[videoID]
	return busy
}
