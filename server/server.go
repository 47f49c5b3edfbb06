package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"videomosaic/config"
	"videomosaic/core"
	"videomosaic/processors"
	"videomosaic/search"
	"videomosaic/storage"
)

// Server wires the ingestion pipeline, search engine and clip
// synthesizer behind an HTTP API.
type Server struct {
	Cfg      *config.Config
	Registry *core.Registry
	Jobs     *core.JobManager
	Pipeline *processors.Pipeline
	Engine   *search.Engine
	Store    *storage.VideoStore
	Clips    *search.ClipSynthesizer
}

// Routes registers every endpoint on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/process", s.processHandler)
	mux.HandleFunc("/jobs", s.jobStatusHandler)
	mux.HandleFunc("/search", s.searchHandler)
	mux.HandleFunc("/clips", s.clipsHandler)
	mux.HandleFunc("/summarize", s.summarizeHandler)
	mux.HandleFunc("/videos", s.videosHandler)
	mux.HandleFunc("/videos/info", s.videoInfoHandler)
	mux.HandleFunc("/clear", s.clearHandler)
	mux.HandleFunc("/health", s.healthHandler)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// processHandler starts a background ingestion job for a video file
// and returns the job id immediately.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "only POST is supported"})
		return
	}
	var req struct {
		Path    string `json:"path"`
		VideoID string `json:"video_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	if _, err := os.Stat(req.Path); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video not found: " + req.Path})
		return
	}
	videoID := req.VideoID
	if videoID == "" {
		videoID = videoIDFromPath(req.Path)
	}

	// The job outlives the request, so it cannot run on r.Context().
	rec, err := s.Jobs.Start(videoID, func() (*core.ProcessResult, error) {
		return s.Pipeline.Process(context.Background(), videoID, req.Path)
	})
	if errors.Is(err, core.ErrJobActive) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "video_id": videoID})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   rec.ID,
		"video_id": videoID,
		"status":   rec.Status,
	})
}

// videoIDFromPath derives a stable id from the file name, keeping it
// collection-name safe.
func videoIDFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, base)
}

func (s *Server) jobStatusHandler(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job_id is required"})
		return
	}
	rec, err := s.Jobs.Get(jobID)
	if errors.Is(err, core.ErrUnknownJob) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "only POST is supported"})
		return
	}
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Modality == "" {
		req.Modality = core.ModalityTranscript
	}
	res, err := s.Engine.Search(r.Context(), req)
	if core.IsNotIndexed(err) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// clipsHandler runs a search and cuts a clip per hit in one call.
func (s *Server) clipsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "only POST is supported"})
		return
	}
	var req struct {
		search.Request
		OutDir string `json:"out_dir,omitempty"`
		Prefix string `json:"prefix,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Modality == "" {
		req.Modality = core.ModalityTranscript
	}
	res, err := s.Engine.Search(r.Context(), req.Request)
	if core.IsNotIndexed(err) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if res.NoMatch {
		writeJSON(w, http.StatusOK, res)
		return
	}
	rec, ok := s.Registry.Get(req.VideoID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown video id: " + req.VideoID})
		return
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = filepath.Join(s.Cfg.StorageDir, req.VideoID, "clips")
	}
	clips, err := s.Clips.Synthesize(rec.Path, outDir, req.Prefix, res.Hits)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"video_id": req.VideoID,
		"search":   res,
		"clips":    clips,
	})
}

func (s *Server) summarizeHandler(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video_id is required"})
		return
	}
	maxWords := 200
	if v := r.URL.Query().Get("max_words"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxWords = n
		}
	}
	summary, err := s.Engine.Summarize(r.Context(), videoID, maxWords)
	if core.IsNotIndexed(err) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"video_id": videoID, "summary": summary})
}

func (s *Server) videosHandler(w http.ResponseWriter, r *http.Request) {
	infos := []core.VideoInfo{}
	for _, rec := range s.Registry.List() {
		infos = append(infos, core.VideoInfo{
			VideoID:    rec.VideoID,
			Status:     rec.Status,
			FrameCount: rec.FrameCount,
			Indexed:    s.Store.Indexed(r.Context(), rec.VideoID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": infos, "count": len(infos)})
}

func (s *Server) videoInfoHandler(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video_id is required"})
		return
	}
	rec, ok := s.Registry.Get(videoID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown video id: " + videoID})
		return
	}
	writeJSON(w, http.StatusOK, core.VideoInfo{
		VideoID:    rec.VideoID,
		Status:     rec.Status,
		FrameCount: rec.FrameCount,
		Indexed:    s.Store.Indexed(r.Context(), rec.VideoID),
	})
}

// clearHandler removes one video's collections and files, or all of
// them with {"all": true}. An active ingestion blocks the clear.
func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "only POST is supported"})
		return
	}
	var req struct {
		VideoID string `json:"video_id,omitempty"`
		All     bool   `json:"all,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var ids []string
	if req.All {
		for _, rec := range s.Registry.List() {
			ids = append(ids, rec.VideoID)
		}
	} else if req.VideoID != "" {
		ids = []string{req.VideoID}
	} else {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video_id or all is required"})
		return
	}

	cleared := []string{}
	for _, id := range ids {
		if s.Jobs.Active(id) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "ingestion in progress for " + id})
			return
		}
		if err := s.Store.Clear(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := core.RemoveVideoData(s.Cfg.StorageDir, id); err != nil {
			log.Printf("clear %s: remove files: %v", id, err)
		}
		if err := s.Registry.Delete(id); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		cleared = append(cleared, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"videos":    len(s.Registry.List()),
		"api_ready": s.Cfg.HasValidAPI(),
	})
}
