package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries API credentials plus the tunable pipeline parameters.
// Threshold-like values (stride, caption interval, pre-roll, similarity
// cutoff) are empirically chosen defaults, not derived constants; they
// can all be overridden via config.json or environment variables.
type Config struct {
	APIKey          string `json:"api_key"`
	BaseURL         string `json:"base_url"`
	EmbeddingModel  string `json:"embedding_model"`
	VisualModel     string `json:"visual_embedding_model"`
	VisionModel     string `json:"vision_model"`
	ASRModel        string `json:"asr_model"`
	Language        string `json:"language"`
	PostgresURL     string `json:"postgres_url"`
	MilvusAddr      string `json:"milvus_addr"`
	StorageDir      string `json:"storage_dir"`
	EmbeddingDim    int    `json:"embedding_dim"`

	FrameStride         int     `json:"frame_stride"`
	AssumedFPS          float64 `json:"assumed_fps"`
	CaptionInterval     int     `json:"caption_interval"`
	ChunkSeconds        float64 `json:"chunk_seconds"`
	UploadLimitMB       int64   `json:"upload_limit_mb"`
	PreRollSec          float64 `json:"pre_roll_sec"`
	ClipLengthSec       float64 `json:"clip_length_sec"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	APIWorkers          int     `json:"api_workers"`
	APIDelayMS          int     `json:"api_delay_ms"`
}

// LoadConfig reads config.json if present, then applies environment
// overrides, then fills defaults. The returned value is owned by the
// caller; there is no shared global.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.json: %w", err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.checkTunables(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkTunables rejects non-positive pipeline parameters. Defaults only
// fill zero values, so a negative number written into config.json would
// otherwise survive into the pipeline.
func (c *Config) checkTunables() error {
	var problems []string
	bad := func(name string) { problems = append(problems, name+" must be positive") }
	if c.FrameStride <= 0 {
		bad("frame_stride")
	}
	if c.AssumedFPS <= 0 {
		bad("assumed_fps")
	}
	if c.CaptionInterval <= 0 {
		bad("caption_interval")
	}
	if c.ChunkSeconds <= 0 {
		bad("chunk_seconds")
	}
	if c.UploadLimitMB <= 0 {
		bad("upload_limit_mb")
	}
	if c.PreRollSec < 0 {
		problems = append(problems, "pre_roll_sec must not be negative")
	}
	if c.ClipLengthSec <= 0 {
		bad("clip_length_sec")
	}
	if c.SimilarityThreshold <= 0 {
		bad("similarity_threshold")
	}
	if c.EmbeddingDim <= 0 {
		bad("embedding_dim")
	}
	if c.APIWorkers <= 0 {
		bad("api_workers")
	}
	if c.APIDelayMS < 0 {
		problems = append(problems, "api_delay_ms must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("VISUAL_EMBEDDING_MODEL"); v != "" {
		cfg.VisualModel = v
	}
	if v := os.Getenv("VISION_MODEL"); v != "" {
		cfg.VisionModel = v
	}
	if v := os.Getenv("ASR_MODEL"); v != "" {
		cfg.ASRModel = v
	}
	if v := os.Getenv("LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.PostgresURL = v
	}
	if v := os.Getenv("MILVUS_ADDR"); v != "" {
		cfg.MilvusAddr = v
	}
	if v := os.Getenv("STORAGE_DIR"); v != "" {
		cfg.StorageDir = v
	}
	if v := envInt("FRAME_STRIDE"); v > 0 {
		cfg.FrameStride = v
	}
	if v := envInt("CAPTION_INTERVAL"); v > 0 {
		cfg.CaptionInterval = v
	}
	if v := envFloat("CHUNK_SECONDS"); v > 0 {
		cfg.ChunkSeconds = v
	}
	if v := envInt("UPLOAD_LIMIT_MB"); v > 0 {
		cfg.UploadLimitMB = int64(v)
	}
	if v := envFloat("SIMILARITY_THRESHOLD"); v > 0 {
		cfg.SimilarityThreshold = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.VisualModel == "" {
		cfg.VisualModel = "clip-vit-b-32"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "meta-llama/llama-4-maverick-17b-128e-instruct"
	}
	if cfg.ASRModel == "" {
		cfg.ASRModel = "whisper-large-v3-turbo"
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "data"
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 1536
	}
	if cfg.FrameStride == 0 {
		cfg.FrameStride = 10
	}
	if cfg.AssumedFPS == 0 {
		cfg.AssumedFPS = 30.0
	}
	if cfg.CaptionInterval == 0 {
		cfg.CaptionInterval = 10
	}
	if cfg.ChunkSeconds == 0 {
		cfg.ChunkSeconds = 600.0
	}
	if cfg.UploadLimitMB == 0 {
		cfg.UploadLimitMB = 20
	}
	if cfg.PreRollSec == 0 {
		cfg.PreRollSec = 1.0
	}
	if cfg.ClipLengthSec == 0 {
		cfg.ClipLengthSec = 5.0
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 15.0
	}
	if cfg.APIWorkers == 0 {
		cfg.APIWorkers = 1
	}
	if cfg.APIDelayMS == 0 {
		cfg.APIDelayMS = 500
	}
}

// APIDelay is the minimum spacing between calls to rate-limited
// external services (transcription, captioning).
func (c *Config) APIDelay() time.Duration {
	return time.Duration(c.APIDelayMS) * time.Millisecond
}

// HasValidAPI reports whether remote providers can be used at all.
func (c *Config) HasValidAPI() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.BaseURL) != ""
}

// Validate checks the fields every remote provider needs.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.APIKey) == "" {
		problems = append(problems, "api_key is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		problems = append(problems, "base_url is required")
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		problems = append(problems, "embedding_model is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func envInt(key string) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func envFloat(key string) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
