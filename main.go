package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"

	"videomosaic/config"
	"videomosaic/core"
	"videomosaic/processors"
	"videomosaic/search"
	"videomosaic/server"
	"videomosaic/storage"
)

func openaiClient(cfg *config.Config) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(oc)
}

// buildIndexBackend prefers Milvus when an address is configured and
// reachable, falling back to the local flat index.
func buildIndexBackend(ctx context.Context, cfg *config.Config) storage.IndexBackend {
	if cfg.MilvusAddr != "" {
		b, err := storage.NewMilvusIndexBackend(ctx, cfg.MilvusAddr, cfg.EmbeddingDim)
		if err == nil {
			log.Printf("Vector index backend: milvus (%s)", cfg.MilvusAddr)
			return b
		}
		log.Printf("Warning: milvus unavailable (%v), falling back to local index", err)
	}
	log.Printf("Vector index backend: local flat index")
	return storage.NewFileIndexBackend(filepath.Join(cfg.StorageDir, "indexes"))
}

// buildDocBackend prefers pgvector when a Postgres URL is configured
// and reachable, falling back to local JSON collections.
func buildDocBackend(ctx context.Context, cfg *config.Config) storage.DocBackend {
	if cfg.PostgresURL != "" {
		b, err := storage.NewPgVectorDocBackend(ctx, cfg.PostgresURL, cfg.EmbeddingDim)
		if err == nil {
			log.Printf("Document backend: pgvector")
			return b
		}
		log.Printf("Warning: pgvector unavailable (%v), falling back to local collections", err)
	}
	log.Printf("Document backend: local collections")
	return storage.NewLocalDocBackend(filepath.Join(cfg.StorageDir, "collections"))
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		log.Fatalf("failed to create storage dir: %v", err)
	}

	ctx := context.Background()
	store := &storage.VideoStore{
		Index: buildIndexBackend(ctx, cfg),
		Docs:  buildDocBackend(ctx, cfg),
	}

	registry, err := core.LoadRegistry(filepath.Join(cfg.StorageDir, "registry.json"))
	if err != nil {
		log.Fatalf("failed to load registry: %v", err)
	}
	jobs := core.NewJobManager(filepath.Join(cfg.StorageDir, "locks"))

	var (
		asr       processors.ASRProvider
		captioner processors.Captioner
		embedder  storage.Embedder
		visual    storage.CrossModalEmbedder
	)
	if cfg.HasValidAPI() {
		cli := openaiClient(cfg)
		asr = processors.NewWhisperASR(cli, cfg.ASRModel)
		captioner = processors.NewVisionCaptioner(cli, cfg.VisionModel)
		embedder = storage.NewOpenAIEmbedder(cli, cfg.EmbeddingModel)
		visual = storage.NewMultimodalEmbedder(cfg.APIKey, cfg.BaseURL, cfg.VisualModel)
		log.Printf("Providers: remote (base_url=%s)", cfg.BaseURL)
	} else {
		asr = processors.MockASR{}
		captioner = processors.MockCaptioner{}
		he := storage.HashEmbedder{Dim: cfg.EmbeddingDim}
		embedder = he
		visual = he
		log.Printf("Warning: no API configured, using offline placeholder providers")
	}

	disp := &core.Dispatcher{Workers: cfg.APIWorkers, Interval: cfg.APIDelay()}
	pipeline := &processors.Pipeline{
		Cfg:        cfg,
		Store:      store,
		Registry:   registry,
		ASR:        asr,
		Captioner:  captioner,
		Embedder:   embedder,
		Visual:     visual,
		Dispatcher: disp,
	}
	engine := &search.Engine{
		Cfg:      cfg,
		Store:    store,
		Embedder: embedder,
		Visual:   visual,
		ASR:      asr,
	}
	clips := &search.ClipSynthesizer{
		PreRoll:    cfg.PreRollSec,
		ClipLength: cfg.ClipLengthSec,
	}

	srv := &server.Server{
		Cfg:      cfg,
		Registry: registry,
		Jobs:     jobs,
		Pipeline: pipeline,
		Engine:   engine,
		Store:    store,
		Clips:    clips,
	}
	mux := http.NewServeMux()
	srv.Routes(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("videomosaic listening on :%s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("server: %v", err)
	}
}
