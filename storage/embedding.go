package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns a batch of texts into fixed-dimension vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CrossModalEmbedder maps images and text into one shared vector
// space, so a text query can rank frame embeddings directly.
type CrossModalEmbedder interface {
	EmbedImage(ctx context.Context, imagePath string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	cli   *openai.Client
	model string
}

func NewOpenAIEmbedder(cli *openai.Client, model string) OpenAIEmbedder {
	return OpenAIEmbedder{cli: cli, model: model}
}

func (e OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("empty text at index %d", i)
		}
	}
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// HashEmbedder is the dependency-free tier used when no embedding API
// is configured: token buckets hashed into a fixed-dimension vector,
// L2 normalized. Retrieval quality is crude but deterministic, which
// also makes it the embedder of choice in tests.
type HashEmbedder struct {
	Dim int
}

func (e HashEmbedder) dim() int {
	if e.Dim > 0 {
		return e.Dim
	}
	return 256
}

func (e HashEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("empty text at index %d", i)
		}
		out[i] = e.hashTokens(strings.Fields(strings.ToLower(t)))
	}
	return out, nil
}

func (e HashEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e HashEmbedder) EmbedImage(_ context.Context, imagePath string) ([]float32, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	vec := make([]float32, e.dim())
	for i, b := range data {
		vec[(i+int(b))%len(vec)] += float32(b) / 255
	}
	normalize(vec)
	return vec, nil
}

func (e HashEmbedder) hashTokens(tokens []string) []float32 {
	vec := make([]float32, e.dim())
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(len(vec))]++
	}
	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
