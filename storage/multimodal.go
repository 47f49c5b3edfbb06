package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// MultimodalEmbedder calls a multimodal embeddings endpoint that
// accepts both text and images and returns vectors in one shared
// space. The endpoint follows the OpenAI embeddings wire shape with
// typed input parts, which go-openai does not model, so this client
// speaks HTTP directly.
type MultimodalEmbedder struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewMultimodalEmbedder(apiKey, baseURL, model string) *MultimodalEmbedder {
	return &MultimodalEmbedder{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type multimodalInput struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type multimodalRequest struct {
	Model string            `json:"model"`
	Input []multimodalInput `json:"input"`
}

type multimodalResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (m *MultimodalEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, multimodalInput{Type: "text", Text: text})
}

func (m *MultimodalEmbedder) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	in := multimodalInput{Type: "image_url"}
	in.ImageURL = &struct {
		URL string `json:"url"`
	}{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)}
	return m.embed(ctx, in)
}

func (m *MultimodalEmbedder) embed(ctx context.Context, input multimodalInput) ([]float32, error) {
	body, err := json.Marshal(multimodalRequest{Model: m.model, Input: []multimodalInput{input}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/embeddings/multimodal", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("multimodal embedding API status %d: %s", resp.StatusCode, string(b))
	}
	var out multimodalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return out.Data[0].Embedding, nil
}
