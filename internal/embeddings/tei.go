package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TEIEmbedder talks to a sentence-transformers inference server that
// implements the text-embeddings-inference API (POST /embed). The server
// owns model loading; the model id is informational on this side.
type TEIEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

type teiEmbedRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// NewTEIEmbedder creates an embedder for the server at baseURL.
func NewTEIEmbedder(baseURL, model string, timeout time.Duration) (*TEIEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("embedding url required")
	}
	if timeout <= 0 {
		timeout = defaultEmbeddingTimeout
	}
	return &TEIEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (e *TEIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	return embedOne(ctx, e, text)
}

func (e *TEIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}
	body, err := json.Marshal(teiEmbedRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding server error (model %s, status %d): %s", e.model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out []Vector
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if err := CheckBatch(out, len(texts)); err != nil {
		return nil, err
	}
	return out, nil
}
