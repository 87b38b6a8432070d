package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIEmbedder calls an OpenAI compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	APIKey string
	URL    string
	Model  string
	Retry  RetryConfig
	client *http.Client
}

// NewOpenAIEmbedder creates an embedder for the given endpoint and model.
func NewOpenAIEmbedder(apiKey, url, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		APIKey: apiKey,
		URL:    url,
		Model:  model,
		Retry:  DefaultRetryConfig(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed returns the embedding of text. Server errors and rate limiting are
// retried with backoff; other client errors are not.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	reqBody, err := json.Marshal(embeddingRequest{
		Input:      []string{text},
		Model:      e.Model,
		Dimensions: Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return retryWithBackoff(ctx, e.Retry, func() ([]float32, error) {
		return e.post(ctx, reqBody)
	})
}

func (e *OpenAIEmbedder) post(ctx context.Context, body []byte) ([]float32, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("embedding API request failed with status %d: %s", resp.StatusCode, string(msg))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, permanent(err)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embResp.Data) == 0 {
		return nil, permanent(fmt.Errorf("no embeddings returned"))
	}

	vec := embResp.Data[0].Embedding
	if len(vec) != Dimension {
		return nil, permanent(fmt.Errorf("embedding has %d dimensions, want %d", len(vec), Dimension))
	}
	return vec, nil
}
