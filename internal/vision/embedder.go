package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type representResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedderClient calls the external face embedding service.
type EmbedderClient struct {
	baseURL    string
	modelName  string
	httpClient *http.Client
}

// NewEmbedderClient builds a client for the embedder at baseURL using the
// given model.
func NewEmbedderClient(baseURL, modelName string) *EmbedderClient {
	return &EmbedderClient{
		baseURL:    baseURL,
		modelName:  modelName,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Represent posts the crop bytes and returns the fixed-length embedding.
// POST {base}/represent with form fields file + model_name.
func (c *EmbedderClient) Represent(ctx context.Context, imageBytes []byte) ([]float64, error) {
	url := c.baseURL + "/represent"
	respBody, err := postImage(ctx, c.httpClient, url, imageBytes, map[string]string{
		"model_name": c.modelName,
	})
	if err != nil {
		return nil, err
	}

	var out representResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: parse embedder response: %v", ErrBadInput, err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrBadInput)
	}
	return out.Embedding, nil
}
