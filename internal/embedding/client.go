package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultRequestTimeout = 45 * time.Second

	taskTypeSemanticSimilarity = "SEMANTIC_SIMILARITY"
	outputDimensionality       = 768
)

// Embedder turns a list of texts into one vector per text, row order matching
// input order exactly.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type embedRequest struct {
	Model                string   `json:"model"`
	TaskType             string   `json:"task_type"`
	Input                []string `json:"input"`
	OutputDimensionality int      `json:"output_dimensionality,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Client calls an external embedding provider over HTTP.
type Client struct {
	http     *resty.Client
	endpoint string
	model    string
}

func NewClient(endpoint, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		http:     resty.New().SetTimeout(timeout),
		endpoint: endpoint,
		model:    model,
	}
}

// Embed requests vectors for the given texts and L2-normalizes each row.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var parsed embedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(embedRequest{
			Model:                c.model,
			TaskType:             taskTypeSemanticSimilarity,
			Input:                texts,
			OutputDimensionality: outputDimensionality,
		}).
		SetResult(&parsed).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding service status %d", resp.StatusCode())
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding response count mismatch: requested=%d returned=%d", len(texts), len(vectors))
	}

	for i := range vectors {
		l2Normalize(vectors[i])
	}
	return vectors, nil
}

func l2Normalize(vector []float64) {
	var sum float64
	for _, value := range vector {
		sum += value * value
	}
	if sum == 0 {
		return
	}
	magnitude := math.Sqrt(sum)
	for i := range vector {
		vector[i] /= magnitude
	}
}
