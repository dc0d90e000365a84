package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

// Voyage Embedding API structures
type VoyageEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type VoyageEmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// GetVoyageEmbeddings generates embeddings using the Voyage AI API with
// rate limiting and retries on transient failures
func GetVoyageEmbeddings(ctx context.Context, texts []string, apiKey string, model string) ([][]float32, error) {
	if model == "" {
		model = "voyage-2" // Default Voyage model
	}

	// Apply rate limiting
	if err := voyageRateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	reqBody := VoyageEmbeddingRequest{
		Input: texts,
		Model: model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	var embeddings [][]float32
	err = DefaultRetryPolicy().Do(ctx, "voyage embeddings", func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", "https://api.voyageai.com/v1/embeddings", bytes.NewBuffer(jsonData))
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to call Voyage API: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("Voyage API error (status %d): %s", resp.StatusCode, string(body))
		}

		var embResp VoyageEmbeddingResponse
		if err := json.Unmarshal(body, &embResp); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		// Extract embeddings in order
		embeddings = make([][]float32, len(texts))
		for _, data := range embResp.Data {
			if data.Index < len(embeddings) {
				embeddings[data.Index] = data.Embedding
			}
		}

		slog.Info("Generated Voyage embeddings",
			"count", len(embeddings),
			"model", model,
			"totalTokens", embResp.Usage.TotalTokens,
		)

		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	return embeddings, nil
}

// GetMockEmbeddings generates deterministic embeddings for tests and
// TEST_MODE runs. Vectors are built from hashed tokens so texts sharing
// words land closer in cosine space, which keeps offline search meaningful.
func GetMockEmbeddings(texts []string) [][]float32 {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding := make([]float32, 256)
		for _, token := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(token))
			embedding[h.Sum32()%uint32(len(embedding))] += 1
		}

		// Normalize to unit length so scores stay comparable
		var norm float64
		for _, v := range embedding {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range embedding {
				embedding[j] *= scale
			}
		}
		embeddings[i] = embedding
	}
	return embeddings
}
