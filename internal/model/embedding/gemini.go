package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// GeminiClient Google Generative AI 的 Embedding 客户端
type GeminiClient struct {
	model     string
	apiKey    string
	baseURL   string
	dimension int
	client    *resty.Client
}

// NewGeminiClient 创建 Google Embedding 客户端
func NewGeminiClient(client *resty.Client, model, apiKey, baseURL string, dimension int) *GeminiClient {
	return &GeminiClient{
		model:     model,
		apiKey:    apiKey,
		baseURL:   baseURL,
		dimension: dimension,
		client:    client,
	}
}

// Embed 调用 batchEmbedContents 接口做批量向量化
func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requests := make([]map[string]interface{}, 0, len(texts))
	for _, text := range texts {
		requests = append(requests, map[string]interface{}{
			"model": "models/" + c.model,
			"content": map[string]interface{}{
				"parts": []map[string]interface{}{{"text": text}},
			},
		})
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", c.apiKey).
		SetBody(map[string]interface{}{"requests": requests}).
		Post(c.baseURL + "/models/" + c.model + ":batchEmbedContents")
	if err != nil {
		return nil, fmt.Errorf("call google embed API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("google embed API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Embeddings []struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("parse google embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google embed API returned %d vectors for %d inputs", len(result.Embeddings), len(texts))
	}

	out := make([][]float64, len(texts))
	for i, item := range result.Embeddings {
		out[i] = item.Values
	}
	return out, nil
}

// Model 返回模型名称
func (c *GeminiClient) Model() string { return c.model }

// Dimension 返回向量维度
func (c *GeminiClient) Dimension() int { return c.dimension }
