package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// OllamaClient 本地 Ollama 的 Embedding 客户端。baseURL 以 /api 结尾。
type OllamaClient struct {
	model     string
	baseURL   string
	dimension int
	client    *resty.Client
}

// NewOllamaClient 创建 Ollama Embedding 客户端
func NewOllamaClient(client *resty.Client, model, baseURL string, dimension int) *OllamaClient {
	return &OllamaClient{
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		client:    client,
	}
}

// Embed 调用 /embed 接口做批量向量化
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"model": c.model,
			"input": texts,
		}).
		Post(c.baseURL + "/embed")
	if err != nil {
		return nil, fmt.Errorf("call ollama embed API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ollama embed API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("parse ollama embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed API returned %d vectors for %d inputs", len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}

// Model 返回模型名称
func (c *OllamaClient) Model() string { return c.model }

// Dimension 返回向量维度
func (c *OllamaClient) Dimension() int { return c.dimension }
