package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// OllamaClient 本地 Ollama 的视觉客户端，走原生 /chat 的 images 字段。
// baseURL 以 /api 结尾。
type OllamaClient struct {
	model   string
	baseURL string
	client  *resty.Client
}

// NewOllamaClient 创建 Ollama 视觉客户端
func NewOllamaClient(client *resty.Client, model, baseURL string) *OllamaClient {
	return &OllamaClient{
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

// Describe 以 images 字段描述图像
func (c *OllamaClient) Describe(ctx context.Context, imageBase64, mimeType, prompt string) (string, error) {
	if prompt == "" {
		prompt = defaultPrompt
	}

	request := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": prompt,
				"images":  []string{imageBase64},
			},
		},
		"stream": false,
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		Post(c.baseURL + "/chat")
	if err != nil {
		return "", fmt.Errorf("call ollama vision API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("ollama vision API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("parse ollama vision response: %w", err)
	}
	return result.Message.Content, nil
}

// Name 返回模型名称
func (c *OllamaClient) Name() string { return c.model }
