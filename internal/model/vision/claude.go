package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// ClaudeClient Anthropic 的视觉客户端
type ClaudeClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *resty.Client
}

// NewClaudeClient 创建 Anthropic 视觉客户端
func NewClaudeClient(client *resty.Client, model, apiKey, baseURL string) *ClaudeClient {
	return &ClaudeClient{
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

// Describe 以 image source 块描述图像
func (c *ClaudeClient) Describe(ctx context.Context, imageBase64, mimeType, prompt string) (string, error) {
	if prompt == "" {
		prompt = defaultPrompt
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	request := map[string]interface{}{
		"model":      c.model,
		"max_tokens": 1024,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "image",
						"source": map[string]interface{}{
							"type":       "base64",
							"media_type": mimeType,
							"data":       imageBase64,
						},
					},
					{"type": "text", "text": prompt},
				},
			},
		},
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(request).
		Post(c.baseURL + "/messages")
	if err != nil {
		return "", fmt.Errorf("call anthropic vision API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("anthropic vision API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("parse anthropic vision response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic vision API returned no content")
	}
	return result.Content[0].Text, nil
}

// Name 返回模型名称
func (c *ClaudeClient) Name() string { return c.model }
