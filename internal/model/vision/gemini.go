package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// GeminiClient Google Generative AI 的视觉客户端
type GeminiClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *resty.Client
}

// NewGeminiClient 创建 Google 视觉客户端
func NewGeminiClient(client *resty.Client, model, apiKey, baseURL string) *GeminiClient {
	return &GeminiClient{
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

// Describe 以 inline_data 部件描述图像
func (c *GeminiClient) Describe(ctx context.Context, imageBase64, mimeType, prompt string) (string, error) {
	if prompt == "" {
		prompt = defaultPrompt
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	request := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{"text": prompt},
					{
						"inline_data": map[string]interface{}{
							"mime_type": mimeType,
							"data":      imageBase64,
						},
					},
				},
			},
		},
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/models/" + c.model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("call google vision API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("google vision API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("parse google vision response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("google vision API returned no candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string { return c.model }
