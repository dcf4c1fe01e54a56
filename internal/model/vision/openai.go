// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const defaultPrompt = "Describe the image in detail."

// OpenAIClient OpenAI 协议的视觉客户端。
// 同样覆盖 ollama、openrouter、xai、custom 等兼容端点。
type OpenAIClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *resty.Client
}

// NewOpenAIClient 创建 OpenAI 协议的视觉客户端
func NewOpenAIClient(client *resty.Client, model, apiKey, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

// Describe 以多模态 chat 请求描述图像
func (c *OpenAIClient) Describe(ctx context.Context, imageBase64, mimeType, prompt string) (string, error) {
	request := map[string]interface{}{
		"model":    c.model,
		"messages": visionMessages(imageBase64, mimeType, prompt),
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request)
	if c.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.apiKey)
	}
	response, err := req.Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("call vision API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("vision API status %d: %s", response.StatusCode(), response.String())
	}
	return parseVisionResponse(response.Body())
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string { return c.model }

// visionMessages 构造 OpenAI 协议的图文消息体
func visionMessages(imageBase64, mimeType, prompt string) []map[string]interface{} {
	if prompt == "" {
		prompt = defaultPrompt
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return []map[string]interface{}{
		{
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "text", "text": prompt},
				{
					"type": "image_url",
					"image_url": map[string]interface{}{
						"url": "data:" + mimeType + ";base64," + imageBase64,
					},
				},
			},
		},
	}
}

// parseVisionResponse 解析 OpenAI 协议的聊天响应正文
func parseVisionResponse(body []byte) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse vision response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("vision API returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
