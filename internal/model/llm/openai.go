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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// OpenAIClient OpenAI 兼容聊天客户端。openai、openrouter、deepseek、
// xai 和 custom 供应商共用，差别只在 baseURL 与 provider 标签。
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewOpenAIClient 创建 OpenAI 兼容客户端；client 用进程共享实例
func NewOpenAIClient(client *resty.Client, provider, model, apiKey, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}
}

// Generate 生成文本
func (c *OpenAIClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.GenerateWithContext(context.Background(), prompt, options)
}

// GenerateWithContext 使用上下文生成文本
func (c *OpenAIClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// Chat 聊天
func (c *OpenAIClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

// ChatWithContext 使用上下文聊天
func (c *OpenAIClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	request := chatRequest(c.model, messages, options)

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("call %s chat API: %w", c.provider, err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%s chat API status %d: %s", c.provider, response.StatusCode(), response.String())
	}

	return parseChatResponse(c.provider, response)
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string { return c.provider }

// chatRequest OpenAI 协议的请求体；零值选项不发送，避免覆盖服务端默认
func chatRequest(model string, messages []Message, options GenerateOptions) map[string]interface{} {
	msgs := make([]map[string]string, len(messages))
	for i, msg := range messages {
		msgs[i] = map[string]string{"role": msg.Role, "content": msg.Content}
	}
	request := map[string]interface{}{
		"model":    model,
		"messages": msgs,
	}
	if options.Temperature > 0 {
		request["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		request["max_tokens"] = options.MaxTokens
	}
	if options.TopP > 0 {
		request["top_p"] = options.TopP
	}
	if options.FrequencyPenalty != 0 {
		request["frequency_penalty"] = options.FrequencyPenalty
	}
	if options.PresencePenalty != 0 {
		request["presence_penalty"] = options.PresencePenalty
	}
	if len(options.Stop) > 0 {
		request["stop"] = options.Stop
	}
	return request
}

// parseChatResponse 解析 OpenAI 协议的聊天响应
func parseChatResponse(provider string, response *resty.Response) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("parse %s chat response: %w", provider, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s chat API returned no choices", provider)
	}
	return result.Choices[0].Message.Content, nil
}
