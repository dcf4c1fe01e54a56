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
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// AzureClient Azure OpenAI 聊天客户端。鉴权走 api-key 头，
// 路径按 deployment 组织，api-version 必带。
type AzureClient struct {
	model      string // deployment 名
	apiKey     string
	baseURL    string
	apiVersion string
	client     *resty.Client
}

// NewAzureClient 创建 Azure OpenAI 客户端
func NewAzureClient(client *resty.Client, deployment, apiKey, baseURL, apiVersion string) *AzureClient {
	return &AzureClient{
		model:      deployment,
		apiKey:     apiKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		client:     client,
	}
}

// Generate 生成文本
func (c *AzureClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.GenerateWithContext(context.Background(), prompt, options)
}

// GenerateWithContext 使用上下文生成文本
func (c *AzureClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// Chat 聊天
func (c *AzureClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

// ChatWithContext 使用上下文聊天
func (c *AzureClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	request := chatRequest(c.model, messages, options)
	// deployment 已在路径里，body 不再带 model
	delete(request, "model")

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions", c.baseURL, c.model)
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("api-key", c.apiKey).
		SetQueryParam("api-version", c.apiVersion).
		SetBody(request).
		Post(url)
	if err != nil {
		return "", fmt.Errorf("call azure chat API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("azure chat API status %d: %s", response.StatusCode(), response.String())
	}

	return parseChatResponse("azure", response)
}

// Model 返回 deployment 名称
func (c *AzureClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *AzureClient) Provider() string { return "azure" }
