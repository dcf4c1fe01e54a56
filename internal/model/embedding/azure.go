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

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// AzureClient Azure OpenAI 的 Embedding 客户端，model 即部署名
type AzureClient struct {
	model      string
	apiKey     string
	baseURL    string
	apiVersion string
	dimension  int
	client     *resty.Client
}

// NewAzureClient 创建 Azure Embedding 客户端
func NewAzureClient(client *resty.Client, model, apiKey, baseURL, apiVersion string, dimension int) *AzureClient {
	return &AzureClient{
		model:      model,
		apiKey:     apiKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		dimension:  dimension,
		client:     client,
	}
}

// Embed 调用部署路径下的 embeddings 接口
func (c *AzureClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("api-key", c.apiKey).
		SetQueryParam("api-version", c.apiVersion).
		SetBody(map[string]interface{}{"input": texts}).
		Post(fmt.Sprintf("%s/openai/deployments/%s/embeddings", c.baseURL, c.model))
	if err != nil {
		return nil, fmt.Errorf("call azure embeddings API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("azure embeddings API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("parse azure embeddings response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("azure embeddings API returned %d vectors for %d inputs", len(result.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("azure embeddings API returned out-of-range index %d", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// Model 返回部署名
func (c *AzureClient) Model() string { return c.model }

// Dimension 返回向量维度
func (c *AzureClient) Dimension() int { return c.dimension }
