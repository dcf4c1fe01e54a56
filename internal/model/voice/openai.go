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

package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// OpenAIClient OpenAI 协议的语音转写客户端（whisper 系列）
type OpenAIClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *resty.Client
}

// NewOpenAIClient 创建 OpenAI 协议的语音客户端
func NewOpenAIClient(client *resty.Client, model, apiKey, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

// Listen 调用 /audio/transcriptions 接口转写音频
func (c *OpenAIClient) Listen(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "audio.mp3"
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetFileReader("file", filename, audio).
		SetFormData(map[string]string{"model": c.model}).
		Post(c.baseURL + "/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("call transcription API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("transcription API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("parse transcription response: %w", err)
	}
	return result.Text, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string { return c.model }
