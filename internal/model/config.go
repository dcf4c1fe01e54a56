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

package model

import (
	"strings"

	"note-platform/pkg/errors"
)

// 支持的供应商。custom 按 OpenAI 兼容协议处理。
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderAzure      = "azure"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
	ProviderDeepSeek   = "deepseek"
	ProviderXAI        = "xai"
	ProviderVoyage     = "voyage"
	ProviderCustom     = "custom"
)

// Config 一次模型调用所需的连接参数，由 provider 行 + model 行拼出
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	ModelKey   string
	APIVersion string // azure 必填

	// EmbeddingDimensions 模型行配置的兜底维度，模型名推不出维度时用
	EmbeddingDimensions int
	Temperature         float64
}

// normalize 抹平供应商差异：补默认 base URL、校验必填项。
// ollama 的 base 强制以 /api 结尾，azure 必须带 apiVersion。
func (c *Config) normalize() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")

	switch c.Provider {
	case ProviderOpenAI:
		if c.BaseURL == "" {
			c.BaseURL = "https://api.openai.com/v1"
		}
	case ProviderAnthropic:
		if c.BaseURL == "" {
			c.BaseURL = "https://api.anthropic.com/v1"
		}
	case ProviderGoogle:
		if c.BaseURL == "" {
			c.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
		}
	case ProviderAzure:
		if c.BaseURL == "" {
			return errors.ConfigMissingf("azure provider requires a base URL")
		}
		if c.APIVersion == "" {
			return errors.ConfigMissingf("azure provider requires apiVersion")
		}
	case ProviderOllama:
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(c.BaseURL, "/api") {
			c.BaseURL += "/api"
		}
	case ProviderOpenRouter:
		if c.BaseURL == "" {
			c.BaseURL = "https://openrouter.ai/api/v1"
		}
	case ProviderDeepSeek:
		if c.BaseURL == "" {
			c.BaseURL = "https://api.deepseek.com/v1"
		}
	case ProviderXAI:
		if c.BaseURL == "" {
			c.BaseURL = "https://api.x.ai/v1"
		}
	case ProviderVoyage:
		if c.BaseURL == "" {
			c.BaseURL = "https://api.voyageai.com/v1"
		}
	case ProviderCustom:
		if c.BaseURL == "" {
			return errors.ConfigMissingf("custom provider requires a base URL")
		}
	default:
		return errors.Validationf("unknown provider %q", c.Provider)
	}
	return nil
}

// openAICompatible OpenAI 协议族：共用同一个聊天/向量客户端
func (c *Config) openAICompatible() bool {
	switch c.Provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderDeepSeek, ProviderXAI, ProviderCustom:
		return true
	}
	return false
}
