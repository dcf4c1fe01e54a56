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
	"context"

	"note-platform/internal/model/embedding"
	"note-platform/internal/model/llm"
	"note-platform/internal/model/vision"
	"note-platform/internal/model/voice"
	"note-platform/internal/storage/db"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
	"note-platform/pkg/secrets"
)

// Registry 按能力分发的模型工厂：每次调用根据 provider/model 行
// 现场构建客户端，配置变更即刻生效，不做实例缓存。
type Registry struct {
	providers db.ProviderStore
	secrets   secrets.Store
	limiter   *llm.LLMRateLimiter
	log       *log.Logger
}

// NewRegistry 创建模型注册表
func NewRegistry(providers db.ProviderStore, sec secrets.Store, limiter *llm.LLMRateLimiter, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	return &Registry{
		providers: providers,
		secrets:   sec,
		limiter:   limiter,
		log:       logger.Named("model"),
	}
}

// GetLanguageModel 构建聊天客户端，统一套上 provider 维度限流
func (r *Registry) GetLanguageModel(cfg Config) (llm.Client, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	var client llm.Client
	switch {
	case cfg.openAICompatible():
		client = llm.NewOpenAIClient(HTTPClient(), cfg.Provider, cfg.ModelKey, cfg.APIKey, cfg.BaseURL)
	case cfg.Provider == ProviderAnthropic:
		client = llm.NewClaudeClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL)
	case cfg.Provider == ProviderGoogle:
		client = llm.NewGeminiClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL)
	case cfg.Provider == ProviderAzure:
		client = llm.NewAzureClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL, cfg.APIVersion)
	case cfg.Provider == ProviderOllama:
		client = llm.NewOllamaClient(HTTPClient(), cfg.ModelKey, cfg.BaseURL)
	default:
		return nil, errors.Validationf("provider %q does not support chat", cfg.Provider)
	}
	return llm.NewRateLimitedClient(client, r.limiter), nil
}

// GetEmbeddingModel 构建向量化客户端。维度先按模型名推断，
// 推不出时回落到模型行配置，两者皆无则报 ConfigMissing。
func (r *Registry) GetEmbeddingModel(cfg Config) (embedding.Client, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	dimension := embedding.GuessDimension(cfg.ModelKey)
	if dimension == 0 {
		dimension = cfg.EmbeddingDimensions
	}
	if dimension == 0 {
		return nil, errors.ConfigMissingf("embedding dimensions not configured for model %q", cfg.ModelKey)
	}

	switch {
	case cfg.openAICompatible(), cfg.Provider == ProviderVoyage:
		return embedding.NewOpenAIClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL, dimension), nil
	case cfg.Provider == ProviderAzure:
		return embedding.NewAzureClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL, cfg.APIVersion, dimension), nil
	case cfg.Provider == ProviderOllama:
		return embedding.NewOllamaClient(HTTPClient(), cfg.ModelKey, cfg.BaseURL, dimension), nil
	case cfg.Provider == ProviderGoogle:
		return embedding.NewGeminiClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL, dimension), nil
	}
	return nil, errors.Validationf("provider %q does not support embeddings", cfg.Provider)
}

// GetVisionModel 构建图像描述客户端。没有视觉能力的供应商
// 返回 UnsupportedClient，调用方拿到哨兵描述后按跳过处理。
func (r *Registry) GetVisionModel(cfg Config) (vision.Client, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderXAI, ProviderCustom:
		return vision.NewOpenAIClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL), nil
	case ProviderAnthropic:
		return vision.NewClaudeClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL), nil
	case ProviderGoogle:
		return vision.NewGeminiClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL), nil
	case ProviderAzure:
		return vision.NewAzureClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL, cfg.APIVersion), nil
	case ProviderOllama:
		return vision.NewOllamaClient(HTTPClient(), cfg.ModelKey, cfg.BaseURL), nil
	}
	return &vision.UnsupportedClient{Provider: cfg.Provider}, nil
}

// GetAudioModel 构建语音转写客户端
func (r *Registry) GetAudioModel(cfg Config) (voice.Client, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	switch {
	case cfg.openAICompatible():
		return voice.NewOpenAIClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL), nil
	case cfg.Provider == ProviderAzure:
		return voice.NewAzureClient(HTTPClient(), cfg.ModelKey, cfg.APIKey, cfg.BaseURL, cfg.APIVersion), nil
	}
	return nil, errors.Validationf("provider %q does not support audio transcription", cfg.Provider)
}

// ConfigForModel 按模型行 ID 拼出调用配置，API key 经 secrets 解析
func (r *Registry) ConfigForModel(ctx context.Context, modelID int64) (Config, error) {
	m, err := r.providers.GetModel(ctx, modelID)
	if err != nil {
		return Config{}, err
	}
	if m == nil {
		return Config{}, errors.ConfigMissingf("model %d not found", modelID)
	}
	p, err := r.providers.GetProvider(ctx, m.ProviderID)
	if err != nil {
		return Config{}, err
	}
	if p == nil {
		return Config{}, errors.ConfigMissingf("provider %d not found", m.ProviderID)
	}

	apiKey, err := secrets.Resolve(ctx, r.secrets, p.APIKey)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Provider:            p.Provider,
		APIKey:              apiKey,
		BaseURL:             p.BaseURL,
		ModelKey:            m.ModelKey,
		APIVersion:          m.Config.APIVersion,
		EmbeddingDimensions: m.Config.EmbeddingDimensions,
		Temperature:         m.Config.Temperature,
	}, nil
}

// LanguageModelByID 按模型行 ID 构建聊天客户端；id 为 0 表示未配置
func (r *Registry) LanguageModelByID(ctx context.Context, modelID int64) (llm.Client, error) {
	if modelID == 0 {
		return nil, errors.ConfigMissingf("no main model config")
	}
	cfg, err := r.ConfigForModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return r.GetLanguageModel(cfg)
}

// EmbeddingModelByID 按模型行 ID 构建向量化客户端；id 为 0 表示未配置
func (r *Registry) EmbeddingModelByID(ctx context.Context, modelID int64) (embedding.Client, error) {
	if modelID == 0 {
		return nil, errors.ConfigMissingf("no embeddings model config")
	}
	cfg, err := r.ConfigForModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return r.GetEmbeddingModel(cfg)
}

// VisionModelByID 按模型行 ID 构建图像描述客户端；id 为 0 表示未配置
func (r *Registry) VisionModelByID(ctx context.Context, modelID int64) (vision.Client, error) {
	if modelID == 0 {
		return nil, errors.ConfigMissingf("no image model config")
	}
	cfg, err := r.ConfigForModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return r.GetVisionModel(cfg)
}

// AudioModelByID 按模型行 ID 构建语音转写客户端；id 为 0 表示未配置
func (r *Registry) AudioModelByID(ctx context.Context, modelID int64) (voice.Client, error) {
	if modelID == 0 {
		return nil, errors.ConfigMissingf("no voice model config")
	}
	cfg, err := r.ConfigForModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return r.GetAudioModel(cfg)
}
