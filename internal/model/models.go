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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"note-platform/internal/storage/db"
	"note-platform/pkg/errors"
	"note-platform/pkg/secrets"
)

// ModelInfo 供应商侧可用模型及推断出的能力
type ModelInfo struct {
	Name         string          `json:"name"`
	Capabilities db.Capabilities `json:"capabilities"`
}

// anthropic 与 voyage 没有模型列表接口，维护静态清单
var (
	anthropicModels = []string{
		"claude-sonnet-4-5",
		"claude-opus-4-1",
		"claude-3-7-sonnet-latest",
		"claude-3-5-haiku-latest",
	}
	voyageModels = []string{
		"voyage-3-large",
		"voyage-3.5",
		"voyage-3.5-lite",
		"voyage-code-3",
	}
)

// FetchProviderModels 拉取供应商的可用模型列表，结果写回
// provider 行的 config["models"] 作为缓存。
func (r *Registry) FetchProviderModels(ctx context.Context, providerID int64) ([]ModelInfo, error) {
	p, err := r.providers.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.ConfigMissingf("provider %d not found", providerID)
	}

	apiKey, err := secrets.Resolve(ctx, r.secrets, p.APIKey)
	if err != nil {
		return nil, err
	}
	cfg := Config{Provider: p.Provider, APIKey: apiKey, BaseURL: p.BaseURL}
	if v, ok := p.Config["apiVersion"].(string); ok {
		cfg.APIVersion = v
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	var names []string
	switch {
	case cfg.openAICompatible():
		names, err = r.fetchOpenAIModels(ctx, cfg)
	case cfg.Provider == ProviderOllama:
		names, err = r.fetchOllamaModels(ctx, cfg)
	case cfg.Provider == ProviderGoogle:
		names, err = r.fetchGoogleModels(ctx, cfg)
	case cfg.Provider == ProviderAzure:
		names, err = r.fetchAzureModels(ctx, cfg)
	case cfg.Provider == ProviderAnthropic:
		names = anthropicModels
	case cfg.Provider == ProviderVoyage:
		names = voyageModels
	default:
		return nil, errors.Validationf("provider %q does not expose a model list", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	infos := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, ModelInfo{Name: name, Capabilities: inferCapabilities(name)})
	}

	// 缓存进 provider 行，拉取失败时前端还能展示旧列表
	if p.Config == nil {
		p.Config = make(map[string]any)
	}
	p.Config["models"] = infos
	if _, err := r.providers.UpsertProvider(ctx, p); err != nil {
		r.log.Warn("cache provider models failed", "provider_id", providerID, "error", err)
	}
	return infos, nil
}

func (r *Registry) fetchOpenAIModels(ctx context.Context, cfg Config) ([]string, error) {
	response, err := HTTPClient().R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		Get(cfg.BaseURL + "/models")
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list models status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("parse model list: %w", err)
	}
	names := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func (r *Registry) fetchOllamaModels(ctx context.Context, cfg Config) ([]string, error) {
	// base 已以 /api 结尾
	response, err := HTTPClient().R().
		SetContext(ctx).
		Get(cfg.BaseURL + "/tags")
	if err != nil {
		return nil, fmt.Errorf("list ollama models: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list ollama models status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("parse ollama model list: %w", err)
	}
	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (r *Registry) fetchGoogleModels(ctx context.Context, cfg Config) ([]string, error) {
	response, err := HTTPClient().R().
		SetContext(ctx).
		SetQueryParam("key", cfg.APIKey).
		Get(cfg.BaseURL + "/models")
	if err != nil {
		return nil, fmt.Errorf("list google models: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list google models status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("parse google model list: %w", err)
	}
	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

func (r *Registry) fetchAzureModels(ctx context.Context, cfg Config) ([]string, error) {
	response, err := HTTPClient().R().
		SetContext(ctx).
		SetHeader("api-key", cfg.APIKey).
		SetQueryParam("api-version", cfg.APIVersion).
		Get(cfg.BaseURL + "/openai/models")
	if err != nil {
		return nil, fmt.Errorf("list azure models: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list azure models status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("parse azure model list: %w", err)
	}
	names := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

// inferCapabilities 根据模型名猜能力向量。rerank 仅标记，无对应管线。
func inferCapabilities(name string) db.Capabilities {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "rerank"):
		return db.Capabilities{Rerank: true}
	case strings.Contains(n, "embed"), strings.Contains(n, "bge-"),
		strings.Contains(n, "minilm"), strings.Contains(n, "voyage"):
		return db.Capabilities{Embedding: true}
	case strings.Contains(n, "whisper"), strings.Contains(n, "tts"), strings.Contains(n, "audio"):
		return db.Capabilities{Audio: true}
	}

	caps := db.Capabilities{Inference: true, Tools: true}
	if strings.Contains(n, "vision") || strings.Contains(n, "4o") ||
		strings.Contains(n, "gemini") || strings.Contains(n, "llava") {
		caps.Image = true
	}
	return caps
}
