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
	"time"

	"note-platform/internal/model/llm"
	"note-platform/internal/storage/db"
	"note-platform/pkg/errors"
	"note-platform/pkg/secrets"
)

// CapabilityResult 单项能力的连通性测试结果
type CapabilityResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// 每项能力测试的独立超时
const testTimeout = 15 * time.Second

// TestConnection 对供应商下的一个模型做能力连通性测试。
// inference 发一条 1 token 的聊天，embedding 向量化一句固定文本，
// audio 无法自动测试，固定返回失败并说明原因。
func (r *Registry) TestConnection(ctx context.Context, providerID int64, modelKey string, caps db.Capabilities) (map[string]CapabilityResult, error) {
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
	cfg := Config{
		Provider: p.Provider,
		APIKey:   apiKey,
		BaseURL:  p.BaseURL,
		ModelKey: modelKey,
	}
	if v, ok := p.Config["apiVersion"].(string); ok {
		cfg.APIVersion = v
	}

	results := make(map[string]CapabilityResult)

	if caps.Inference {
		results["inference"] = r.testInference(ctx, cfg)
	}
	if caps.Embedding {
		results["embedding"] = r.testEmbedding(ctx, cfg)
	}
	if caps.Audio {
		results["audio"] = CapabilityResult{
			Success: false,
			Error:   "audio capability cannot be tested automatically",
		}
	}
	return results, nil
}

func (r *Registry) testInference(ctx context.Context, cfg Config) CapabilityResult {
	client, err := r.GetLanguageModel(cfg)
	if err != nil {
		return CapabilityResult{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()
	_, err = client.ChatWithContext(ctx, []llm.Message{{Role: "user", Content: "hi"}}, llm.GenerateOptions{MaxTokens: 1})
	if err != nil {
		return CapabilityResult{Error: err.Error()}
	}
	return CapabilityResult{Success: true}
}

func (r *Registry) testEmbedding(ctx context.Context, cfg Config) CapabilityResult {
	// 维度与连通性无关，推断不出时给占位值
	if cfg.EmbeddingDimensions == 0 {
		cfg.EmbeddingDimensions = 1536
	}
	client, err := r.GetEmbeddingModel(cfg)
	if err != nil {
		return CapabilityResult{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()
	vectors, err := client.Embed(ctx, []string{"test embedding"})
	if err != nil {
		return CapabilityResult{Error: err.Error()}
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return CapabilityResult{Error: "embedding API returned an empty vector"}
	}
	return CapabilityResult{Success: true}
}
