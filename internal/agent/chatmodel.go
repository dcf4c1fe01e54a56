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

package agent

import (
	"context"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"

	"note-platform/internal/model"
	"note-platform/internal/model/llm"
	"note-platform/pkg/errors"
)

// ChatClientFactory 非 OpenAI 协议族的聊天客户端工厂；生产实现为
// model.Registry.GetLanguageModel
type ChatClientFactory func(cfg model.Config) (llm.Client, error)

// NewChatModel 把模型行配置翻成 eino 聊天模型。OpenAI 协议族（含
// azure 部署路径与 ollama 的 /v1 兼容挂载）走 eino-ext 原生模型，
// 支持工具调用与真流式；anthropic/google 走内部 llm.Client 适配器，
// 不支持工具，流式退化为单块。
func NewChatModel(ctx context.Context, cfg model.Config, fallback ChatClientFactory) (einomodel.ToolCallingChatModel, error) {
	switch cfg.Provider {
	case model.ProviderOpenAI, model.ProviderOpenRouter, model.ProviderDeepSeek,
		model.ProviderXAI, model.ProviderCustom:
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.ModelKey,
			BaseURL: cfg.BaseURL,
			Timeout: 2 * time.Minute,
		})
	case model.ProviderAzure:
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.ModelKey,
			BaseURL:    cfg.BaseURL,
			ByAzure:    true,
			APIVersion: cfg.APIVersion,
			Timeout:    2 * time.Minute,
		})
	case model.ProviderOllama:
		// registry 侧 base 以 /api 结尾；OpenAI 兼容面挂在 /v1
		base := strings.TrimSuffix(cfg.BaseURL, "/api") + "/v1"
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			APIKey:  "ollama",
			Model:   cfg.ModelKey,
			BaseURL: base,
			Timeout: 2 * time.Minute,
		})
	case model.ProviderAnthropic, model.ProviderGoogle:
		if fallback == nil {
			return nil, errors.ConfigMissingf("no chat client factory for provider %q", cfg.Provider)
		}
		client, err := fallback(cfg)
		if err != nil {
			return nil, err
		}
		return &chatAdapter{client: client, temperature: cfg.Temperature}, nil
	}
	return nil, errors.Validationf("provider %q does not support chat", cfg.Provider)
}

// chatAdapter 把内部 llm.Client 包成 eino 聊天模型。
type chatAdapter struct {
	client      llm.Client
	temperature float64
}

func (a *chatAdapter) Generate(ctx context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	msgs := make([]llm.Message, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	out, err := a.client.ChatWithContext(ctx, msgs, llm.GenerateOptions{Temperature: a.temperature})
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(out, nil), nil
}

// Stream 单块流：完整生成后一次性吐出
func (a *chatAdapter) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := a.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (a *chatAdapter) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return nil, errors.Wrapf(errors.ErrCapabilityUnsupported,
		"provider %q chat client has no tool calling", a.client.Provider())
}
