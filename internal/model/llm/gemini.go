package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// GeminiClient Google Generative AI 聊天客户端
type GeminiClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *resty.Client
}

// NewGeminiClient 创建 Google 客户端
func NewGeminiClient(client *resty.Client, model, apiKey, baseURL string) *GeminiClient {
	return &GeminiClient{
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

// Generate 生成文本
func (c *GeminiClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.GenerateWithContext(context.Background(), prompt, options)
}

// GenerateWithContext 使用上下文生成文本
func (c *GeminiClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// Chat 聊天
func (c *GeminiClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

// ChatWithContext 使用上下文聊天。assistant 映射为 model 角色，
// system 消息提升为 systemInstruction。
func (c *GeminiClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	var system string
	contents := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += msg.Content
			continue
		case "assistant":
			msg.Role = "model"
		}
		contents = append(contents, map[string]interface{}{
			"role":  msg.Role,
			"parts": []map[string]interface{}{{"text": msg.Content}},
		})
	}

	generationConfig := map[string]interface{}{}
	if options.Temperature > 0 {
		generationConfig["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = options.MaxTokens
	}
	if options.TopP > 0 {
		generationConfig["topP"] = options.TopP
	}
	if len(options.Stop) > 0 {
		generationConfig["stopSequences"] = options.Stop
	}

	request := map[string]interface{}{"contents": contents}
	if len(generationConfig) > 0 {
		request["generationConfig"] = generationConfig
	}
	if system != "" {
		request["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": system}},
		}
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/models/" + c.model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("call google API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("google API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("parse google response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("google API returned no candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// Model 返回模型名称
func (c *GeminiClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *GeminiClient) Provider() string { return "google" }
