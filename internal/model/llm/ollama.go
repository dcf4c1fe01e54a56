package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// OllamaClient 本地 Ollama 聊天客户端。baseURL 以 /api 结尾。
type OllamaClient struct {
	model   string
	baseURL string
	client  *resty.Client
}

// NewOllamaClient 创建 Ollama 客户端
func NewOllamaClient(client *resty.Client, model, baseURL string) *OllamaClient {
	return &OllamaClient{
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

// Generate 生成文本
func (c *OllamaClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return c.GenerateWithContext(context.Background(), prompt, options)
}

// GenerateWithContext 使用上下文生成文本
func (c *OllamaClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// Chat 聊天
func (c *OllamaClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return c.ChatWithContext(context.Background(), messages, options)
}

// ChatWithContext 使用上下文聊天
func (c *OllamaClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	chatMessages := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	opts := map[string]interface{}{}
	if options.Temperature > 0 {
		opts["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		opts["num_predict"] = options.MaxTokens
	}
	if options.TopP > 0 {
		opts["top_p"] = options.TopP
	}
	if len(options.Stop) > 0 {
		opts["stop"] = options.Stop
	}

	request := map[string]interface{}{
		"model":    c.model,
		"messages": chatMessages,
		"stream":   false,
	}
	if len(opts) > 0 {
		request["options"] = opts
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		Post(c.baseURL + "/chat")
	if err != nil {
		return "", fmt.Errorf("call ollama API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("ollama API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("parse ollama response: %w", err)
	}
	return result.Message.Content, nil
}

// Model 返回模型名称
func (c *OllamaClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *OllamaClient) Provider() string { return "ollama" }
