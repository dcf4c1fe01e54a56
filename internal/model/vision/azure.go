package vision

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// AzureClient Azure OpenAI 的视觉客户端，model 即部署名
type AzureClient struct {
	model      string
	apiKey     string
	baseURL    string
	apiVersion string
	client     *resty.Client
}

// NewAzureClient 创建 Azure 视觉客户端
func NewAzureClient(client *resty.Client, model, apiKey, baseURL, apiVersion string) *AzureClient {
	return &AzureClient{
		model:      model,
		apiKey:     apiKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		client:     client,
	}
}

// Describe 以多模态 chat 请求描述图像
func (c *AzureClient) Describe(ctx context.Context, imageBase64, mimeType, prompt string) (string, error) {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("api-key", c.apiKey).
		SetQueryParam("api-version", c.apiVersion).
		SetBody(map[string]interface{}{
			"messages": visionMessages(imageBase64, mimeType, prompt),
		}).
		Post(fmt.Sprintf("%s/openai/deployments/%s/chat/completions", c.baseURL, c.model))
	if err != nil {
		return "", fmt.Errorf("call azure vision API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("azure vision API status %d: %s", response.StatusCode(), response.String())
	}
	return parseVisionResponse(response.Body())
}

// Name 返回部署名
func (c *AzureClient) Name() string { return c.model }
