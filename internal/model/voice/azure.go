package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// AzureClient Azure OpenAI 的语音转写客户端，model 即部署名
type AzureClient struct {
	model      string
	apiKey     string
	baseURL    string
	apiVersion string
	client     *resty.Client
}

// NewAzureClient 创建 Azure 语音客户端
func NewAzureClient(client *resty.Client, model, apiKey, baseURL, apiVersion string) *AzureClient {
	return &AzureClient{
		model:      model,
		apiKey:     apiKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		client:     client,
	}
}

// Listen 调用部署路径下的 transcriptions 接口转写音频
func (c *AzureClient) Listen(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "audio.mp3"
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("api-key", c.apiKey).
		SetQueryParam("api-version", c.apiVersion).
		SetFileReader("file", filename, audio).
		Post(fmt.Sprintf("%s/openai/deployments/%s/audio/transcriptions", c.baseURL, c.model))
	if err != nil {
		return "", fmt.Errorf("call azure transcription API: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("azure transcription API status %d: %s", response.StatusCode(), response.String())
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("parse azure transcription response: %w", err)
	}
	return result.Text, nil
}

// Name 返回部署名
func (c *AzureClient) Name() string { return c.model }
