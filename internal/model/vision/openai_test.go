// Copyright 2026 fanjia1024
// Tests for vision clients

package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_DescribeSendsDataURL(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"a red square"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(resty.New(), "gpt-4o", "sk", srv.URL+"/v1")
	desc, err := c.Describe(context.Background(), "QUJD", "image/png", "what is this")
	require.NoError(t, err)
	assert.Equal(t, "a red square", desc)

	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, content, 2)

	text := content[0].(map[string]interface{})
	assert.Equal(t, "text", text["type"])
	assert.Equal(t, "what is this", text["text"])

	image := content[1].(map[string]interface{})
	url := image["image_url"].(map[string]interface{})["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,QUJD"))
}

func TestOpenAIClient_DefaultPromptAndMime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content := body["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		assert.NotEmpty(t, content[0].(map[string]interface{})["text"])
		url := content[1].(map[string]interface{})["image_url"].(map[string]interface{})["url"].(string)
		assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(resty.New(), "gpt-4o", "sk", srv.URL)
	_, err := c.Describe(context.Background(), "QUJD", "", "")
	require.NoError(t, err)
}

func TestUnsupportedClient_Sentinel(t *testing.T) {
	c := &UnsupportedClient{Provider: "deepseek"}
	desc, err := c.Describe(context.Background(), "QUJD", "image/png", "describe")
	require.NoError(t, err)
	assert.Equal(t, NotSupported, desc)
	assert.Equal(t, "deepseek", c.Name())
}

func TestClaudeClient_DescribeUsesImageBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content := body["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		block := content[0].(map[string]interface{})
		require.Equal(t, "image", block["type"])
		source := block["source"].(map[string]interface{})
		assert.Equal(t, "base64", source["type"])
		assert.Equal(t, "image/webp", source["media_type"])
		w.Write([]byte(`{"content":[{"text":"a chart"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient(resty.New(), "claude-sonnet-4-5", "sk", srv.URL)
	desc, err := c.Describe(context.Background(), "QUJD", "image/webp", "")
	require.NoError(t, err)
	assert.Equal(t, "a chart", desc)
}
