// Copyright 2026 fanjia1024
// Tests for the Ollama chat client

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Chat(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"role":"assistant","content":"local answer"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(resty.New(), "qwen2.5:7b", srv.URL+"/api")
	out, err := c.ChatWithContext(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, GenerateOptions{Temperature: 0.5, MaxTokens: 128})
	require.NoError(t, err)
	assert.Equal(t, "local answer", out)

	assert.Equal(t, "qwen2.5:7b", body["model"])
	assert.Equal(t, false, body["stream"])
	opts := body["options"].(map[string]interface{})
	assert.EqualValues(t, 128, opts["num_predict"])
	assert.InDelta(t, 0.5, opts["temperature"].(float64), 1e-9)
}

func TestOllamaClient_OmitsEmptyOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "options")
		w.Write([]byte(`{"message":{"content":"ok"}}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(resty.New(), "m", srv.URL+"/api")
	_, err := c.Chat([]Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.NoError(t, err)
}
