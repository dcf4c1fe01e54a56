// Copyright 2026 fanjia1024
// Tests for the Anthropic chat client

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

func TestClaudeClient_HoistsSystemMessages(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"text":"answer"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient(resty.New(), "claude-sonnet-4-5", "sk-ant", srv.URL+"/v1")
	out, err := c.ChatWithContext(context.Background(), []Message{
		{Role: "system", Content: "rule one"},
		{Role: "system", Content: "rule two"},
		{Role: "user", Content: "question"},
	}, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	// system 消息提升为顶层字段，不留在 messages 里
	assert.Equal(t, "rule one\nrule two", body["system"])
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]interface{})["role"])

	// anthropic 的 max_tokens 必填，未指定时有默认值
	assert.EqualValues(t, 4096, body["max_tokens"])
}

func TestClaudeClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClaudeClient(resty.New(), "claude-sonnet-4-5", "bad", srv.URL)
	_, err := c.Chat([]Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
