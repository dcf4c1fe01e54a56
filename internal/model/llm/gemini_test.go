// Copyright 2026 fanjia1024
// Tests for the Google chat client

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

func TestGeminiClient_MapsRolesAndSystem(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		require.Equal(t, "g-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"reply"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(resty.New(), "gemini-2.0-flash", "g-key", srv.URL)
	out, err := c.ChatWithContext(context.Background(), []Message{
		{Role: "system", Content: "stay short"},
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
	}, GenerateOptions{MaxTokens: 32})
	require.NoError(t, err)
	assert.Equal(t, "reply", out)

	// assistant 映射为 model，system 提升为 systemInstruction
	contents := body["contents"].([]interface{})
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].(map[string]interface{})["role"])
	assert.Equal(t, "model", contents[1].(map[string]interface{})["role"])
	require.Contains(t, body, "systemInstruction")

	gen := body["generationConfig"].(map[string]interface{})
	assert.EqualValues(t, 32, gen["maxOutputTokens"])
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(resty.New(), "gemini-2.0-flash", "k", srv.URL)
	_, err := c.Generate("hi", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}
