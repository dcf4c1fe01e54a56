// Copyright 2026 fanjia1024
// Tests for capability connection testing

package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-platform/internal/storage/db"
)

func TestTestConnection_InferenceAndEmbedding(t *testing.T) {
	var chatBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&chatBody))
			w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
		case "/v1/embeddings":
			w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2]}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	store := newFakeProviderStore()
	pid, err := store.UpsertProvider(context.Background(), &db.Provider{
		Provider: "custom",
		BaseURL:  srv.URL + "/v1",
		APIKey:   "sk-test",
	})
	require.NoError(t, err)

	r := newTestRegistry(store, nil)
	results, err := r.TestConnection(context.Background(), pid, "any-model", db.Capabilities{
		Inference: true,
		Embedding: true,
		Audio:     true,
	})
	require.NoError(t, err)

	require.Contains(t, results, "inference")
	assert.True(t, results["inference"].Success, results["inference"].Error)
	// 连通性测试只发 1 token
	assert.EqualValues(t, 1, chatBody["max_tokens"])

	require.Contains(t, results, "embedding")
	assert.True(t, results["embedding"].Success, results["embedding"].Error)

	require.Contains(t, results, "audio")
	assert.False(t, results["audio"].Success)
	assert.Contains(t, results["audio"].Error, "cannot be tested")
}

func TestTestConnection_ReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := newFakeProviderStore()
	pid, err := store.UpsertProvider(context.Background(), &db.Provider{
		Provider: "custom",
		BaseURL:  srv.URL + "/v1",
		APIKey:   "bad",
	})
	require.NoError(t, err)

	r := newTestRegistry(store, nil)
	results, err := r.TestConnection(context.Background(), pid, "any-model", db.Capabilities{Inference: true})
	require.NoError(t, err)
	assert.False(t, results["inference"].Success)
	assert.NotEmpty(t, results["inference"].Error)
}

func TestTestConnection_UnknownProvider(t *testing.T) {
	r := newTestRegistry(newFakeProviderStore(), nil)
	_, err := r.TestConnection(context.Background(), 404, "m", db.Capabilities{Inference: true})
	require.Error(t, err)
}
