// Copyright 2026 fanjia1024
// Tests for voice transcription clients

package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_ListenSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.Equal(t, "Bearer sk", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "memo.mp3", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello from the voice memo"}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(resty.New(), "whisper-1", "sk", srv.URL+"/v1")
	text, err := c.Listen(context.Background(), strings.NewReader("fake-audio-bytes"), "memo.mp3")
	require.NoError(t, err)
	assert.Equal(t, "hello from the voice memo", text)
}

func TestOpenAIClient_ListenDefaultFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.NotEmpty(t, header.Filename)
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(resty.New(), "whisper-1", "sk", srv.URL)
	_, err := c.Listen(context.Background(), strings.NewReader("x"), "")
	require.NoError(t, err)
}

func TestAzureClient_ListenUsesDeploymentPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/openai/deployments/whisper-deploy/audio/transcriptions", r.URL.Path)
		require.Equal(t, "2024-06-01", r.URL.Query().Get("api-version"))
		require.Equal(t, "az-key", r.Header.Get("api-key"))
		w.Write([]byte(`{"text":"azure text"}`))
	}))
	defer srv.Close()

	c := NewAzureClient(resty.New(), "whisper-deploy", "az-key", srv.URL, "2024-06-01")
	text, err := c.Listen(context.Background(), strings.NewReader("x"), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "azure text", text)
}
