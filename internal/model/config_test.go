// Copyright 2026 fanjia1024
// Tests for provider config normalization

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-platform/pkg/errors"
)

func TestNormalize_DefaultBaseURLs(t *testing.T) {
	cases := map[string]string{
		ProviderOpenAI:     "https://api.openai.com/v1",
		ProviderAnthropic:  "https://api.anthropic.com/v1",
		ProviderGoogle:     "https://generativelanguage.googleapis.com/v1beta",
		ProviderOpenRouter: "https://openrouter.ai/api/v1",
		ProviderDeepSeek:   "https://api.deepseek.com/v1",
		ProviderXAI:        "https://api.x.ai/v1",
		ProviderVoyage:     "https://api.voyageai.com/v1",
	}
	for provider, want := range cases {
		cfg := Config{Provider: provider, ModelKey: "m"}
		require.NoError(t, cfg.normalize(), provider)
		assert.Equal(t, want, cfg.BaseURL, provider)
	}
}

func TestNormalize_OllamaAPIBase(t *testing.T) {
	// 缺省地址补全
	cfg := Config{Provider: ProviderOllama}
	require.NoError(t, cfg.normalize())
	assert.Equal(t, "http://localhost:11434/api", cfg.BaseURL)

	// 自定义地址强制 /api 结尾
	cfg = Config{Provider: ProviderOllama, BaseURL: "http://gpu-box:11434"}
	require.NoError(t, cfg.normalize())
	assert.Equal(t, "http://gpu-box:11434/api", cfg.BaseURL)

	// 已带 /api 不重复追加
	cfg = Config{Provider: ProviderOllama, BaseURL: "http://gpu-box:11434/api"}
	require.NoError(t, cfg.normalize())
	assert.Equal(t, "http://gpu-box:11434/api", cfg.BaseURL)
}

func TestNormalize_AzureRequiresBaseAndVersion(t *testing.T) {
	cfg := Config{Provider: ProviderAzure, APIVersion: "2024-06-01"}
	err := cfg.normalize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigMissing))

	cfg = Config{Provider: ProviderAzure, BaseURL: "https://myorg.openai.azure.com"}
	err = cfg.normalize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigMissing))

	cfg = Config{Provider: ProviderAzure, BaseURL: "https://myorg.openai.azure.com", APIVersion: "2024-06-01"}
	require.NoError(t, cfg.normalize())
}

func TestNormalize_CustomRequiresBaseURL(t *testing.T) {
	cfg := Config{Provider: ProviderCustom}
	err := cfg.normalize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigMissing))

	cfg = Config{Provider: ProviderCustom, BaseURL: "http://localhost:8080/v1"}
	require.NoError(t, cfg.normalize())
}

func TestNormalize_UnknownProvider(t *testing.T) {
	cfg := Config{Provider: "watson"}
	err := cfg.normalize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestNormalize_TrimsCaseAndSlash(t *testing.T) {
	cfg := Config{Provider: " OpenAI ", BaseURL: "https://proxy.example.com/v1/"}
	require.NoError(t, cfg.normalize())
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "https://proxy.example.com/v1", cfg.BaseURL)
}
