// Copyright 2026 fanjia1024
// Tests for the provider rate limiter

package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMRateLimiter_ConcurrencyGate(t *testing.T) {
	limiter := NewLLMRateLimiter(map[string]LLMLimitConfig{
		"openai": {MaxConcurrent: 1},
	}, nil)

	require.NoError(t, limiter.Wait(context.Background(), "openai", 10))

	// 并发槽已满，第二次 Wait 应被 context 取消
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := limiter.Wait(ctx, "openai", 10)
	require.Error(t, err)

	limiter.Release("openai")
	require.NoError(t, limiter.Wait(context.Background(), "openai", 10))
	limiter.Release("openai")
}

func TestLLMRateLimiter_DefaultsForUnknownProvider(t *testing.T) {
	limiter := NewLLMRateLimiter(nil, &LLMLimitConfig{
		TokensPerMinute:   6000,
		RequestsPerMinute: 600,
		MaxConcurrent:     5,
	})

	require.NoError(t, limiter.Wait(context.Background(), "brand-new", 100))
	limiter.Release("brand-new")

	stats := limiter.GetStats("brand-new")
	require.NotNil(t, stats)
	assert.EqualValues(t, 6000, stats["tokens_per_minute"])
}

func TestLLMRateLimiter_AllowNonBlocking(t *testing.T) {
	limiter := NewLLMRateLimiter(map[string]LLMLimitConfig{
		"tight": {RequestsPerMinute: 60, MaxConcurrent: 1},
	}, nil)

	assert.True(t, limiter.Allow("tight", 1))
	// 并发槽被上一次 Allow 占用
	assert.False(t, limiter.Allow("tight", 1))
	limiter.Release("tight")
}

func TestRateLimitedClient_NilLimiterPassthrough(t *testing.T) {
	inner := &staticClient{reply: "done"}
	c := NewRateLimitedClient(inner, nil)

	out, err := c.Chat([]Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, inner.Provider(), c.Provider())
	assert.Equal(t, inner.Model(), c.Model())
}

func TestEstimateTokens(t *testing.T) {
	// 4 字符 ≈ 1 token，再叠加 MaxTokens
	assert.Equal(t, 25, estimateTokens("aaaabbbbccccddddeeeeffff", 19))
	assert.Equal(t, 1, estimateTokens("", 0))
}

// staticClient 固定应答的 Client 替身
type staticClient struct {
	reply string
}

func (s *staticClient) Generate(prompt string, options GenerateOptions) (string, error) {
	return s.reply, nil
}

func (s *staticClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return s.reply, nil
}

func (s *staticClient) Chat(messages []Message, options GenerateOptions) (string, error) {
	return s.reply, nil
}

func (s *staticClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	return s.reply, nil
}

func (s *staticClient) Model() string    { return "static" }
func (s *staticClient) Provider() string { return "static" }
