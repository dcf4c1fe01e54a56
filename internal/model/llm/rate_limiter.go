// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"note-platform/pkg/errors"
)

// LLMLimitConfig 单个 provider 的限流配额
type LLMLimitConfig struct {
	TokensPerMinute   int     `yaml:"tokens_per_minute"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	MaxConcurrent     int     `yaml:"max_concurrent"`
}

// LLMRateLimiter provider 维度的出站限流：RPS、token 预算与并发三层。
// 后处理与重建会从 worker 大批量打 provider，这里是兜底闸门。
type LLMRateLimiter struct {
	mu       sync.RWMutex
	byName   map[string]*providerGate
	defaults LLMLimitConfig
}

type providerGate struct {
	requests *rate.Limiter // nil 表示不限
	tokens   *rate.Limiter
	slots    chan struct{}
	config   LLMLimitConfig

	mu          sync.Mutex
	usedMinute  int
	minuteStart time.Time
}

// NewLLMRateLimiter 创建限流器；defaults 为 nil 时使用内置默认配额。
// 未预配置的 provider 在首次 Wait 时按默认配额补建。
func NewLLMRateLimiter(configs map[string]LLMLimitConfig, defaults *LLMLimitConfig) *LLMRateLimiter {
	def := LLMLimitConfig{
		TokensPerMinute:   90000,
		RequestsPerMinute: 3500,
		MaxConcurrent:     50,
	}
	if defaults != nil {
		def = *defaults
	}
	l := &LLMRateLimiter{
		byName:   make(map[string]*providerGate),
		defaults: def,
	}
	for provider, cfg := range configs {
		l.byName[provider] = newGate(cfg)
	}
	return l
}

func newGate(cfg LLMLimitConfig) *providerGate {
	g := &providerGate{config: cfg, minuteStart: time.Now()}
	// 分钟配额折算到秒，burst 留 2 秒余量
	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		g.requests = rate.NewLimiter(rate.Limit(rps), max(int(rps*2), 1))
	}
	if cfg.TokensPerMinute > 0 {
		tps := float64(cfg.TokensPerMinute) / 60.0
		g.tokens = rate.NewLimiter(rate.Limit(tps), max(cfg.TokensPerMinute/30, 1))
	}
	if cfg.MaxConcurrent > 0 {
		g.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	return g
}

func (l *LLMRateLimiter) gate(provider string) *providerGate {
	l.mu.RLock()
	g, ok := l.byName[provider]
	l.mu.RUnlock()
	if ok {
		return g
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok = l.byName[provider]; ok {
		return g
	}
	g = newGate(l.defaults)
	l.byName[provider] = g
	return g
}

// Wait 阻塞到三层闸门全部放行；成功后必须配对调用 Release
func (l *LLMRateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	g := l.gate(provider)

	if g.requests != nil {
		if err := g.requests.Wait(ctx); err != nil {
			return errors.Wrapf(err, "request quota for %s", provider)
		}
	}
	if g.tokens != nil && estimatedTokens > 0 {
		if err := g.tokens.WaitN(ctx, estimatedTokens); err != nil {
			return errors.Wrapf(err, "token budget for %s", provider)
		}
	}
	if g.slots != nil {
		select {
		case g.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.record(estimatedTokens)
	return nil
}

// Release 归还并发 slot
func (l *LLMRateLimiter) Release(provider string) {
	l.mu.RLock()
	g, ok := l.byName[provider]
	l.mu.RUnlock()
	if !ok || g.slots == nil {
		return
	}
	select {
	case <-g.slots:
	default:
	}
}

// RecordTokenUsage 按实际消耗修正分钟统计
func (l *LLMRateLimiter) RecordTokenUsage(provider string, actualTokens int) {
	l.mu.RLock()
	g, ok := l.byName[provider]
	l.mu.RUnlock()
	if ok {
		g.record(actualTokens)
	}
}

func (g *providerGate) record(tokens int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if now.Sub(g.minuteStart) > time.Minute {
		g.usedMinute = tokens
		g.minuteStart = now
		return
	}
	g.usedMinute += tokens
}

// GetStats 当前配额与占用快照；未知 provider 返回 nil
func (l *LLMRateLimiter) GetStats(provider string) map[string]any {
	l.mu.RLock()
	g, ok := l.byName[provider]
	l.mu.RUnlock()
	if !ok {
		return nil
	}

	g.mu.Lock()
	used := g.usedMinute
	g.mu.Unlock()

	stats := map[string]any{
		"requests_per_minute": g.config.RequestsPerMinute,
		"tokens_per_minute":   g.config.TokensPerMinute,
		"tokens_used_minute":  used,
		"max_concurrent":      g.config.MaxConcurrent,
	}
	if g.slots != nil {
		stats["current_concurrent"] = len(g.slots)
		stats["available_slots"] = cap(g.slots) - len(g.slots)
	}
	return stats
}

// Allow 非阻塞探测；通过并发层时同样占用 slot，需 Release 归还
func (l *LLMRateLimiter) Allow(provider string, estimatedTokens int) bool {
	l.mu.RLock()
	g, ok := l.byName[provider]
	l.mu.RUnlock()
	if !ok {
		return true
	}

	if g.requests != nil && !g.requests.Allow() {
		return false
	}
	if g.tokens != nil && estimatedTokens > 0 && !g.tokens.AllowN(time.Now(), estimatedTokens) {
		return false
	}
	if g.slots != nil {
		select {
		case g.slots <- struct{}{}:
		default:
			return false
		}
	}
	return true
}
