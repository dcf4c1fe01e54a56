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

// Package retry 提供统一的重试策略，队列、重建循环与供应商请求共用。
package retry

import (
	"context"
	"time"
)

// Backoff 退避模式
type Backoff int

const (
	// BackoffFixed 每次等待 BaseDelay
	BackoffFixed Backoff = iota
	// BackoffLinear 第 n 次失败后等待 BaseDelay*n
	BackoffLinear
	// BackoffExponential 第 n 次失败后等待 BaseDelay*2^(n-1)
	BackoffExponential
)

// Policy 重试策略：Attempts 为总尝试次数（含首次）
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Backoff   Backoff
}

// Delay 第 attempt 次失败后的等待时长，attempt 从 1 起
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Backoff {
	case BackoffLinear:
		return p.BaseDelay * time.Duration(attempt)
	case BackoffExponential:
		d := p.BaseDelay
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	default:
		return p.BaseDelay
	}
}

// Do 按策略执行 fn，直到成功、耗尽次数或 ctx 取消；返回最后一次错误
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(i)):
		}
	}
	return lastErr
}
