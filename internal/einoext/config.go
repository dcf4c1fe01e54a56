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

// Package einoext 基于 eino-ext 的 redis 向量通路：索引引擎在
// vector.backend=redis 时经由这里的 indexer/retriever 读写。
package einoext

import (
	"github.com/redis/go-redis/v9"

	"note-platform/pkg/config"
)

// RedisOptions 从向量配置构造 redis.Options（backend=redis 时使用）
func RedisOptions(cfg config.VectorConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	// Redis Stack 向量检索需 Protocol 2、UnstableResp3 true（见 eino-ext retriever 注释）
	opts.Protocol = 2
	opts.UnstableResp3 = true
	return opts
}
