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

// Package cache 进度缓存：重建进度、备份进度、推荐 feed 等长生命周期
// 键值。生产走 cache 表（跨进程可见，API 读 Worker 写），测试用内存实现。
package cache

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// 固定键名：多组件共享，集中定义避免漂移
const (
	KeyRebuildProgress = "rebuild-embedding-progress"
	KeyBackupProgress  = "database-backup-progress"
	// KeyRecommendFeedPrefix 后接 accountId
	KeyRecommendFeedPrefix = "recommend-feed-"
)

// New 按后端类型创建 Store；backend 为空且 pool 可用时默认 pg
func New(backend string, pool *pgxpool.Pool) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "", "pg":
		if pool == nil {
			return NewMemoryStore(), nil
		}
		return NewPgStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", backend)
	}
}
