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

package cache

import (
	"context"
	"time"
)

// Store 进程间共享的小对象缓存。重建进度、推荐游标、备份状态都存
// 这里：API 与 worker 各自读写，Pg 实现即跨进程可见。
type Store interface {
	// Set 写入并覆盖；expiration <= 0 表示不过期
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Get 读入 dest（JSON 反序列化语义）；不存在时报错
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Clear 清空全部键，仅测试与运维工具使用
	Clear(ctx context.Context) error
	Close() error
}
