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
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"note-platform/pkg/errors"
)

// PgStore cache 表实现：进度类长生命周期键值，跨进程可见（API 读
// rebuild 进度，Worker 写）
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore 创建基于 cache 表的 Store；表结构见 internal/storage/db
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal cache value")
	}
	var expiresAt interface{}
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO cache (key, value, expires_at, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, data, expiresAt)
	if err != nil {
		return errors.WithKind(errors.ErrStorage, err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM cache WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key).Scan(&data)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return errors.WithKind(errors.ErrNotFound, err)
		}
		return errors.WithKind(errors.ErrStorage, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, "unmarshal cache value")
	}
	return nil
}

func (s *PgStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cache WHERE key = $1`, key)
	if err != nil {
		return errors.WithKind(errors.ErrStorage, err)
	}
	return nil
}

func (s *PgStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cache WHERE key = $1 AND (expires_at IS NULL OR expires_at > now()))`,
		key).Scan(&ok)
	if err != nil {
		return false, errors.WithKind(errors.ErrStorage, err)
	}
	return ok, nil
}

func (s *PgStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cache`)
	if err != nil {
		return errors.WithKind(errors.ErrStorage, err)
	}
	return nil
}

// Close 连接池由创建方管理，这里不关闭
func (s *PgStore) Close() error { return nil }
