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

package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TagStore 标签存储；标签名按 "a/b/c" 层级展开
type TagStore interface {
	EnsurePath(ctx context.Context, ownerID int64, path string) (int64, error)
	Get(ctx context.Context, id int64) (*Tag, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*Tag, error)
	FindByName(ctx context.Context, ownerID int64, name string) (*Tag, error)
	AttachNote(ctx context.Context, tagID, noteID int64) error
	DetachNote(ctx context.Context, tagID, noteID int64) error
	NoteTagIDs(ctx context.Context, noteID int64) ([]int64, error)
}

// TagStorePg Postgres 实现的 TagStore
type TagStorePg struct {
	pool *pgxpool.Pool
}

func NewTagStorePg(pool *pgxpool.Pool) *TagStorePg {
	return &TagStorePg{pool: pool}
}

// EnsurePath 逐级创建 "a/b/c" 形式的标签路径，返回叶子标签 ID
func (s *TagStorePg) EnsurePath(ctx context.Context, ownerID int64, path string) (int64, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	var parent int64
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var id int64
		err := s.pool.QueryRow(ctx,
			`INSERT INTO tags (owner_id, name, parent)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (owner_id, name, parent) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			ownerID, part, parent).Scan(&id)
		if err != nil {
			return 0, err
		}
		parent = id
	}
	if parent == 0 {
		return 0, errors.New("empty tag path")
	}
	return parent, nil
}

// Get 按 ID 取标签，不存在返回 nil
func (s *TagStorePg) Get(ctx context.Context, id int64) (*Tag, error) {
	var t Tag
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, COALESCE(icon, ''), parent FROM tags WHERE id = $1`,
		id).Scan(&t.ID, &t.OwnerID, &t.Name, &t.Icon, &t.Parent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *TagStorePg) ListByOwner(ctx context.Context, ownerID int64) ([]*Tag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, COALESCE(icon, ''), parent FROM tags
		 WHERE owner_id = $1 ORDER BY id ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Icon, &t.Parent); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *TagStorePg) FindByName(ctx context.Context, ownerID int64, name string) (*Tag, error) {
	var t Tag
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, COALESCE(icon, ''), parent FROM tags
		 WHERE owner_id = $1 AND name = $2 ORDER BY parent ASC LIMIT 1`,
		ownerID, name).Scan(&t.ID, &t.OwnerID, &t.Name, &t.Icon, &t.Parent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *TagStorePg) AttachNote(ctx context.Context, tagID, noteID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tags_to_notes (tag_id, note_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		tagID, noteID)
	return err
}

func (s *TagStorePg) DetachNote(ctx context.Context, tagID, noteID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM tags_to_notes WHERE tag_id = $1 AND note_id = $2`, tagID, noteID)
	return err
}

func (s *TagStorePg) NoteTagIDs(ctx context.Context, noteID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tag_id FROM tags_to_notes WHERE note_id = $1 ORDER BY tag_id ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
