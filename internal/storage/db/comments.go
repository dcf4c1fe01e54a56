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

	"github.com/jackc/pgx/v5/pgxpool"
)

// CommentStore 评论存储
type CommentStore interface {
	Create(ctx context.Context, c *Comment) (int64, error)
	ListByNote(ctx context.Context, noteID int64) ([]*Comment, error)
	Delete(ctx context.Context, id int64) error
}

// CommentStorePg Postgres 实现的 CommentStore
type CommentStorePg struct {
	pool *pgxpool.Pool
}

func NewCommentStorePg(pool *pgxpool.Pool) *CommentStorePg {
	return &CommentStorePg{pool: pool}
}

func (s *CommentStorePg) Create(ctx context.Context, c *Comment) (int64, error) {
	if c == nil {
		return 0, errors.New("nil comment")
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO comments (note_id, account_id, guest_name, content)
		 VALUES ($1, NULLIF($2, 0), NULLIF($3, ''), $4)
		 RETURNING id`,
		c.NoteID, c.AccountID, c.GuestName, c.Content).Scan(&c.ID)
	return c.ID, err
}

func (s *CommentStorePg) ListByNote(ctx context.Context, noteID int64) ([]*Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, note_id, COALESCE(account_id, 0), COALESCE(guest_name, ''), content, created_at
		 FROM comments WHERE note_id = $1 ORDER BY created_at ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.NoteID, &c.AccountID, &c.GuestName, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *CommentStorePg) Delete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return err
}
