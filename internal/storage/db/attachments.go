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
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttachmentStore 附件存储
type AttachmentStore interface {
	Create(ctx context.Context, att *Attachment) (int64, error)
	Get(ctx context.Context, id int64) (*Attachment, error)
	GetByPath(ctx context.Context, path string) (*Attachment, error)
	ListByNote(ctx context.Context, noteID int64) ([]*Attachment, error)
	BindNote(ctx context.Context, id, noteID int64) error
	UpdateMetadata(ctx context.Context, id int64, meta map[string]any) error
	Delete(ctx context.Context, id int64) error
}

// AttachmentStorePg Postgres 实现的 AttachmentStore
type AttachmentStorePg struct {
	pool *pgxpool.Pool
}

func NewAttachmentStorePg(pool *pgxpool.Pool) *AttachmentStorePg {
	return &AttachmentStorePg{pool: pool}
}

const attachmentColumns = `id, COALESCE(note_id, 0), owner_id, path, name, size, COALESCE(type, ''),
	 COALESCE(metadata, '{}'::jsonb), created_at, updated_at`

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	var meta []byte
	err := row.Scan(&a.ID, &a.NoteID, &a.OwnerID, &a.Path, &a.Name, &a.Size, &a.Type,
		&meta, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &a.Metadata)
	}
	return &a, nil
}

func (s *AttachmentStorePg) Create(ctx context.Context, att *Attachment) (int64, error) {
	if att == nil {
		return 0, errors.New("nil attachment")
	}
	meta, _ := json.Marshal(att.Metadata)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attachments (note_id, owner_id, path, name, size, type, metadata)
		 VALUES (NULLIF($1, 0), $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (path) DO UPDATE SET name = EXCLUDED.name, size = EXCLUDED.size,
		   type = EXCLUDED.type, updated_at = now()
		 RETURNING id`,
		att.NoteID, att.OwnerID, att.Path, att.Name, att.Size, att.Type, meta).Scan(&att.ID)
	return att.ID, err
}

func (s *AttachmentStorePg) Get(ctx context.Context, id int64) (*Attachment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id)
	a, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (s *AttachmentStorePg) GetByPath(ctx context.Context, path string) (*Attachment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE path = $1`, path)
	a, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (s *AttachmentStorePg) ListByNote(ctx context.Context, noteID int64) ([]*Attachment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE note_id = $1 ORDER BY id ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AttachmentStorePg) BindNote(ctx context.Context, id, noteID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE attachments SET note_id = NULLIF($1, 0), updated_at = now() WHERE id = $2`,
		noteID, id)
	return err
}

func (s *AttachmentStorePg) UpdateMetadata(ctx context.Context, id int64, meta map[string]any) error {
	raw, _ := json.Marshal(meta)
	_, err := s.pool.Exec(ctx,
		`UPDATE attachments SET metadata = $1, updated_at = now() WHERE id = $2`,
		raw, id)
	return err
}

func (s *AttachmentStorePg) Delete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	return err
}
