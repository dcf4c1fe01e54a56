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
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NoteStore 笔记存储
type NoteStore interface {
	Upsert(ctx context.Context, note *Note) (int64, error)
	Get(ctx context.Context, id int64) (*Note, error)
	GetMany(ctx context.Context, ids []int64) ([]*Note, error)
	List(ctx context.Context, ownerID int64, filter NoteFilter) ([]*Note, error)
	TrashMany(ctx context.Context, ownerID int64, ids []int64) error
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListForIndex(ctx context.Context, excludeIDs []int64) ([]*Note, error)
	SetMetadataFlag(ctx context.Context, id int64, key string, value bool) error
	Delete(ctx context.Context, ownerID, id int64) error
}

// NoteStorePg Postgres 实现的 NoteStore
type NoteStorePg struct {
	pool *pgxpool.Pool
}

// NewNoteStorePg 基于共享连接池创建 NoteStore
func NewNoteStorePg(pool *pgxpool.Pool) *NoteStorePg {
	return &NoteStorePg{pool: pool}
}

const noteColumns = `id, owner_id, type, content, is_archived, is_recycle, is_top, is_share,
	 sort_order, COALESCE(metadata, '{}'::jsonb), created_at, updated_at`

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	var meta []byte
	err := row.Scan(&n.ID, &n.OwnerID, &n.Type, &n.Content, &n.IsArchived, &n.IsRecycle,
		&n.IsTop, &n.IsShare, &n.SortOrder, &meta, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &n.Metadata)
	}
	return &n, nil
}

// Upsert 创建或更新笔记；ID 为 0 时插入，返回最终 ID
func (s *NoteStorePg) Upsert(ctx context.Context, note *Note) (int64, error) {
	if note == nil {
		return 0, errors.New("nil note")
	}
	meta, _ := json.Marshal(note.Metadata)
	if note.ID == 0 {
		err := s.pool.QueryRow(ctx,
			`INSERT INTO notes (owner_id, type, content, is_archived, is_recycle, is_top, is_share, sort_order, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			note.OwnerID, note.Type, note.Content, note.IsArchived, note.IsRecycle,
			note.IsTop, note.IsShare, note.SortOrder, meta).Scan(&note.ID)
		return note.ID, err
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE notes SET type = $1, content = $2, is_archived = $3, is_recycle = $4,
		 is_top = $5, is_share = $6, sort_order = $7, metadata = $8, updated_at = now()
		 WHERE id = $9 AND owner_id = $10`,
		note.Type, note.Content, note.IsArchived, note.IsRecycle,
		note.IsTop, note.IsShare, note.SortOrder, meta, note.ID, note.OwnerID)
	return note.ID, err
}

func (s *NoteStorePg) Get(ctx context.Context, id int64) (*Note, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return n, nil
}

func (s *NoteStorePg) GetMany(ctx context.Context, ids []int64) ([]*Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := make(map[int64]*Note, len(ids))
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		byID[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// 按请求顺序返回，缺失的跳过
	out := make([]*Note, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// List 按过滤条件列出 ownerID 的笔记
func (s *NoteStorePg) List(ctx context.Context, ownerID int64, f NoteFilter) ([]*Note, error) {
	conds := []string{"owner_id = $1"}
	args := []any{ownerID}
	add := func(cond string, vals ...any) {
		for _, v := range vals {
			args = append(args, v)
			cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		conds = append(conds, cond)
	}
	if f.SearchText != "" {
		add(`content ILIKE '%' || ? || '%'`, f.SearchText)
	}
	if f.Type != nil {
		add(`type = ?`, *f.Type)
	}
	if f.IsArchived != nil {
		add(`is_archived = ?`, *f.IsArchived)
	}
	if f.IsRecycle != nil {
		add(`is_recycle = ?`, *f.IsRecycle)
	} else {
		// 默认不返回回收站内容
		conds = append(conds, `is_recycle = false`)
	}
	if f.WithoutTag > 0 {
		add(`NOT EXISTS (SELECT 1 FROM tags_to_notes tn WHERE tn.note_id = notes.id AND tn.tag_id = ?)`, f.WithoutTag)
	}
	if f.WithFile {
		conds = append(conds, `EXISTS (SELECT 1 FROM attachments a WHERE a.note_id = notes.id)`)
	}
	if f.WithLink {
		conds = append(conds, `content ~ 'https?://'`)
	}
	if f.HasTodo {
		conds = append(conds, `(content LIKE '%- [ ]%' OR content LIKE '%* [ ]%')`)
	}
	if f.StartDate != nil {
		add(`created_at >= ?`, *f.StartDate)
	}
	if f.EndDate != nil {
		add(`created_at <= ?`, *f.EndDate)
	}

	order := `is_top DESC, created_at DESC`
	switch f.OrderBy {
	case "", "createdAt desc":
	case "createdAt asc":
		order = `is_top DESC, created_at ASC`
	case "updatedAt desc":
		order = `is_top DESC, updated_at DESC`
	case "updatedAt asc":
		order = `is_top DESC, updated_at ASC`
	default:
		return nil, fmt.Errorf("unsupported orderBy %q", f.OrderBy)
	}

	size := f.Size
	if size <= 0 {
		size = 30
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, size)
	limit := fmt.Sprintf("$%d", len(args))
	args = append(args, (page-1)*size)
	offset := fmt.Sprintf("$%d", len(args))

	q := `SELECT ` + noteColumns + ` FROM notes WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY ` + order + ` LIMIT ` + limit + ` OFFSET ` + offset
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// TrashMany 把 ownerID 名下的若干笔记移入回收站
func (s *NoteStorePg) TrashMany(ctx context.Context, ownerID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE notes SET is_recycle = true, updated_at = now()
		 WHERE owner_id = $1 AND id = ANY($2)`,
		ownerID, ids)
	return err
}

// ArchiveOlderThan 把 cutoff 之前创建、未归档未回收的普通笔记批量归档，返回归档条数
func (s *NoteStorePg) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notes SET is_archived = true, updated_at = now()
		 WHERE created_at < $1 AND is_archived = false AND is_recycle = false AND is_top = false`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListForIndex 返回待重建索引的笔记：未回收，按 id 升序，excludeIDs 里的跳过
func (s *NoteStorePg) ListForIndex(ctx context.Context, excludeIDs []int64) ([]*Note, error) {
	q := `SELECT ` + noteColumns + ` FROM notes WHERE is_recycle = false`
	args := []any{}
	if len(excludeIDs) > 0 {
		q += ` AND NOT (id = ANY($1))`
		args = append(args, excludeIDs)
	}
	q += ` ORDER BY id ASC`
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SetMetadataFlag 在 metadata 上置布尔标记，其余键保持不变
func (s *NoteStorePg) SetMetadataFlag(ctx context.Context, id int64, key string, value bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notes SET metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), ARRAY[$1], to_jsonb($2::boolean), true)
		 WHERE id = $3`,
		key, value, id)
	return err
}

// Delete 物理删除笔记及其标签关联
func (s *NoteStorePg) Delete(ctx context.Context, ownerID, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM tags_to_notes WHERE note_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND owner_id = $2`, id, ownerID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
