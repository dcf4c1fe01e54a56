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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScheduledTaskStore 用户定时 AI 任务存储
type ScheduledTaskStore interface {
	Create(ctx context.Context, t *ScheduledTask) (int64, error)
	Get(ctx context.Context, id int64) (*ScheduledTask, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*ScheduledTask, error)
	ListEnabled(ctx context.Context) ([]*ScheduledTask, error)
	SetEnabled(ctx context.Context, ownerID, id int64, enabled bool) error
	RecordRun(ctx context.Context, id int64, ranAt time.Time, result *TaskResult) error
	Delete(ctx context.Context, ownerID, id int64) error
}

// ScheduledTaskStorePg Postgres 实现的 ScheduledTaskStore
type ScheduledTaskStorePg struct {
	pool *pgxpool.Pool
}

func NewScheduledTaskStorePg(pool *pgxpool.Pool) *ScheduledTaskStorePg {
	return &ScheduledTaskStorePg{pool: pool}
}

const taskColumns = `id, owner_id, name, prompt, cron, enabled, last_run,
	 COALESCE(last_result, 'null'::jsonb), created_at, updated_at`

func scanTask(row pgx.Row) (*ScheduledTask, error) {
	var t ScheduledTask
	var lastRun *time.Time
	var result []byte
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Prompt, &t.Cron, &t.Enabled,
		&lastRun, &result, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.LastRun = lastRun
	if len(result) > 0 && string(result) != "null" {
		var r TaskResult
		if json.Unmarshal(result, &r) == nil {
			t.LastResult = &r
		}
	}
	return &t, nil
}

func (s *ScheduledTaskStorePg) Create(ctx context.Context, t *ScheduledTask) (int64, error) {
	if t == nil {
		return 0, errors.New("nil task")
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ai_scheduled_tasks (owner_id, name, prompt, cron, enabled)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		t.OwnerID, t.Name, t.Prompt, t.Cron, t.Enabled).Scan(&t.ID)
	return t.ID, err
}

func (s *ScheduledTaskStorePg) Get(ctx context.Context, id int64) (*ScheduledTask, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM ai_scheduled_tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (s *ScheduledTaskStorePg) ListByOwner(ctx context.Context, ownerID int64) ([]*ScheduledTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM ai_scheduled_tasks WHERE owner_id = $1 ORDER BY id ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *ScheduledTaskStorePg) ListEnabled(ctx context.Context) ([]*ScheduledTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM ai_scheduled_tasks WHERE enabled = true ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *ScheduledTaskStorePg) SetEnabled(ctx context.Context, ownerID, id int64, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ai_scheduled_tasks SET enabled = $1, updated_at = now()
		 WHERE id = $2 AND owner_id = $3`,
		enabled, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *ScheduledTaskStorePg) RecordRun(ctx context.Context, id int64, ranAt time.Time, result *TaskResult) error {
	raw, _ := json.Marshal(result)
	_, err := s.pool.Exec(ctx,
		`UPDATE ai_scheduled_tasks SET last_run = $1, last_result = $2, updated_at = now()
		 WHERE id = $3`,
		ranAt, raw, id)
	return err
}

func (s *ScheduledTaskStorePg) Delete(ctx context.Context, ownerID, id int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM ai_scheduled_tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return err
}
