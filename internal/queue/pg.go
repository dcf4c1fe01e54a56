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

package queue

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// pgUniqueViolation 唯一约束冲突码，用于 singleton 去重
const pgUniqueViolation = "23505"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS queue_jobs (
		id            uuid PRIMARY KEY,
		queue         text NOT NULL,
		state         int  NOT NULL DEFAULT 0,
		payload       jsonb NOT NULL DEFAULT '{}'::jsonb,
		retry_count   int  NOT NULL DEFAULT 0,
		retry_limit   int  NOT NULL DEFAULT 3,
		retry_delay   int  NOT NULL DEFAULT 60,
		retry_backoff boolean NOT NULL DEFAULT true,
		singleton_key text,
		start_after   timestamptz NOT NULL DEFAULT now(),
		started_at    timestamptz,
		completed_at  timestamptz,
		keep_until    timestamptz,
		output        jsonb,
		created_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_jobs_claim
		ON queue_jobs (queue, state, start_after) WHERE state < 2`,
	// state < 3：同键未终结任务至多一条，终结后允许重投
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_jobs_singleton
		ON queue_jobs (queue, singleton_key) WHERE singleton_key IS NOT NULL AND state < 3`,
	`CREATE TABLE IF NOT EXISTS queue_schedules (
		name        text PRIMARY KEY,
		cron        text NOT NULL,
		timezone    text NOT NULL DEFAULT 'UTC',
		payload     jsonb NOT NULL DEFAULT '{}'::jsonb,
		next_run_at timestamptz NOT NULL,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS queue_archive (
		id            uuid PRIMARY KEY,
		queue         text NOT NULL,
		state         int  NOT NULL,
		payload       jsonb,
		retry_count   int,
		retry_limit   int,
		retry_delay   int,
		retry_backoff boolean,
		singleton_key text,
		start_after   timestamptz,
		started_at    timestamptz,
		completed_at  timestamptz,
		output        jsonb,
		created_at    timestamptz,
		archived_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_archive_archived_at ON queue_archive (archived_at)`,
}

// Manager Postgres 队列实现：认领用 FOR UPDATE SKIP LOCKED，
// lease 依赖 monitor 的可见性超时回收（at-least-once）
type Manager struct {
	pool *pgxpool.Pool
	cfg  Config
	log  *log.Logger

	mu      sync.Mutex
	workers map[string]*worker
	queues  map[string]struct{}
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewManager 创建队列管理器；pool 与关系库共享同一连接池
func NewManager(pool *pgxpool.Pool, cfg Config, logger *log.Logger) *Manager {
	cfg.normalize()
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		pool:    pool,
		cfg:     cfg,
		log:     logger.Named("queue"),
		workers: make(map[string]*worker),
		queues:  make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// EnsureSchema 创建队列表；幂等，进程启动时执行
func (m *Manager) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return errors.WithKind(errors.ErrQueue, err)
		}
	}
	return nil
}

// CreateQueue 登记队列名；幂等。队列表按行内 queue 字段区分，无独立建表
func (m *Manager) CreateQueue(_ context.Context, name string) error {
	if name == "" {
		return errors.Validationf("queue name is empty")
	}
	m.mu.Lock()
	m.queues[name] = struct{}{}
	m.mu.Unlock()
	return nil
}

// Send 入队一条任务；SingletonKey 冲突时返回空 jobID 且不报错
func (m *Manager) Send(ctx context.Context, queue string, payload any, opts SendOptions) (string, error) {
	if queue == "" {
		return "", errors.Validationf("queue name is empty")
	}
	data, err := MarshalPayload(payload)
	if err != nil {
		return "", err
	}
	retryLimit := opts.RetryLimit
	if retryLimit <= 0 {
		retryLimit = m.cfg.RetryLimit
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = m.cfg.RetryDelay
	}
	// 未显式定制重试参数时沿用队列默认 backoff
	retryBackoff := opts.RetryBackoff ||
		(opts.RetryLimit <= 0 && opts.RetryDelay <= 0 && m.cfg.RetryBackoff)
	startAfter := opts.StartAfter
	if startAfter.IsZero() {
		startAfter = time.Now()
	}
	id := uuid.New().String()
	_, err = m.pool.Exec(ctx,
		`INSERT INTO queue_jobs (id, queue, state, payload, retry_limit, retry_delay, retry_backoff, singleton_key, start_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, queue, int(StateCreated), data, retryLimit, int(retryDelay.Seconds()), retryBackoff, nullStr(opts.SingletonKey), startAfter)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// 同键未终结任务已存在，本次投递折叠
			return "", nil
		}
		return "", errors.WithKind(errors.ErrQueue, err)
	}
	return id, nil
}

// claimJobs 认领至多 limit 条可运行任务并置为 active
func (m *Manager) claimJobs(ctx context.Context, queue string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := m.pool.Query(ctx,
		`UPDATE queue_jobs SET state = $1, started_at = now()
		 WHERE id IN (
			SELECT id FROM queue_jobs
			WHERE queue = $2 AND state < $3 AND start_after <= now()
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, queue, state, payload, retry_count, retry_limit, retry_delay, retry_backoff, singleton_key, start_after, started_at, created_at`,
		int(StateActive), queue, int(StateActive), limit)
	if err != nil {
		return nil, errors.WithKind(errors.ErrQueue, err)
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		j, err := scanClaimedJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanClaimedJob(rows pgx.Rows) (*Job, error) {
	var j Job
	var state, retryDelay int
	var singletonKey *string
	var startedAt *time.Time
	if err := rows.Scan(&j.ID, &j.Queue, &state, &j.Payload, &j.RetryCount, &j.RetryLimit, &retryDelay, &j.RetryBackoff, &singletonKey, &j.StartAfter, &startedAt, &j.CreatedAt); err != nil {
		return nil, errors.WithKind(errors.ErrQueue, err)
	}
	j.State = JobState(state)
	j.RetryDelay = time.Duration(retryDelay) * time.Second
	if singletonKey != nil {
		j.SingletonKey = *singletonKey
	}
	if startedAt != nil {
		j.StartedAt = *startedAt
	}
	return &j, nil
}

// completeJob active → completed，记录 output 与归档期限
func (m *Manager) completeJob(ctx context.Context, id string, output any) error {
	out, err := MarshalPayload(output)
	if err != nil {
		return err
	}
	_, err = m.pool.Exec(ctx,
		`UPDATE queue_jobs SET state = $1, completed_at = now(), keep_until = now() + make_interval(secs => $2), output = $3
		 WHERE id = $4 AND state = $5`,
		int(StateCompleted), m.cfg.ArchiveAfter.Seconds(), out, id, int(StateActive))
	if err != nil {
		return errors.WithKind(errors.ErrQueue, err)
	}
	return nil
}

// failJob 重试状态机：次数未耗尽置 retry 并按 backoff 推迟 start_after，否则 failed
func (m *Manager) failJob(ctx context.Context, id string, cause error) (JobState, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	out, _ := MarshalPayload(map[string]string{"error": msg})
	var state int
	err := m.pool.QueryRow(ctx,
		`UPDATE queue_jobs SET
			state = CASE WHEN retry_count < retry_limit THEN $1 ELSE $2 END,
			retry_count = retry_count + 1,
			start_after = CASE WHEN retry_count < retry_limit
				THEN now() + make_interval(secs => retry_delay * CASE WHEN retry_backoff THEN power(2, retry_count) ELSE 1 END)
				ELSE start_after END,
			started_at = CASE WHEN retry_count < retry_limit THEN NULL ELSE started_at END,
			completed_at = CASE WHEN retry_count < retry_limit THEN NULL ELSE now() END,
			keep_until = CASE WHEN retry_count < retry_limit THEN NULL ELSE now() + make_interval(secs => $3) END,
			output = $4
		 WHERE id = $5 AND state = $6
		 RETURNING state`,
		int(StateRetry), int(StateFailed), m.cfg.ArchiveAfter.Seconds(), out, id, int(StateActive)).Scan(&state)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return StateCreated, nil // lease 已被 monitor 回收，任务会被重新投递
		}
		return StateFailed, errors.WithKind(errors.ErrQueue, err)
	}
	return JobState(state), nil
}

// Cancel 取消一条未终结任务
func (m *Manager) Cancel(ctx context.Context, id string) error {
	_, err := m.pool.Exec(ctx,
		`UPDATE queue_jobs SET state = $1, completed_at = now(), keep_until = now() + make_interval(secs => $2)
		 WHERE id = $3 AND state < $4`,
		int(StateCancelled), m.cfg.ArchiveAfter.Seconds(), id, int(StateCompleted))
	if err != nil {
		return errors.WithKind(errors.ErrQueue, err)
	}
	return nil
}

// GetJob 查询任务（含归档前的终结任务）
func (m *Manager) GetJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	var state, retryDelay int
	var singletonKey *string
	var startedAt, completedAt *time.Time
	err := m.pool.QueryRow(ctx,
		`SELECT id, queue, state, payload, retry_count, retry_limit, retry_delay, retry_backoff, singleton_key, start_after, started_at, completed_at, output, created_at
		 FROM queue_jobs WHERE id = $1`, id).
		Scan(&j.ID, &j.Queue, &state, &j.Payload, &j.RetryCount, &j.RetryLimit, &retryDelay, &j.RetryBackoff, &singletonKey, &j.StartAfter, &startedAt, &completedAt, &j.Output, &j.CreatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithKind(errors.ErrNotFound, err)
		}
		return nil, errors.WithKind(errors.ErrQueue, err)
	}
	j.State = JobState(state)
	j.RetryDelay = time.Duration(retryDelay) * time.Second
	if singletonKey != nil {
		j.SingletonKey = *singletonKey
	}
	if startedAt != nil {
		j.StartedAt = *startedAt
	}
	if completedAt != nil {
		j.CompletedAt = *completedAt
	}
	return &j, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
