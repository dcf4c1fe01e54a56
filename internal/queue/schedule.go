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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/robfig/cron/v3"

	"note-platform/pkg/errors"
	"note-platform/pkg/metrics"
)

// parseCron 解析 5 段 cron 表达式并定位时区
func parseCron(spec, tz string) (cron.Schedule, *time.Location, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, nil, errors.Validationf("invalid cron %q: %v", spec, err)
	}
	loc := time.UTC
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, nil, errors.Validationf("invalid timezone %q: %v", tz, err)
		}
	}
	return sched, loc, nil
}

// Schedule 创建或替换一条定时计划；同名替换 cron/payload/时区并重算下次触发
func (m *Manager) Schedule(ctx context.Context, name, spec string, payload any, opts ScheduleOptions) error {
	if name == "" {
		return errors.Validationf("schedule name is empty")
	}
	sched, loc, err := parseCron(spec, opts.TZ)
	if err != nil {
		return err
	}
	data, err := MarshalPayload(payload)
	if err != nil {
		return err
	}
	tz := opts.TZ
	if tz == "" {
		tz = "UTC"
	}
	next := sched.Next(time.Now().In(loc))
	_, err = m.pool.Exec(ctx,
		`INSERT INTO queue_schedules (name, cron, timezone, payload, next_run_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET
			cron = EXCLUDED.cron,
			timezone = EXCLUDED.timezone,
			payload = EXCLUDED.payload,
			next_run_at = EXCLUDED.next_run_at,
			updated_at = now()`,
		name, spec, tz, data, next)
	if err != nil {
		return errors.WithKind(errors.ErrQueue, err)
	}
	return nil
}

// Unschedule 删除定时计划；不存在时静默
func (m *Manager) Unschedule(ctx context.Context, name string) error {
	_, err := m.pool.Exec(ctx, `DELETE FROM queue_schedules WHERE name = $1`, name)
	if err != nil {
		return errors.WithKind(errors.ErrQueue, err)
	}
	return nil
}

// GetSchedules 列出全部定时计划
func (m *Manager) GetSchedules(ctx context.Context) ([]*Schedule, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT name, cron, timezone, payload, next_run_at, created_at, updated_at
		 FROM queue_schedules ORDER BY name`)
	if err != nil {
		return nil, errors.WithKind(errors.ErrQueue, err)
	}
	defer rows.Close()
	var list []*Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.Name, &s.Cron, &s.TZ, &s.Payload, &s.NextRunAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, errors.WithKind(errors.ErrQueue, err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// GetSchedule 按名查询定时计划
func (m *Manager) GetSchedule(ctx context.Context, name string) (*Schedule, error) {
	var s Schedule
	err := m.pool.QueryRow(ctx,
		`SELECT name, cron, timezone, payload, next_run_at, created_at, updated_at
		 FROM queue_schedules WHERE name = $1`, name).
		Scan(&s.Name, &s.Cron, &s.TZ, &s.Payload, &s.NextRunAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithKind(errors.ErrNotFound, err)
		}
		return nil, errors.WithKind(errors.ErrQueue, err)
	}
	return &s, nil
}

// scheduleLoop 周期触发到期计划，直到 Stop
func (m *Manager) scheduleLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.ScheduleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			fired, err := m.claimAndFire(ctx)
			if err != nil {
				m.log.Warn("schedule fire failed", "error", err)
			} else if fired > 0 {
				m.log.Debug("schedules fired", "count", fired)
			}
		}
	}
}

// claimAndFire 单事务触发到期计划：SKIP LOCKED 认领、投递一条带
// singleton key 的任务、从当前时间推进 next_run_at。停机期间积压的
// 多次触发折叠为一次（next 从 now 计算而非逐格追赶）。
func (m *Manager) claimAndFire(ctx context.Context) (int, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, errors.WithKind(errors.ErrQueue, err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT name, cron, timezone, payload, next_run_at
		 FROM queue_schedules
		 WHERE next_run_at <= now()
		 ORDER BY next_run_at ASC
		 LIMIT 50
		 FOR UPDATE SKIP LOCKED`)
	if err != nil {
		return 0, errors.WithKind(errors.ErrQueue, err)
	}
	type due struct {
		name, spec, tz string
		payload        []byte
		nextRunAt      time.Time
	}
	var dues []due
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.name, &d.spec, &d.tz, &d.payload, &d.nextRunAt); err != nil {
			rows.Close()
			return 0, errors.WithKind(errors.ErrQueue, err)
		}
		dues = append(dues, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errors.WithKind(errors.ErrQueue, err)
	}

	fired := 0
	now := time.Now()
	for _, d := range dues {
		sched, loc, err := parseCron(d.spec, d.tz)
		if err != nil {
			// 表达式损坏的计划推迟一小时，避免每轮空转
			m.log.Error("schedule has invalid cron", "name", d.name, "cron", d.spec, "error", err)
			if _, err := tx.Exec(ctx,
				`UPDATE queue_schedules SET next_run_at = now() + interval '1 hour', updated_at = now() WHERE name = $1`,
				d.name); err != nil {
				return fired, errors.WithKind(errors.ErrQueue, err)
			}
			continue
		}
		key := fmt.Sprintf("sched:%s:%d", d.name, d.nextRunAt.Unix())
		_, err = tx.Exec(ctx,
			`INSERT INTO queue_jobs (id, queue, state, payload, retry_limit, retry_delay, retry_backoff, singleton_key)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), d.name, int(StateCreated), d.payload,
			m.cfg.RetryLimit, int(m.cfg.RetryDelay.Seconds()), m.cfg.RetryBackoff, key)
		if err != nil {
			var pgErr *pgconn.PgError
			if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				// 另一进程已触发同一次，仅推进 next_run_at
			} else {
				return fired, errors.WithKind(errors.ErrQueue, err)
			}
		} else {
			fired++
			metrics.ScheduleFireTotal.WithLabelValues(d.name).Inc()
		}
		next := sched.Next(now.In(loc))
		if _, err := tx.Exec(ctx,
			`UPDATE queue_schedules SET next_run_at = $1, updated_at = now() WHERE name = $2`,
			next, d.name); err != nil {
			return fired, errors.WithKind(errors.ErrQueue, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fired, errors.WithKind(errors.ErrQueue, err)
	}
	return fired, nil
}
