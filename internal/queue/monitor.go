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
	"time"

	"note-platform/pkg/errors"
	"note-platform/pkg/metrics"
)

// monitorLoop 周期执行 lease 回收、归档清理与状态上报
func (m *Manager) monitorLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := m.reclaimExpired(ctx); err != nil {
				m.log.Warn("reclaim expired leases failed", "error", err)
			} else if n > 0 {
				m.log.Info("reclaimed expired leases", "count", n)
			}
			if err := m.archiveSweep(ctx); err != nil {
				m.log.Warn("archive sweep failed", "error", err)
			}
			if err := m.publishStateCounts(ctx); err != nil {
				m.log.Warn("publish state counts failed", "error", err)
			}
		}
	}
}

// reclaimExpired 可见性超时：active 超过 VisibilityTimeout 的任务放回 created
func (m *Manager) reclaimExpired(ctx context.Context) (int, error) {
	cmd, err := m.pool.Exec(ctx,
		`UPDATE queue_jobs SET state = $1, started_at = NULL
		 WHERE state = $2 AND started_at < now() - make_interval(secs => $3)`,
		int(StateCreated), int(StateActive), m.cfg.VisibilityTimeout.Seconds())
	if err != nil {
		return 0, errors.WithKind(errors.ErrQueue, err)
	}
	return int(cmd.RowsAffected()), nil
}

// archiveSweep 终结任务到期移入 queue_archive，归档行到期硬删除
func (m *Manager) archiveSweep(ctx context.Context) error {
	_, err := m.pool.Exec(ctx,
		`WITH moved AS (
			DELETE FROM queue_jobs
			WHERE state >= $1 AND keep_until IS NOT NULL AND keep_until <= now()
			RETURNING id, queue, state, payload, retry_count, retry_limit, retry_delay, retry_backoff, singleton_key, start_after, started_at, completed_at, output, created_at
		 )
		 INSERT INTO queue_archive (id, queue, state, payload, retry_count, retry_limit, retry_delay, retry_backoff, singleton_key, start_after, started_at, completed_at, output, created_at)
		 SELECT id, queue, state, payload, retry_count, retry_limit, retry_delay, retry_backoff, singleton_key, start_after, started_at, completed_at, output, created_at FROM moved
		 ON CONFLICT (id) DO NOTHING`,
		int(StateCompleted))
	if err != nil {
		return errors.WithKind(errors.ErrQueue, err)
	}
	_, err = m.pool.Exec(ctx,
		`DELETE FROM queue_archive WHERE archived_at <= now() - make_interval(secs => $1)`,
		m.cfg.DeleteAfter.Seconds())
	if err != nil {
		return errors.WithKind(errors.ErrQueue, err)
	}
	return nil
}

// publishStateCounts 各队列各状态任务数刷新为 gauge；缺失组合清零
func (m *Manager) publishStateCounts(ctx context.Context) error {
	rows, err := m.pool.Query(ctx,
		`SELECT queue, state, count(*) FROM queue_jobs GROUP BY queue, state`)
	if err != nil {
		return errors.WithKind(errors.ErrQueue, err)
	}
	defer rows.Close()
	counts := make(map[string]map[JobState]int64)
	for rows.Next() {
		var queue string
		var state int
		var n int64
		if err := rows.Scan(&queue, &state, &n); err != nil {
			return errors.WithKind(errors.ErrQueue, err)
		}
		if counts[queue] == nil {
			counts[queue] = make(map[JobState]int64)
		}
		counts[queue][JobState(state)] = n
	}
	if err := rows.Err(); err != nil {
		return errors.WithKind(errors.ErrQueue, err)
	}

	m.mu.Lock()
	known := make([]string, 0, len(m.queues))
	for q := range m.queues {
		known = append(known, q)
	}
	m.mu.Unlock()
	for _, q := range known {
		if counts[q] == nil {
			counts[q] = make(map[JobState]int64)
		}
	}
	allStates := []JobState{StateCreated, StateRetry, StateActive, StateCompleted, StateCancelled, StateFailed}
	for q, byState := range counts {
		for _, s := range allStates {
			metrics.QueueJobStates.WithLabelValues(q, s.String()).Set(float64(byState[s]))
		}
	}
	return nil
}
