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

package supervisor

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"note-platform/internal/queue"
	"note-platform/internal/storage/cache"
	"note-platform/internal/storage/db"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// Deps Registry 的装配依赖
type Deps struct {
	Queue   queue.Client
	Pool    *pgxpool.Pool
	Notes   db.NoteStore
	Follows db.FollowStore
	Tasks   db.ScheduledTaskStore
	Cache   cache.Store
	Rebuild Rebuilder
	RunTask RunTaskFunc

	AutoArchivedDays int
	BackupDir        string
	EnableRestore    bool
	Logger           *log.Logger
}

// Registry 持有全部任务类的监督器并负责开机编排
type Registry struct {
	supervisors map[string]*Supervisor
	aiJob       *AIScheduledTaskJob
	follows     db.FollowStore
	log         *log.Logger
}

// NewRegistry 构建五个内建任务类；此时全部 uninitialized
func NewRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	r := &Registry{
		supervisors: make(map[string]*Supervisor),
		follows:     deps.Follows,
		log:         logger.Named("registry"),
	}

	archive := NewArchiveJob(deps.Notes, deps.AutoArchivedDays, logger)
	r.supervisors[archive.Name()] = New(archive, deps.Queue, logger)

	dbjob := NewDBJob(deps.Pool, deps.Cache, deps.BackupDir, deps.EnableRestore, logger)
	r.supervisors[dbjob.Name()] = New(dbjob, deps.Queue, logger)

	if deps.Rebuild != nil {
		rebuild := NewRebuildEmbeddingJob(deps.Rebuild, logger)
		r.supervisors[rebuild.Name()] = New(rebuild, deps.Queue, logger)
	}

	recommend := NewRecommendJob(deps.Follows, deps.Cache, logger)
	r.supervisors[recommend.Name()] = New(recommend, deps.Queue, logger)

	r.aiJob = NewAIScheduledTaskJob(deps.Tasks, deps.Queue, deps.RunTask, logger)
	r.supervisors[r.aiJob.Name()] = New(r.aiJob, deps.Queue, logger)

	return r
}

// StartAll 开机编排：archive/dbbak/recommend 按默认 cron 排程；
// rebuild 与 ai-scheduled-task 只注册 worker（rebuild 由用户触发，
// 用户任务走各自的专属计划）。recommend 仅在存在关注记录时初始化。
func (r *Registry) StartAll(ctx context.Context) error {
	for name, s := range r.supervisors {
		if name == TaskRecommend {
			n, err := r.follows.Count(ctx)
			if err != nil {
				return errors.Wrap(err, "count follows")
			}
			if n == 0 {
				r.log.Info("no follows, recommend job stays uninitialized")
				continue
			}
		}
		if err := s.Initialize(ctx, ""); err != nil {
			return errors.Wrapf(err, "initialize %s", name)
		}
	}
	for _, name := range []string{TaskArchive, TaskDBBackup, TaskRecommend} {
		s, ok := r.supervisors[name]
		if !ok || s.CurrentState() == StateUninitialized {
			continue
		}
		if err := s.Start(ctx, "", false); err != nil {
			return errors.Wrapf(err, "schedule %s", name)
		}
	}
	if err := r.aiJob.Bootstrap(ctx); err != nil {
		return errors.Wrap(err, "bootstrap scheduled tasks")
	}
	return nil
}

// Get 按任务名取监督器；不存在返回 nil
func (r *Registry) Get(name string) *Supervisor {
	return r.supervisors[name]
}

// TaskStatus 一个任务类的运行时状态快照
type TaskStatus struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Cron      string `json:"cron"`
	Scheduled bool   `json:"scheduled"`
}

// Snapshot 全部任务类的状态，任务管理接口用
func (r *Registry) Snapshot(ctx context.Context) []TaskStatus {
	out := make([]TaskStatus, 0, len(r.supervisors))
	for name, s := range r.supervisors {
		out = append(out, TaskStatus{
			Name:      name,
			State:     s.CurrentState().String(),
			Cron:      s.Cron(),
			Scheduled: s.IsScheduled(ctx),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AITask 扇出任务类，aitask 服务层用
func (r *Registry) AITask() *AIScheduledTaskJob {
	return r.aiJob
}

// Shutdown 注销全部 worker
func (r *Registry) Shutdown(ctx context.Context) error {
	var firstErr error
	for name, s := range r.supervisors {
		if err := s.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "shutdown %s", name)
		}
	}
	return firstErr
}
