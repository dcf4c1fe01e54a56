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

// Package app 统一初始化：api 与 worker 共用同一套存储、队列与引擎
// 装配，避免在 cmd 里写业务。两个进程连同一个库，队列表即共享总线。
package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"note-platform/internal/agent"
	"note-platform/internal/aitask"
	"note-platform/internal/embedding"
	"note-platform/internal/extract"
	"note-platform/internal/model"
	"note-platform/internal/model/llm"
	"note-platform/internal/notification"
	"note-platform/internal/queue"
	"note-platform/internal/storage/cache"
	"note-platform/internal/storage/db"
	"note-platform/internal/storage/object"
	"note-platform/internal/supervisor"
	"note-platform/pkg/config"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
	"note-platform/pkg/secrets"
)

// Bootstrap 进程级装配结果
type Bootstrap struct {
	Config *config.Config
	Logger *log.Logger
	Pool   *pgxpool.Pool
	Queue  queue.Client

	Notes         db.NoteStore
	Attachments   db.AttachmentStore
	Tags          db.TagStore
	Comments      db.CommentStore
	Conversations db.ConversationStore
	Tasks         db.ScheduledTaskStore
	Follows       db.FollowStore
	Providers     db.ProviderStore

	Cache    cache.Store
	Blobs    object.BlobStore
	Guard    *object.PathGuard
	Secrets  secrets.Store
	Models   *model.Registry
	Notifier *notification.Service
	Index    *embedding.Service
	Registry *supervisor.Registry
	AITasks  *aitask.Service
	Agent    *agent.Service
}

// New 按配置装配全部组件。装配顺序受 registry/aitask/agent 三者的
// 依赖环约束：registry 的 RunTask 以闭包晚绑定到 agent。
func New(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, errors.ConfigMissingf("nil config")
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}

	if cfg.Database.URL == "" {
		return nil, errors.ConfigMissingf("database.url is required")
	}
	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}

	b := &Bootstrap{
		Config: cfg,
		Logger: logger,
		Pool:   pool,

		Notes:         db.NewNoteStorePg(pool),
		Attachments:   db.NewAttachmentStorePg(pool),
		Tags:          db.NewTagStorePg(pool),
		Comments:      db.NewCommentStorePg(pool),
		Conversations: db.NewConversationStorePg(pool),
		Tasks:         db.NewScheduledTaskStorePg(pool),
		Follows:       db.NewFollowStorePg(pool),
		Providers:     db.NewProviderStorePg(pool),
		Cache:         cache.NewPgStore(pool),
	}
	b.Queue = queue.NewManager(pool, QueueConfig(cfg.Queue), logger)

	b.Blobs, b.Guard, err = object.NewStore(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "init object storage")
	}

	b.Secrets, err = secrets.NewStore(secrets.Config{
		Backend:    cfg.Secrets.Backend,
		VaultAddr:  cfg.Secrets.Vault.Addr,
		VaultToken: cfg.Secrets.Vault.Token,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init secrets store")
	}

	b.Models = model.NewRegistry(b.Providers, b.Secrets, llm.NewLLMRateLimiter(nil, nil), logger)
	b.Notifier = notification.NewService(db.NewNotificationStorePg(pool), logger)

	b.Index, err = embedding.New(ctx, embedding.Deps{
		Notes:       b.Notes,
		Attachments: b.Attachments,
		Tags:        b.Tags,
		Models:      b.Models,
		Blobs:       b.Blobs,
		Extract:     extract.NewService(logger),
		Cache:       b.Cache,
		Notifier:    b.Notifier,
		Config:      cfg,
		Log:         logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init embedding engine")
	}

	// RunTask 晚绑定：registry 构建时 agent 尚未就绪
	runTask := func(ctx context.Context, t *db.ScheduledTask) (*db.TaskResult, error) {
		if b.Agent == nil {
			return nil, errors.ConfigMissingf("agent runtime not ready")
		}
		return b.Agent.RunTask(ctx, t)
	}
	b.Registry = supervisor.NewRegistry(supervisor.Deps{
		Queue:            b.Queue,
		Pool:             pool,
		Notes:            b.Notes,
		Follows:          b.Follows,
		Tasks:            b.Tasks,
		Cache:            b.Cache,
		Rebuild:          b.Index,
		RunTask:          runTask,
		AutoArchivedDays: cfg.Tasks.AutoArchivedDays,
		BackupDir:        filepath.Join(cfg.Storage.LocalBasePath, cfg.Storage.BackupDir),
		EnableRestore:    cfg.Tasks.EnableRestore,
		Logger:           logger,
	})
	b.AITasks = aitask.NewService(b.Tasks, b.Queue, b.Registry.AITask(), logger)

	b.Agent, err = agent.New(agent.Deps{
		Notes:         b.Notes,
		Comments:      b.Comments,
		Tags:          b.Tags,
		Conversations: b.Conversations,
		Query:         b.Index,
		Index:         b.Index,
		Tasks:         b.AITasks,
		Models:        b.Models,
		Notifier:      b.Notifier,
		Config:        cfg,
		Log:           logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init agent runtime")
	}
	return b, nil
}

// Close 释放连接池；队列与排程的停机由调用方先行
func (b *Bootstrap) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// QueueConfig 把配置段映射为队列运行参数；非法时长回落默认值
func QueueConfig(qc config.QueueConfig) queue.Config {
	out := queue.DefaultConfig()
	if d, err := time.ParseDuration(qc.VisibilityTimeout); err == nil && d > 0 {
		out.VisibilityTimeout = d
	}
	if qc.ArchiveCompletedAfterSeconds > 0 {
		out.ArchiveAfter = time.Duration(qc.ArchiveCompletedAfterSeconds) * time.Second
	}
	if qc.DeleteAfterSeconds > 0 {
		out.DeleteAfter = time.Duration(qc.DeleteAfterSeconds) * time.Second
	}
	if qc.MonitorStateIntervalSeconds > 0 {
		out.MonitorInterval = time.Duration(qc.MonitorStateIntervalSeconds) * time.Second
	}
	if qc.Retry.Limit > 0 {
		out.RetryLimit = qc.Retry.Limit
	}
	if d, err := time.ParseDuration(qc.Retry.Delay); err == nil && d > 0 {
		out.RetryDelay = d
	}
	out.RetryBackoff = qc.Retry.Backoff
	return out
}
