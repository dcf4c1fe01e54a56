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

// Package worker Worker 进程：注册全部任务类 worker 并跑队列轮询。
// 与 API 进程共享数据库，队列表即进程间总线。
package worker

import (
	"context"

	"note-platform/internal/app"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// App Worker 进程应用
type App struct {
	boot *app.Bootstrap
	log  *log.Logger
}

// NewApp 在 Bootstrap 之上装配 worker
func NewApp(boot *app.Bootstrap) *App {
	return &App{boot: boot, log: boot.Logger.Named("worker")}
}

// Start 开机编排：先注册任务类 worker，再启动队列轮询/monitor。
// StartAll 在 Start 之前执行，保证首轮认领前 handler 已就位。
func (a *App) Start(ctx context.Context) error {
	if err := a.boot.Registry.StartAll(ctx); err != nil {
		return errors.Wrap(err, "start task registry")
	}
	if err := a.boot.Queue.Start(ctx); err != nil {
		return errors.Wrap(err, "start queue")
	}
	a.log.Info("worker started")
	return nil
}

// Shutdown 逆序停机：先停队列轮询，再注销 worker，最后放连接池
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := a.boot.Queue.Stop(ctx); err != nil {
		firstErr = errors.Wrap(err, "stop queue")
	}
	if err := a.boot.Registry.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "shutdown task registry")
	}
	a.boot.Close()
	a.log.Info("worker stopped")
	return firstErr
}
