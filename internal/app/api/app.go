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

// Package api API 进程：HTTP 面 + 入队。任务执行不在这里，
// rebuild/定时任务都只是向共享队列写行，由 worker 进程消费。
package api

import (
	"context"

	"note-platform/internal/api/http"
	"note-platform/internal/app"
)

// App API 进程应用
type App struct {
	boot   *app.Bootstrap
	server *http.Server
}

// NewApp 在 Bootstrap 之上装配 HTTP 面
func NewApp(boot *app.Bootstrap) (*App, error) {
	srv, err := http.New(http.Deps{
		Config:      boot.Config,
		Notes:       boot.Notes,
		Attachments: boot.Attachments,
		Assistant:   boot.Agent,
		Index:       boot.Index,
		Tasks:       boot.AITasks,
		Models:      boot.Models,
		Registry:    boot.Registry,
		Queue:       boot.Queue,
		Blobs:       boot.Blobs,
		Guard:       boot.Guard,
		Log:         boot.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &App{boot: boot, server: srv}, nil
}

// Run 阻塞运行 HTTP 服务
func (a *App) Run() error {
	return a.server.Run()
}

// Shutdown 先停 HTTP，再放掉连接池
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.boot.Close()
	return err
}
