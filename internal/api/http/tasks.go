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

package http

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"note-platform/internal/supervisor"
)

func (s *Server) listTasks(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	ok(c, s.registry.Snapshot(ctx))
}

type upsertTaskRequest struct {
	Task string `json:"task"` // archive | dbbak
	Type string `json:"type"` // start | stop | update
	Time string `json:"time"` // cron 表达式，start/update 可带
}

// upsertTask 内建后台任务的排程控制。只开放 archive 与 dbbak 两类；
// rebuild 由 /ai/rebuild 面控制，用户任务走 /ai-tasks。
func (s *Server) upsertTask(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	var req upsertTaskRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}

	var name string
	switch req.Task {
	case "archive":
		name = supervisor.TaskArchive
	case "dbbak":
		name = supervisor.TaskDBBackup
	default:
		badRequest(c, "task must be archive or dbbak")
		return
	}
	sup := s.registry.Get(name)
	if sup == nil {
		badRequest(c, "unknown task")
		return
	}

	var err error
	switch req.Type {
	case "start":
		if sup.CurrentState() == supervisor.StateUninitialized {
			if err = sup.Initialize(ctx, req.Time); err != nil {
				s.fail(c, err)
				return
			}
		}
		err = sup.Start(ctx, req.Time, false)
	case "stop":
		err = sup.Stop(ctx)
	case "update":
		if req.Time == "" {
			badRequest(c, "time is required for update")
			return
		}
		err = sup.SetCron(ctx, req.Time)
	default:
		badRequest(c, "type must be start, stop or update")
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, supervisor.TaskStatus{
		Name:      name,
		State:     sup.CurrentState().String(),
		Cron:      sup.Cron(),
		Scheduled: sup.IsScheduled(ctx),
	})
}
