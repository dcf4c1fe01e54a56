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
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
)

func (s *Server) listAITasks(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	rows, err := s.tasks.List(ctx, accountID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, rows)
}

type createAITaskRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
	Cron   string `json:"cron"`
}

func (s *Server) createAITask(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	var req createAITaskRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	task, err := s.tasks.Create(ctx, accountID, req.Name, req.Prompt, req.Cron)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, task)
}

// taskID :id 路径参数
func taskID(c *app.RequestContext) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid task id")
		return 0, false
	}
	return id, true
}

func (s *Server) deleteAITask(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	id, idOK := taskID(c)
	if !idOK {
		return
	}
	if err := s.tasks.Delete(ctx, accountID, id); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, nil)
}

type toggleAITaskRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) toggleAITask(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	id, idOK := taskID(c)
	if !idOK {
		return
	}
	var req toggleAITaskRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	if err := s.tasks.SetEnabled(ctx, accountID, id, req.Enabled); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) runAITask(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	id, idOK := taskID(c)
	if !idOK {
		return
	}
	jobID, err := s.tasks.RunNow(ctx, accountID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, map[string]string{"status": "queued", "jobId": jobID})
}
