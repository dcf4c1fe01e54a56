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

package agent

import (
	"context"
	"strings"
	"time"

	"note-platform/internal/storage/db"
	"note-platform/pkg/auth"
)

// RunTask 执行一条用户定时任务：以任务 owner 的身份跑一轮带工具的
// 对话，回答即结果。签名与 supervisor.RunTaskFunc 对齐，worker 启动
// 时注入。失败结果也要记录，由队列层决定重试。
func (s *Service) RunTask(ctx context.Context, task *db.ScheduledTask) (*db.TaskResult, error) {
	started := time.Now()
	result := &db.TaskResult{ExecutedAt: started}

	if task == nil || strings.TrimSpace(task.Prompt) == "" {
		result.Skipped = true
		return result, nil
	}

	// 队列 worker 没有请求主体，任务以 owner 身份执行
	ctx = auth.WithPrincipal(ctx, auth.Principal{AccountID: task.OwnerID})

	events, err := s.Completions(ctx, CompletionsRequest{
		Question:  task.Prompt,
		WithTools: true,
	})
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	var answer strings.Builder
	for ev := range events {
		switch ev.Kind {
		case EventChunk:
			answer.WriteString(ev.Chunk)
		case EventError:
			result.Error = ev.Err.Error()
			return result, ev.Err
		}
	}

	result.Success = true
	result.Result = answer.String()
	s.log.Info("scheduled task ran", "task", task.ID, "owner", task.OwnerID,
		"took", time.Since(started))
	return result, nil
}
