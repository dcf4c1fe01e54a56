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
	"fmt"
	"time"

	"note-platform/internal/queue"
	"note-platform/internal/storage/db"
	"note-platform/pkg/log"
)

// TaskAISchedule 共享执行队列名；每个任务的专属计划队列为
// "ai-scheduled-task-<id>"
const TaskAISchedule = "ai-scheduled-task"

// PerTaskQueue 用户任务专属的计划队列名
func PerTaskQueue(taskID int64) string {
	return fmt.Sprintf("%s-%d", TaskAISchedule, taskID)
}

// RunTaskFunc 执行一条用户任务的 prompt；由 agent 运行时注入
type RunTaskFunc func(ctx context.Context, task *db.ScheduledTask) (*db.TaskResult, error)

// AIScheduledTaskJob 扇出监督器：共享执行 worker 跑任务体，每个启用
// 的任务行有专属计划队列与一个只做转投的 forwarder worker
type AIScheduledTaskJob struct {
	tasks db.ScheduledTaskStore
	q     queue.Client
	run   RunTaskFunc
	log   *log.Logger
}

func NewAIScheduledTaskJob(tasks db.ScheduledTaskStore, q queue.Client, run RunTaskFunc, logger *log.Logger) *AIScheduledTaskJob {
	if logger == nil {
		logger = log.Nop()
	}
	return &AIScheduledTaskJob{tasks: tasks, q: q, run: run, log: logger.Named("aitask")}
}

func (j *AIScheduledTaskJob) Name() string         { return TaskAISchedule }
func (j *AIScheduledTaskJob) DefaultCron() string  { return "0 * * * *" }
func (j *AIScheduledTaskJob) SchedulePayload() any { return queue.AITaskPayload{} }

// Run 共享执行 worker：重读任务行，跳过已删除/停用的任务，执行后落结果
func (j *AIScheduledTaskJob) Run(ctx context.Context, job *queue.Job) error {
	var p queue.AITaskPayload
	if err := queue.DecodePayload(job, &p); err != nil {
		return err
	}
	if p.TaskID == 0 {
		return nil
	}
	task, err := j.tasks.Get(ctx, p.TaskID)
	if err != nil {
		return err
	}
	if task == nil {
		j.log.Info("scheduled task vanished, skip", "task", p.TaskID)
		return nil
	}
	if !task.Enabled {
		now := time.Now()
		result := &db.TaskResult{Skipped: true, ExecutedAt: now}
		if rerr := j.tasks.RecordRun(ctx, task.ID, now, result); rerr != nil {
			j.log.Warn("record skipped run failed", "task", task.ID, "error", rerr)
		}
		return nil
	}

	result, runErr := j.run(ctx, task)
	if result == nil {
		result = &db.TaskResult{ExecutedAt: time.Now()}
	}
	if result.ExecutedAt.IsZero() {
		result.ExecutedAt = time.Now()
	}
	if runErr != nil {
		result.Success = false
		if result.Error == "" {
			result.Error = runErr.Error()
		}
	}
	if rerr := j.tasks.RecordRun(ctx, task.ID, result.ExecutedAt, result); rerr != nil {
		j.log.Warn("record task run failed", "task", task.ID, "error", rerr)
	}
	return runErr
}

// Bootstrap 为所有启用的任务行建立计划与 forwarder；初始化后调用
func (j *AIScheduledTaskJob) Bootstrap(ctx context.Context) error {
	tasks, err := j.tasks.ListEnabled(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := j.EnsureTask(ctx, t); err != nil {
			j.log.Error("ensure scheduled task failed", "task", t.ID, "error", err)
		}
	}
	j.log.Info("scheduled tasks bootstrapped", "count", len(tasks))
	return nil
}

// EnsureTask 建（或刷新）专属队列、计划与 forwarder worker
func (j *AIScheduledTaskJob) EnsureTask(ctx context.Context, t *db.ScheduledTask) error {
	qname := PerTaskQueue(t.ID)
	if err := j.q.CreateQueue(ctx, qname); err != nil {
		return err
	}
	// forwarder 可能已注册（toggle 场景），先注销再挂
	if err := j.q.OffWork(qname); err != nil {
		return err
	}
	if err := j.q.Work(qname, queue.WorkOptions{Concurrency: 1}, j.forward); err != nil {
		return err
	}
	payload := queue.AITaskPayload{TaskID: t.ID, OwnerID: t.OwnerID, Prompt: t.Prompt}
	return j.q.Schedule(ctx, qname, t.Cron, payload, queue.ScheduleOptions{})
}

// RemoveTask 拆掉专属计划与 forwarder；任务行本身由调用方处理
func (j *AIScheduledTaskJob) RemoveTask(ctx context.Context, taskID int64) error {
	qname := PerTaskQueue(taskID)
	if err := j.q.Unschedule(ctx, qname); err != nil {
		return err
	}
	return j.q.OffWork(qname)
}

// forward 专属队列 worker：把载荷原样转投共享执行队列
func (j *AIScheduledTaskJob) forward(ctx context.Context, job *queue.Job) error {
	var p queue.AITaskPayload
	if err := queue.DecodePayload(job, &p); err != nil {
		return err
	}
	_, err := j.q.Send(ctx, TaskAISchedule, p, queue.SendOptions{})
	return err
}
