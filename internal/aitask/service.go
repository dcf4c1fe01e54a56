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

// Package aitask 用户定时 AI 任务服务：任务行、专属计划与 forwarder
// worker 三者保持同步。任务体的执行在 supervisor 的共享队列 worker 里，
// 本包只负责行与排程的增删改，agent 的任务工具依赖的就是这一层。
package aitask

import (
	"context"
	"strings"

	"github.com/robfig/cron/v3"

	"note-platform/internal/queue"
	"note-platform/internal/storage/db"
	"note-platform/internal/supervisor"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// Fanout 专属计划/forwarder 的维护面；生产实现为 supervisor.AIScheduledTaskJob
type Fanout interface {
	EnsureTask(ctx context.Context, t *db.ScheduledTask) error
	RemoveTask(ctx context.Context, taskID int64) error
}

// Service 用户定时 AI 任务的增删改查
type Service struct {
	tasks  db.ScheduledTaskStore
	q      queue.Client
	fanout Fanout
	log    *log.Logger
}

// NewService 创建任务服务
func NewService(tasks db.ScheduledTaskStore, q queue.Client, fanout Fanout, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{tasks: tasks, q: q, fanout: fanout, log: logger.Named("aitask")}
}

// List 返回 ownerID 名下全部任务
func (s *Service) List(ctx context.Context, ownerID int64) ([]*db.ScheduledTask, error) {
	return s.tasks.ListByOwner(ctx, ownerID)
}

// Create 新建任务：校验 cron，落行，建专属计划与 forwarder
func (s *Service) Create(ctx context.Context, ownerID int64, name, prompt, cronSpec string) (*db.ScheduledTask, error) {
	name = strings.TrimSpace(name)
	prompt = strings.TrimSpace(prompt)
	if name == "" {
		return nil, errors.Validationf("task name is empty")
	}
	if prompt == "" {
		return nil, errors.Validationf("task prompt is empty")
	}
	if _, err := cron.ParseStandard(cronSpec); err != nil {
		return nil, errors.Validationf("invalid cron %q: %v", cronSpec, err)
	}

	t := &db.ScheduledTask{OwnerID: ownerID, Name: name, Prompt: prompt, Cron: cronSpec, Enabled: true}
	if _, err := s.tasks.Create(ctx, t); err != nil {
		return nil, errors.Wrap(err, "create scheduled task")
	}
	if err := s.fanout.EnsureTask(ctx, t); err != nil {
		// 行已落库，排程失败留给下次 toggle/boot 补齐
		s.log.Error("ensure task schedule failed", "task", t.ID, "error", err)
		return t, errors.Wrap(err, "schedule task")
	}
	s.log.Info("scheduled task created", "task", t.ID, "cron", cronSpec)
	return t, nil
}

// Delete 删除任务：先拆计划与 forwarder，再删行
func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	t, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.fanout.RemoveTask(ctx, t.ID); err != nil {
		return errors.Wrap(err, "remove task schedule")
	}
	if err := s.tasks.Delete(ctx, ownerID, t.ID); err != nil {
		return errors.Wrap(err, "delete scheduled task")
	}
	s.log.Info("scheduled task deleted", "task", t.ID)
	return nil
}

// DeleteByName 按任务名删除；名称在 owner 范围内解析
func (s *Service) DeleteByName(ctx context.Context, ownerID int64, name string) error {
	t, err := s.FindByName(ctx, ownerID, name)
	if err != nil {
		return err
	}
	return s.Delete(ctx, ownerID, t.ID)
}

// FindByName 在 owner 名下按名称查找任务
func (s *Service) FindByName(ctx context.Context, ownerID int64, name string) (*db.ScheduledTask, error) {
	rows, err := s.tasks.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, t := range rows {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "task %q", name)
}

// SetEnabled 启停任务；enabled=false 时保证计划行被删除
func (s *Service) SetEnabled(ctx context.Context, ownerID, id int64, enabled bool) error {
	t, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.tasks.SetEnabled(ctx, ownerID, id, enabled); err != nil {
		return errors.Wrap(err, "toggle scheduled task")
	}
	if enabled {
		t.Enabled = true
		return s.fanout.EnsureTask(ctx, t)
	}
	return s.fanout.RemoveTask(ctx, id)
}

// RunNow 绕过计划，直接向共享执行队列投一条任务
func (s *Service) RunNow(ctx context.Context, ownerID, id int64) (string, error) {
	t, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	payload := queue.AITaskPayload{TaskID: t.ID, OwnerID: t.OwnerID, Prompt: t.Prompt}
	jobID, err := s.q.Send(ctx, supervisor.TaskAISchedule, payload, queue.SendOptions{})
	if err != nil {
		return "", errors.Wrap(err, "enqueue task run")
	}
	s.log.Info("scheduled task triggered", "task", t.ID, "job", jobID)
	return jobID, nil
}

// owned 读行并校验归属
func (s *Service) owned(ctx context.Context, ownerID, id int64) (*db.ScheduledTask, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "task %d", id)
	}
	if t.OwnerID != ownerID {
		return nil, errors.Wrapf(errors.ErrAuthFailed, "task %d not owned by account %d", id, ownerID)
	}
	return t, nil
}
