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

// Package supervisor 定时任务监督层：每个任务类三要素（任务名、默认
// cron、任务体），任务名同时充当队列名与计划名。排程与投递全部落在
// internal/queue，本层只管理注册与状态机。
package supervisor

import (
	"context"
	"sync"

	"note-platform/internal/queue"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// State 任务类状态机：uninitialized → worker-registered →
// {scheduled|unscheduled} → stopped；TriggerNow 在注册后任意状态合法
type State int

const (
	StateUninitialized State = iota
	StateWorkerRegistered
	StateScheduled
	StateUnscheduled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateWorkerRegistered:
		return "worker-registered"
	case StateScheduled:
		return "scheduled"
	case StateUnscheduled:
		return "unscheduled"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// JobClass 一个定时任务类的静态面
type JobClass interface {
	// Name 稳定标识，既是队列名也是计划名
	Name() string
	// DefaultCron 默认 cron 表达式（5 段）
	DefaultCron() string
	// SchedulePayload 计划触发与 TriggerNow 投递的载荷
	SchedulePayload() any
	// Run 任务体；返回错误进入队列重试状态机
	Run(ctx context.Context, job *queue.Job) error
}

// Supervisor 包装一个 JobClass：注册 worker、维护排程与状态
type Supervisor struct {
	jc  JobClass
	q   queue.Client
	log *log.Logger

	mu    sync.Mutex
	state State
	cron  string
}

// New 创建监督器；Initialize 前处于 uninitialized
func New(jc JobClass, q queue.Client, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Supervisor{
		jc:    jc,
		q:     q,
		log:   &log.Logger{Logger: logger.Named("supervisor").With("task", jc.Name())},
		state: StateUninitialized,
		cron:  jc.DefaultCron(),
	}
}

// Initialize 注册 worker；不排程。cronOverride 非空时替换默认 cron
func (s *Supervisor) Initialize(ctx context.Context, cronOverride string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return errors.Validationf("job %s already initialized (state %s)", s.jc.Name(), s.state)
	}
	name := s.jc.Name()
	if err := s.q.CreateQueue(ctx, name); err != nil {
		return err
	}
	if err := s.q.Work(name, queue.WorkOptions{Concurrency: 1}, s.jc.Run); err != nil {
		return err
	}
	if cronOverride != "" {
		s.cron = cronOverride
	}
	s.state = StateWorkerRegistered
	s.log.Info("job initialized", "cron", s.cron)
	return nil
}

// Start 更新排程；cronSpec 为空用当前 cron。runImmediately 时同步执行一次任务体
func (s *Supervisor) Start(ctx context.Context, cronSpec string, runImmediately bool) error {
	s.mu.Lock()
	if s.state == StateUninitialized || s.state == StateStopped {
		st := s.state
		s.mu.Unlock()
		return errors.Validationf("job %s cannot start from state %s", s.jc.Name(), st)
	}
	if cronSpec != "" {
		s.cron = cronSpec
	}
	spec := s.cron
	s.mu.Unlock()

	if err := s.q.Schedule(ctx, s.jc.Name(), spec, s.jc.SchedulePayload(), queue.ScheduleOptions{}); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateScheduled
	s.mu.Unlock()
	s.log.Info("job scheduled", "cron", spec)

	if runImmediately {
		payload, err := queue.MarshalPayload(s.jc.SchedulePayload())
		if err != nil {
			return err
		}
		if err := s.jc.Run(ctx, &queue.Job{Queue: s.jc.Name(), Payload: payload}); err != nil {
			s.log.Warn("immediate run failed", "error", err)
			return err
		}
	}
	return nil
}

// Stop 取消排程；worker 保持注册，TriggerNow 仍可用
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateUninitialized || s.state == StateStopped {
		st := s.state
		s.mu.Unlock()
		return errors.Validationf("job %s cannot stop from state %s", s.jc.Name(), st)
	}
	s.mu.Unlock()
	if err := s.q.Unschedule(ctx, s.jc.Name()); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateUnscheduled
	s.mu.Unlock()
	s.log.Info("job unscheduled")
	return nil
}

// SetCron 换排程并立即触发一次
func (s *Supervisor) SetCron(ctx context.Context, cronSpec string) error {
	if cronSpec == "" {
		return errors.Validationf("cron is empty")
	}
	if err := s.Stop(ctx); err != nil {
		return err
	}
	if err := s.Start(ctx, cronSpec, false); err != nil {
		return err
	}
	_, err := s.TriggerNow(ctx)
	return err
}

// TriggerNow 投递一条一次性任务；注册后任意状态合法
func (s *Supervisor) TriggerNow(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return "", errors.Validationf("job %s not initialized", s.jc.Name())
	}
	s.mu.Unlock()
	id, err := s.q.Send(ctx, s.jc.Name(), s.jc.SchedulePayload(), queue.SendOptions{})
	if err != nil {
		return "", err
	}
	s.log.Info("job triggered", "job", id)
	return id, nil
}

// GetSchedule 当前计划；未排程返回 nil
func (s *Supervisor) GetSchedule(ctx context.Context) (*queue.Schedule, error) {
	sched, err := s.q.GetSchedule(ctx, s.jc.Name())
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sched, nil
}

// IsScheduled 是否存在计划行
func (s *Supervisor) IsScheduled(ctx context.Context) bool {
	sched, err := s.GetSchedule(ctx)
	return err == nil && sched != nil
}

// Shutdown 注销 worker，进入终态
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateUninitialized || s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	s.mu.Unlock()
	return s.q.OffWork(s.jc.Name())
}

// CurrentState 状态机当前值，测试与诊断用
func (s *Supervisor) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cron 当前 cron 表达式
func (s *Supervisor) Cron() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron
}
