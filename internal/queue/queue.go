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

// Package queue 基于 Postgres 的持久任务队列：at-least-once 投递、
// cron 定时、重试与归档，API 与 Worker 进程共享同一组表。
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// JobState 任务状态；state < StateCompleted 为未终结状态
type JobState int

const (
	StateCreated JobState = iota
	StateRetry
	StateActive
	StateCompleted
	StateCancelled
	StateFailed
)

func (s JobState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRetry:
		return "retry"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 终结状态不再被认领，等待归档
func (s JobState) Terminal() bool {
	return s >= StateCompleted
}

// Job 队列任务行；Payload 在队列边界保持 JSON，类型化见 payload.go
type Job struct {
	ID           string
	Queue        string
	State        JobState
	Payload      json.RawMessage
	RetryCount   int
	RetryLimit   int
	RetryDelay   time.Duration
	RetryBackoff bool
	SingletonKey string
	StartAfter   time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	Output       json.RawMessage
	CreatedAt    time.Time
}

// SendOptions 入队选项；零值使用队列默认重试策略
type SendOptions struct {
	RetryLimit   int
	RetryDelay   time.Duration
	RetryBackoff bool
	// SingletonKey 非空时同队列内同 key 的未终结任务至多一条，
	// 冲突时 Send 返回空 jobID 且不报错
	SingletonKey string
	// StartAfter 延迟可见时间；零值立即可见
	StartAfter time.Time
}

// WorkOptions worker 轮询参数
type WorkOptions struct {
	BatchSize    int           // 单次认领条数，<=0 取 1
	Concurrency  int           // 并发执行上限，<=0 取 1
	PollInterval time.Duration // 空轮询间隔，<=0 取 2s
}

// ScheduleOptions 定时计划选项
type ScheduleOptions struct {
	TZ string // IANA 时区名，空为 UTC
}

// Schedule 定时计划行；每次触发向同名队列投递一条任务
type Schedule struct {
	Name      string
	Cron      string
	TZ        string
	Payload   json.RawMessage
	NextRunAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Handler 任务处理回调；返回 nil 则 completed，返回错误进入重试状态机
type Handler func(ctx context.Context, job *Job) error

// Client 队列操作面；Manager（Postgres）与 Memory（测试）均实现
type Client interface {
	CreateQueue(ctx context.Context, name string) error
	Send(ctx context.Context, queue string, payload any, opts SendOptions) (string, error)
	Work(queue string, opts WorkOptions, handler Handler) error
	OffWork(queue string) error
	Schedule(ctx context.Context, name, spec string, payload any, opts ScheduleOptions) error
	Unschedule(ctx context.Context, name string) error
	GetSchedules(ctx context.Context) ([]*Schedule, error)
	GetSchedule(ctx context.Context, name string) (*Schedule, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Config 队列运行参数；由 pkg/config 的 queue 段映射而来
type Config struct {
	// VisibilityTimeout active 超过该时长未完成则由 monitor 放回 created
	VisibilityTimeout time.Duration
	// ArchiveAfter 终结任务保留时长，到期移入 queue_archive
	ArchiveAfter time.Duration
	// DeleteAfter 归档行保留时长，到期硬删除
	DeleteAfter time.Duration
	// MonitorInterval monitor 扫描与状态上报间隔
	MonitorInterval time.Duration
	// ScheduleInterval 定时计划触发扫描间隔
	ScheduleInterval time.Duration
	// ShutdownTimeout Stop 等待在途任务完成的上限
	ShutdownTimeout time.Duration
	// RetryLimit/RetryDelay/RetryBackoff 队列级默认重试策略
	RetryLimit   int
	RetryDelay   time.Duration
	RetryBackoff bool
}

// DefaultConfig 与生产默认一致：lease 5m、归档 1d、删除 7d、monitor 30s
func DefaultConfig() Config {
	return Config{
		VisibilityTimeout: 5 * time.Minute,
		ArchiveAfter:      86400 * time.Second,
		DeleteAfter:       604800 * time.Second,
		MonitorInterval:   30 * time.Second,
		ScheduleInterval:  time.Minute,
		ShutdownTimeout:   30 * time.Second,
		RetryLimit:        3,
		RetryDelay:        60 * time.Second,
		RetryBackoff:      true,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = d.VisibilityTimeout
	}
	if c.ArchiveAfter <= 0 {
		c.ArchiveAfter = d.ArchiveAfter
	}
	if c.DeleteAfter <= 0 {
		c.DeleteAfter = d.DeleteAfter
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	if c.ScheduleInterval <= 0 {
		c.ScheduleInterval = d.ScheduleInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = d.RetryLimit
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
}

// retryDelayFor 第 count 次重试前的等待；count 从 1 起，backoff 为指数翻倍
func retryDelayFor(base time.Duration, backoff bool, count int) time.Duration {
	if count < 1 {
		count = 1
	}
	if !backoff {
		return base
	}
	d := base
	for i := 1; i < count; i++ {
		d *= 2
	}
	return d
}
