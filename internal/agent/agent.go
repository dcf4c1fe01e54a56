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

// Package agent 笔记助手运行时：每次请求组装一个带固定工具集的聊天
// agent（eino react loop），工具全部以 context 里的 principal 做归属
// 判断，入参不接受 token。对排程层只依赖 Scheduler 接口，任务的实际
// 执行由共享队列 worker 回调 RunTask，双向依赖在这里断开。
package agent

import (
	"context"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	"note-platform/internal/embedding"
	"note-platform/internal/model"
	"note-platform/internal/model/llm"
	"note-platform/internal/notification"
	"note-platform/internal/storage/db"
	"note-platform/pkg/config"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// defaultSystemPrompt 未配置 globalPrompt 时的缺省系统提示
const defaultSystemPrompt = `You are Blinko, a helpful second-brain assistant.
You can search, create, update and organize the user's notes with the tools
provided. Answer in the user's language. Keep answers concise.`

// QueryEngine 语义检索面；生产实现为 embedding.Service
type QueryEngine interface {
	QueryVector(ctx context.Context, q string, ownerID int64, topK int) (*embedding.QueryResult, error)
}

// IndexUpserter 笔记写入后的向量索引回写；工具里 best-effort 调用
type IndexUpserter interface {
	Upsert(ctx context.Context, noteID int64, content string, op embedding.Op, createdAt, updatedAt time.Time) (*embedding.Result, error)
}

// Scheduler 用户定时任务面；生产实现为 aitask.Service。
// agent 只会创建/删除/列举任务，不直接执行。
type Scheduler interface {
	List(ctx context.Context, ownerID int64) ([]*db.ScheduledTask, error)
	Create(ctx context.Context, ownerID int64, name, prompt, cron string) (*db.ScheduledTask, error)
	Delete(ctx context.Context, ownerID, id int64) error
	DeleteByName(ctx context.Context, ownerID int64, name string) error
}

// ModelSource 主模型配置解析与聊天客户端构建面；生产实现为 model.Registry
type ModelSource interface {
	ConfigForModel(ctx context.Context, modelID int64) (model.Config, error)
	GetLanguageModel(cfg model.Config) (llm.Client, error)
}

// ChatModelBuilder 构建一次请求用的聊天模型；测试注入假模型
type ChatModelBuilder func(ctx context.Context) (einomodel.ToolCallingChatModel, error)

// Deps agent 运行时依赖。Notes、Config 必填；
// Builder 为空时按 ModelSource + 主模型 ID 构建。
type Deps struct {
	Notes         db.NoteStore
	Comments      db.CommentStore
	Tags          db.TagStore
	Conversations db.ConversationStore
	Query         QueryEngine
	Index         IndexUpserter
	Tasks         Scheduler
	Models        ModelSource
	Notifier      notification.Notifier
	Config        *config.Config
	Builder       ChatModelBuilder
	Log           *log.Logger
}

// Service agent 运行时
type Service struct {
	notes         db.NoteStore
	comments      db.CommentStore
	tags          db.TagStore
	conversations db.ConversationStore
	query         QueryEngine
	index         IndexUpserter
	tasks         Scheduler
	models        ModelSource
	notifier      notification.Notifier
	cfg           *config.Config
	builder       ChatModelBuilder
	log           *log.Logger
}

// New 创建 agent 运行时
func New(deps Deps) (*Service, error) {
	if deps.Notes == nil {
		return nil, errors.ConfigMissingf("agent requires a note store")
	}
	if deps.Config == nil {
		return nil, errors.ConfigMissingf("agent requires config")
	}
	logger := deps.Log
	if logger == nil {
		logger = log.Nop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notification.Nop{}
	}
	s := &Service{
		notes:         deps.Notes,
		comments:      deps.Comments,
		tags:          deps.Tags,
		conversations: deps.Conversations,
		query:         deps.Query,
		index:         deps.Index,
		tasks:         deps.Tasks,
		models:        deps.Models,
		notifier:      notifier,
		cfg:           deps.Config,
		builder:       deps.Builder,
		log:           logger.Named("agent"),
	}
	if s.builder == nil {
		if deps.Models == nil {
			return nil, errors.ConfigMissingf("agent requires a model source or a chat model builder")
		}
		s.builder = s.defaultBuilder
	}
	return s, nil
}

// defaultBuilder 按全局主模型 ID 构建聊天模型；未配置报 ConfigMissing
func (s *Service) defaultBuilder(ctx context.Context) (einomodel.ToolCallingChatModel, error) {
	if s.cfg.AI.MainModelID == 0 {
		return nil, errors.ConfigMissingf("no main model config")
	}
	cfg, err := s.models.ConfigForModel(ctx, s.cfg.AI.MainModelID)
	if err != nil {
		return nil, err
	}
	return NewChatModel(ctx, cfg, s.models.GetLanguageModel)
}

// systemPrompt "Today is <ISO now>" 加全局或缺省提示
func (s *Service) systemPrompt(now time.Time) string {
	prompt := s.cfg.AI.GlobalPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return fmt.Sprintf("Today is %s\n%s", now.UTC().Format(time.RFC3339), prompt)
}
