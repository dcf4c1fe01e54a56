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

// Package embedding 笔记向量索引引擎：维护笔记与附件到向量记录的
// 映射，提供语义检索，并暴露可续跑、可撤销、可观测的重建协议。
// 写读通路按 vector.backend 二选一：sqlite/memory 走内置 vector.Store，
// redis 走 eino-ext indexer/retriever。
package embedding

import (
	"context"
	"sync/atomic"

	"note-platform/internal/extract"
	modelembed "note-platform/internal/model/embedding"
	"note-platform/internal/model/vision"
	"note-platform/internal/notification"
	"note-platform/internal/splitter"
	"note-platform/internal/storage/cache"
	"note-platform/internal/storage/db"
	"note-platform/internal/storage/object"
	"note-platform/internal/storage/vector"
	"note-platform/pkg/config"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// Op 写入类型
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Result 单条写入结果；OK 为 false 时 Reason 给出原因
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// ModelSource 按配置构建模型客户端；生产实现为 model.Registry
type ModelSource interface {
	EmbeddingModelByID(ctx context.Context, modelID int64) (modelembed.Client, error)
	VisionModelByID(ctx context.Context, modelID int64) (vision.Client, error)
}

// TagSource 排除标签解析；只需要按 ID 取标签
type TagSource interface {
	Get(ctx context.Context, id int64) (*db.Tag, error)
}

// Deps 引擎依赖。Notes、Models、Cache、Config 必填；
// Vector 为空且后端不是 redis 时按配置自建。
type Deps struct {
	Notes       db.NoteStore
	Attachments db.AttachmentStore
	Tags        TagSource
	Models      ModelSource
	Blobs       object.BlobStore
	Extract     *extract.Service
	Cache       cache.Store
	Notifier    notification.Notifier
	Vector      vector.Store
	Config      *config.Config
	Log         *log.Logger
}

// Service 向量索引引擎
type Service struct {
	notes       db.NoteStore
	attachments db.AttachmentStore
	tags        TagSource
	models      ModelSource
	blobs       object.BlobStore
	extract     *extract.Service
	cache       cache.Store
	notifier    notification.Notifier
	cfg         *config.Config
	splitter    *splitter.Engine
	chunker     string
	driver      driver
	log         *log.Logger

	// 进程内强停标记；跨进程停止走缓存里的 isRunning
	stopFlag atomic.Bool
}

// New 创建引擎并按 vector.backend 选择驱动
func New(ctx context.Context, deps Deps) (*Service, error) {
	if deps.Notes == nil {
		return nil, errors.ConfigMissingf("embedding engine requires a note store")
	}
	if deps.Models == nil {
		return nil, errors.ConfigMissingf("embedding engine requires a model source")
	}
	if deps.Cache == nil {
		return nil, errors.ConfigMissingf("embedding engine requires a progress cache")
	}
	if deps.Config == nil {
		return nil, errors.ConfigMissingf("embedding engine requires config")
	}
	logger := deps.Log
	if logger == nil {
		logger = log.Nop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notification.Nop{}
	}
	extractor := deps.Extract
	if extractor == nil {
		extractor = extract.NewService(logger)
	}

	s := &Service{
		notes:       deps.Notes,
		attachments: deps.Attachments,
		tags:        deps.Tags,
		models:      deps.Models,
		blobs:       deps.Blobs,
		extract:     extractor,
		cache:       deps.Cache,
		notifier:    notifier,
		cfg:         deps.Config,
		splitter:    splitter.NewEngine(),
		log:         logger.Named("embedding"),
	}

	resolve := func(ctx context.Context) (modelembed.Client, error) {
		return deps.Models.EmbeddingModelByID(ctx, s.cfg.AI.EmbeddingModelID)
	}

	switch deps.Config.Vector.Backend {
	case "redis":
		d, err := newEinoDriver(ctx, deps.Config.Vector, resolve)
		if err != nil {
			return nil, errors.Wrap(err, "eino driver")
		}
		s.driver = d
	default:
		store := deps.Vector
		if store == nil {
			var err error
			store, err = vector.NewStore(deps.Config.Vector)
			if err != nil {
				return nil, errors.Wrap(err, "vector store")
			}
		}
		s.driver = newNativeDriver(store, s.indexName(), resolve)
	}

	s.chunker = deps.Config.AI.EmbeddingSplitter
	if s.chunker == "" {
		s.chunker = "markdown"
	}
	if _, err := s.splitter.GetSplitter(s.chunker); err != nil {
		return nil, errors.Validationf("unknown embedding splitter %q", s.chunker)
	}
	return s, nil
}

// indexName 逻辑索引名，默认 "blinko"
func (s *Service) indexName() string {
	if s.cfg.Vector.Collection != "" {
		return s.cfg.Vector.Collection
	}
	return "blinko"
}

// topK 命中条数：调用方显式值 → 配置 → 3
func (s *Service) topK(k int) int {
	if k > 0 {
		return k
	}
	if s.cfg.AI.EmbeddingTopK > 0 {
		return s.cfg.AI.EmbeddingTopK
	}
	return 3
}

// scoreThreshold 相似度下限：配置 → 0.4
func (s *Service) scoreThreshold() float64 {
	if s.cfg.AI.EmbeddingScore > 0 {
		return s.cfg.AI.EmbeddingScore
	}
	return 0.4
}

// splitChunks 按配置的切片器切块；默认 markdown 结构切块 2000/200
func (s *Service) splitChunks(content string) ([]splitter.Chunk, error) {
	return s.splitter.Split(content, s.chunker, nil)
}

// Close 释放驱动持有的连接
func (s *Service) Close() error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close()
}
