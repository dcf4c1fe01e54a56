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

// Package http 对外 HTTP 面：hertz server + JWT 鉴权 + SSE 流式回答
// 与 MCP 服务端。所有业务路由挂在 /api/v1 下，principal 由 JWT 中间件
// 注入 context，handler 不再自己解 token。
package http

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"note-platform/internal/agent"
	"note-platform/internal/embedding"
	"note-platform/internal/model"
	"note-platform/internal/queue"
	"note-platform/internal/storage/db"
	"note-platform/internal/storage/object"
	"note-platform/internal/supervisor"
	"note-platform/pkg/config"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// Assistant 对话与工具面；生产实现为 agent.Service
type Assistant interface {
	Completions(ctx context.Context, req agent.CompletionsRequest) (<-chan agent.Event, error)
	PostProcessNote(ctx context.Context, noteID int64) error
	Tools(ctx context.Context) []tool.BaseTool
}

// IndexEngine 向量索引控制面；生产实现为 embedding.Service
type IndexEngine interface {
	Upsert(ctx context.Context, noteID int64, content string, op embedding.Op, createdAt, updatedAt time.Time) (*embedding.Result, error)
	InsertAttachments(ctx context.Context, noteID int64, filePath string, updatedAt time.Time) (*embedding.Result, error)
	Delete(ctx context.Context, noteID int64) error
	Progress(ctx context.Context) (*embedding.RebuildProgress, error)
	StopRebuild(ctx context.Context) error
	RetryFailedNotes(ctx context.Context) error
}

// TaskService 用户定时任务面；生产实现为 aitask.Service
type TaskService interface {
	List(ctx context.Context, ownerID int64) ([]*db.ScheduledTask, error)
	Create(ctx context.Context, ownerID int64, name, prompt, cron string) (*db.ScheduledTask, error)
	Delete(ctx context.Context, ownerID, id int64) error
	SetEnabled(ctx context.Context, ownerID, id int64, enabled bool) error
	RunNow(ctx context.Context, ownerID, id int64) (string, error)
}

// ModelAdmin 模型管理面；生产实现为 model.Registry
type ModelAdmin interface {
	TestConnection(ctx context.Context, providerID int64, modelKey string, caps db.Capabilities) (map[string]model.CapabilityResult, error)
	FetchProviderModels(ctx context.Context, providerID int64) ([]model.ModelInfo, error)
}

// Deps 服务装配依赖
type Deps struct {
	Config      *config.Config
	Notes       db.NoteStore
	Attachments db.AttachmentStore
	Assistant   Assistant
	Index       IndexEngine
	Tasks       TaskService
	Models      ModelAdmin
	Registry    *supervisor.Registry
	Queue       queue.Client
	Blobs       object.BlobStore
	Guard       *object.PathGuard
	Log         *log.Logger
}

// Server HTTP 服务
type Server struct {
	hz  *server.Hertz
	cfg *config.Config

	notes       db.NoteStore
	attachments db.AttachmentStore
	assistant   Assistant
	index       IndexEngine
	tasks       TaskService
	models      ModelAdmin
	registry    *supervisor.Registry
	queue       queue.Client
	blobs       object.BlobStore
	guard       *object.PathGuard
	mcp         *mcpSessions
	log         *log.Logger
}

// New 创建并装配 HTTP 服务
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.ConfigMissingf("http server requires config")
	}
	if deps.Config.JWT.Secret == "" {
		return nil, errors.ConfigMissingf("jwt.secret is required")
	}
	logger := deps.Log
	if logger == nil {
		logger = log.Nop()
	}

	hlog.SetLogger(hertzslog.NewLogger())

	addr := fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port)
	opts := []hertzconfig.Option{
		server.WithHostPorts(addr),
		server.WithExitWaitTime(5 * time.Second),
	}

	s := &Server{
		cfg:         deps.Config,
		notes:       deps.Notes,
		attachments: deps.Attachments,
		assistant:   deps.Assistant,
		index:       deps.Index,
		tasks:       deps.Tasks,
		models:      deps.Models,
		registry:    deps.Registry,
		queue:       deps.Queue,
		blobs:       deps.Blobs,
		guard:       deps.Guard,
		mcp:         newMCPSessions(),
		log:         logger.Named("http"),
	}

	if deps.Config.Observability.Enabled {
		tracer, traceCfg := hertztracing.NewServerTracer()
		opts = append(opts, tracer)
		s.hz = server.New(opts...)
		s.hz.Use(hertztracing.ServerMiddleware(traceCfg))
	} else {
		s.hz = server.New(opts...)
	}
	s.hz.Use(recovery.Recovery())

	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// registerRoutes 按 §/api/v1 分组挂路由；/health 与 /metrics 免鉴权
func (s *Server) registerRoutes() error {
	authMW, principalMW, err := s.authMiddleware()
	if err != nil {
		return err
	}

	s.hz.GET("/health", s.health)
	s.hz.GET("/metrics", s.prometheus)
	s.hz.GET("/file/*filepath", s.serveFile)

	// MCP 服务端：SSE 会话 + 消息通道；会话建立时就要 principal
	s.hz.GET("/sse", authMW, principalMW, s.mcpOpenSession)
	s.hz.POST("/messages", s.mcpMessage)

	v1 := s.hz.Group("/api/v1", authMW, principalMW)

	notes := v1.Group("/notes")
	notes.POST("/upsert", s.upsertNote)
	notes.POST("/list", s.listNotes)
	notes.POST("/trash-many", s.trashNotes)

	ai := v1.Group("/ai")
	ai.POST("/completions", s.completions)
	ai.POST("/embedding/upsert", s.embeddingUpsert)
	ai.POST("/embedding/insert-attachments", s.embeddingInsertAttachments)
	ai.POST("/embedding/delete", s.embeddingDelete)
	ai.POST("/rebuild/start", s.rebuildStart)
	ai.POST("/rebuild/resume", s.rebuildResume)
	ai.POST("/rebuild/stop", s.rebuildStop)
	ai.POST("/rebuild/retry-failed", s.rebuildRetryFailed)
	ai.GET("/rebuild/progress", s.rebuildProgress)
	ai.POST("/test-connect", s.testConnect)
	ai.POST("/provider/models", s.providerModels)

	aiTasks := v1.Group("/ai-tasks")
	aiTasks.GET("", s.listAITasks)
	aiTasks.POST("", s.createAITask)
	aiTasks.DELETE("/:id", s.deleteAITask)
	aiTasks.POST("/:id/toggle", s.toggleAITask)
	aiTasks.POST("/:id/run", s.runAITask)

	tasks := v1.Group("/tasks")
	tasks.GET("", s.listTasks)
	tasks.POST("/upsert", s.upsertTask)

	files := v1.Group("/files")
	files.POST("/upload", s.uploadFile)
	files.POST("/delete", s.deleteFile)

	return nil
}

// Run 启动监听，阻塞到 Shutdown
func (s *Server) Run() error {
	s.log.Info("http server listening",
		"host", s.cfg.Server.Host, "port", s.cfg.Server.Port)
	return s.hz.Run()
}

// Shutdown 优雅退出
func (s *Server) Shutdown(ctx context.Context) error {
	return s.hz.Shutdown(ctx)
}

// Hertz 暴露底层引擎，测试用
func (s *Server) Hertz() *server.Hertz {
	return s.hz
}
