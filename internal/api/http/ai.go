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
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"note-platform/internal/agent"
	"note-platform/internal/embedding"
	"note-platform/internal/queue"
	"note-platform/internal/storage/db"
	"note-platform/internal/supervisor"
	"note-platform/pkg/errors"
)

type completionsRequest struct {
	Question       string                   `json:"question"`
	ConversationID int64                    `json:"conversationId"`
	Conversations  []db.ConversationMessage `json:"conversations"`
	SystemPrompt   string                   `json:"systemPrompt"`
	WithTools      bool                     `json:"withTools"`
	WithOnline     bool                     `json:"withOnline"`
	WithRAG        bool                     `json:"withRAG"`
}

// completions SSE 流式回答：`notes` 事件先行，随后 `chunk`，收尾
// `done`；中途失败发 `error` 事件。body 用 chunked 流推给客户端。
func (s *Server) completions(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	var req completionsRequest
	if err := c.BindJSON(&req); err != nil || req.Question == "" {
		badRequest(c, "question is required")
		return
	}

	events, err := s.assistant.Completions(ctx, agent.CompletionsRequest{
		Question:       req.Question,
		ConversationID: req.ConversationID,
		Conversations:  req.Conversations,
		SystemPrompt:   req.SystemPrompt,
		WithTools:      req.WithTools,
		WithOnline:     req.WithOnline,
		WithRAG:        req.WithRAG,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	pr, pw := io.Pipe()
	c.SetStatusCode(consts.StatusOK)
	c.Response.Header.Set("Content-Type", "text/event-stream")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("Connection", "keep-alive")
	c.Response.SetBodyStream(pr, -1)

	go func() {
		defer pw.Close()
		for ev := range events {
			switch ev.Kind {
			case agent.EventNotes:
				writeSSE(pw, "notes", ev.Notes)
			case agent.EventChunk:
				writeSSE(pw, "chunk", map[string]string{"content": ev.Chunk})
			case agent.EventDone:
				writeSSE(pw, "done", map[string]bool{"done": true})
			case agent.EventError:
				s.log.Error("completions stream failed", "error", ev.Err)
				writeSSE(pw, "error", map[string]string{"error": ev.Err.Error()})
			}
		}
	}()
}

// writeSSE 一帧 SSE；payload JSON 化失败就丢帧
func writeSSE(w io.Writer, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, raw)
}

type embeddingUpsertRequest struct {
	NoteID int64 `json:"noteId"`
}

func (s *Server) embeddingUpsert(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	var req embeddingUpsertRequest
	if err := c.BindJSON(&req); err != nil || req.NoteID == 0 {
		badRequest(c, "noteId is required")
		return
	}
	n, err := s.ownedNote(ctx, accountID, req.NoteID)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.index.Upsert(ctx, n.ID, n.Content, embedding.OpUpdate, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, res)
}

type insertAttachmentsRequest struct {
	NoteID   int64  `json:"noteId"`
	FilePath string `json:"filePath"`
}

func (s *Server) embeddingInsertAttachments(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	var req insertAttachmentsRequest
	if err := c.BindJSON(&req); err != nil || req.NoteID == 0 || req.FilePath == "" {
		badRequest(c, "noteId and filePath are required")
		return
	}
	n, err := s.ownedNote(ctx, accountID, req.NoteID)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.index.InsertAttachments(ctx, n.ID, req.FilePath, n.UpdatedAt)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) embeddingDelete(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	var req embeddingUpsertRequest
	if err := c.BindJSON(&req); err != nil || req.NoteID == 0 {
		badRequest(c, "noteId is required")
		return
	}
	if _, err := s.ownedNote(ctx, accountID, req.NoteID); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.index.Delete(ctx, req.NoteID); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, nil)
}

func (s *Server) ownedNote(ctx context.Context, accountID, noteID int64) (*db.Note, error) {
	n, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "note %d", noteID)
	}
	if n.OwnerID != accountID {
		return nil, errors.Wrapf(errors.ErrAuthFailed, "note %d not owned by account %d", noteID, accountID)
	}
	return n, nil
}

type rebuildStartRequest struct {
	Force       bool `json:"force"`
	Incremental bool `json:"incremental"`
}

// rebuildStart 排一条重建作业进共享队列，由 worker 进程执行；
// singleton key 防止并发重建排队堆积
func (s *Server) rebuildStart(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	var req rebuildStartRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}
	if err := s.enqueueRebuild(ctx, req.Force, req.Incremental); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, map[string]string{"status": "queued"})
}

func (s *Server) rebuildResume(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	if err := s.enqueueRebuild(ctx, true, true); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, map[string]string{"status": "queued"})
}

func (s *Server) enqueueRebuild(ctx context.Context, force, incremental bool) error {
	_, err := s.queue.Send(ctx, supervisor.TaskRebuildEmbedding,
		queue.RebuildPayload{Force: force, Incremental: incremental},
		queue.SendOptions{SingletonKey: supervisor.TaskRebuildEmbedding})
	return err
}

func (s *Server) rebuildStop(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	if err := s.index.StopRebuild(ctx); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, map[string]string{"status": "stopping"})
}

func (s *Server) rebuildRetryFailed(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	if err := s.index.RetryFailedNotes(ctx); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.enqueueRebuild(ctx, true, true); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, map[string]string{"status": "queued"})
}

func (s *Server) rebuildProgress(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	p, err := s.index.Progress(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, p)
}

type testConnectRequest struct {
	ProviderID   int64           `json:"providerId"`
	ModelKey     string          `json:"modelKey"`
	Capabilities db.Capabilities `json:"capabilities"`
}

func (s *Server) testConnect(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	var req testConnectRequest
	if err := c.BindJSON(&req); err != nil || req.ProviderID == 0 || req.ModelKey == "" {
		badRequest(c, "providerId and modelKey are required")
		return
	}
	results, err := s.models.TestConnection(ctx, req.ProviderID, req.ModelKey, req.Capabilities)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, results)
}

type providerModelsRequest struct {
	ProviderID int64 `json:"providerId"`
}

func (s *Server) providerModels(ctx context.Context, c *app.RequestContext) {
	if _, authed := requireAccount(ctx, c); !authed {
		return
	}
	var req providerModelsRequest
	if err := c.BindJSON(&req); err != nil || req.ProviderID == 0 {
		badRequest(c, "providerId is required")
		return
	}
	models, err := s.models.FetchProviderModels(ctx, req.ProviderID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, models)
}
