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
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"note-platform/internal/embedding"
	"note-platform/internal/storage/db"
	"note-platform/pkg/errors"
)

type upsertNoteRequest struct {
	ID         int64   `json:"id"`
	Content    *string `json:"content"`
	Type       *int    `json:"type"`
	IsArchived *bool   `json:"isArchived"`
	IsRecycle  *bool   `json:"isRecycle"`
	IsTop      *bool   `json:"isTop"`
	IsShare    *bool   `json:"isShare"`
}

// upsertNote 建新笔记或 owner 范围内改旧笔记；索引回写与 AI 后处理
// 异步跑，不拖请求
func (s *Server) upsertNote(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	var req upsertNoteRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}

	now := time.Now()
	var n *db.Note
	op := embedding.OpUpdate
	if req.ID > 0 {
		existing, err := s.notes.Get(ctx, req.ID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if existing == nil {
			s.fail(c, errors.Wrapf(errors.ErrNotFound, "note %d", req.ID))
			return
		}
		if existing.OwnerID != accountID {
			s.fail(c, errors.Wrapf(errors.ErrAuthFailed, "note %d not owned by account %d", req.ID, accountID))
			return
		}
		n = existing
	} else {
		if req.Content == nil || strings.TrimSpace(*req.Content) == "" {
			badRequest(c, "content is required for a new note")
			return
		}
		n = &db.Note{OwnerID: accountID, Type: db.NoteTypeFlash, CreatedAt: now}
		op = embedding.OpInsert
	}

	if req.Content != nil {
		n.Content = *req.Content
	}
	if req.Type != nil {
		n.Type = db.NoteType(*req.Type)
	}
	if req.IsArchived != nil {
		n.IsArchived = *req.IsArchived
	}
	if req.IsRecycle != nil {
		n.IsRecycle = *req.IsRecycle
	}
	if req.IsTop != nil {
		n.IsTop = *req.IsTop
	}
	if req.IsShare != nil {
		n.IsShare = *req.IsShare
	}
	n.UpdatedAt = now

	if _, err := s.notes.Upsert(ctx, n); err != nil {
		s.fail(c, err)
		return
	}

	if req.Content != nil {
		go s.afterNoteWrite(context.WithoutCancel(ctx), n, op)
	}
	ok(c, n)
}

// afterNoteWrite 索引回写 + 可选 AI 后处理；均 best-effort
func (s *Server) afterNoteWrite(ctx context.Context, n *db.Note, op embedding.Op) {
	if s.index != nil && n.Content != "" {
		if _, err := s.index.Upsert(ctx, n.ID, n.Content, op, n.CreatedAt, n.UpdatedAt); err != nil {
			s.log.Warn("index note after write failed", "note", n.ID, "error", err)
		}
	}
	if s.assistant != nil && op == embedding.OpInsert && s.cfg.AI.PostProcessing.Enabled {
		if err := s.assistant.PostProcessNote(ctx, n.ID); err != nil {
			s.log.Warn("post-processing failed", "note", n.ID, "error", err)
		}
	}
}

type listNotesRequest struct {
	SearchText string `json:"searchText"`
	Page       int    `json:"page"`
	Size       int    `json:"size"`
	OrderBy    string `json:"orderBy"`
	Type       *int   `json:"type"`
	IsArchived *bool  `json:"isArchived"`
	IsRecycle  *bool  `json:"isRecycle"`
	WithoutTag int64  `json:"withoutTag"`
	WithFile   bool   `json:"withFile"`
	WithLink   bool   `json:"withLink"`
	HasTodo    bool   `json:"hasTodo"`
	StartDate  string `json:"startDate"` // RFC3339
	EndDate    string `json:"endDate"`
}

func (s *Server) listNotes(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	var req listNotesRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid json body")
		return
	}

	filter := db.NoteFilter{
		SearchText: req.SearchText,
		Page:       req.Page,
		Size:       req.Size,
		OrderBy:    req.OrderBy,
		IsArchived: req.IsArchived,
		IsRecycle:  req.IsRecycle,
		WithoutTag: req.WithoutTag,
		WithFile:   req.WithFile,
		WithLink:   req.WithLink,
		HasTodo:    req.HasTodo,
	}
	if req.Type != nil {
		t := db.NoteType(*req.Type)
		filter.Type = &t
	}
	if req.StartDate != "" {
		if t, err := time.Parse(time.RFC3339, req.StartDate); err == nil {
			filter.StartDate = &t
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, req.EndDate); err == nil {
			filter.EndDate = &t
		}
	}

	rows, err := s.notes.List(ctx, accountID, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, rows)
}

type trashNotesRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) trashNotes(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	var req trashNotesRequest
	if err := c.BindJSON(&req); err != nil || len(req.IDs) == 0 {
		badRequest(c, "ids is required")
		return
	}
	if err := s.notes.TrashMany(ctx, accountID, req.IDs); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, map[string]int{"trashed": len(req.IDs)})
}
