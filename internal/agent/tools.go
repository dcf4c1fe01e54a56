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
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"note-platform/internal/embedding"
	"note-platform/internal/storage/db"
	"note-platform/pkg/auth"
	"note-platform/pkg/errors"
)

// 工具出参统一为小结构体，eino 会 JSON 化后交给模型。

type noteRef struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type okResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func noteTypeFromString(s string) db.NoteType {
	switch strings.ToLower(s) {
	case "note":
		return db.NoteTypeNote
	case "todo":
		return db.NoteTypeTodo
	default: // blinko/flash
		return db.NoteTypeFlash
	}
}

func noteTypeString(t db.NoteType) string {
	switch t {
	case db.NoteTypeNote:
		return "note"
	case db.NoteTypeTodo:
		return "todo"
	default:
		return "blinko"
	}
}

func toNoteRef(n *db.Note) noteRef {
	return noteRef{
		ID:        n.ID,
		Type:      noteTypeString(n.Type),
		Content:   n.Content,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// noteForWrite 写操作的归属校验：只有 owner 能改
func (s *Service) noteForWrite(ctx context.Context, id int64) (*db.Note, error) {
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "note %d", id)
	}
	if n.OwnerID != accountID {
		return nil, errors.Wrapf(errors.ErrAuthFailed, "note %d not owned by account %d", id, accountID)
	}
	return n, nil
}

// noteForRead 读操作：owner 或已共享
func (s *Service) noteForRead(ctx context.Context, id int64) (*db.Note, error) {
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "note %d", id)
	}
	if n.OwnerID != accountID && !n.IsShare {
		return nil, errors.Wrapf(errors.ErrAuthFailed, "note %d not visible to account %d", id, accountID)
	}
	return n, nil
}

// reindex 笔记写入后 best-effort 刷新向量索引
func (s *Service) reindex(ctx context.Context, n *db.Note, op embedding.Op) {
	if s.index == nil || n.Content == "" {
		return
	}
	if _, err := s.index.Upsert(ctx, n.ID, n.Content, op, n.CreatedAt, n.UpdatedAt); err != nil {
		s.log.Warn("reindex after tool write failed", "note", n.ID, "error", err)
	}
}

type upsertNoteInput struct {
	Content string `json:"content" jsonschema:"description=markdown content of the note"`
	Type    string `json:"type,omitempty" jsonschema:"description=note flavor,enum=blinko,enum=note,enum=todo"`
}

func (s *Service) upsertNoteTool(ctx context.Context, in *upsertNoteInput) (*noteRef, error) {
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, errors.Validationf("note content is empty")
	}
	now := time.Now()
	n := &db.Note{
		OwnerID:   accountID,
		Type:      noteTypeFromString(in.Type),
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.notes.Upsert(ctx, n); err != nil {
		return nil, errors.Wrap(err, "create note")
	}
	s.reindex(ctx, n, embedding.OpInsert)
	ref := toNoteRef(n)
	return &ref, nil
}

type updateNoteInput struct {
	ID         int64   `json:"id" jsonschema:"description=id of the note to update"`
	Content    *string `json:"content,omitempty" jsonschema:"description=new markdown content"`
	Type       *string `json:"type,omitempty" jsonschema:"description=note flavor,enum=blinko,enum=note,enum=todo"`
	IsArchived *bool   `json:"isArchived,omitempty"`
	IsTop      *bool   `json:"isTop,omitempty"`
	IsShare    *bool   `json:"isShare,omitempty"`
	IsRecycle  *bool   `json:"isRecycle,omitempty"`
}

func (s *Service) updateNoteTool(ctx context.Context, in *updateNoteInput) (*noteRef, error) {
	n, err := s.noteForWrite(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if in.Content != nil {
		n.Content = *in.Content
	}
	if in.Type != nil {
		n.Type = noteTypeFromString(*in.Type)
	}
	if in.IsArchived != nil {
		n.IsArchived = *in.IsArchived
	}
	if in.IsTop != nil {
		n.IsTop = *in.IsTop
	}
	if in.IsShare != nil {
		n.IsShare = *in.IsShare
	}
	if in.IsRecycle != nil {
		n.IsRecycle = *in.IsRecycle
	}
	n.UpdatedAt = time.Now()
	if _, err := s.notes.Upsert(ctx, n); err != nil {
		return nil, errors.Wrap(err, "update note")
	}
	if in.Content != nil {
		s.reindex(ctx, n, embedding.OpUpdate)
	}
	ref := toNoteRef(n)
	return &ref, nil
}

type deleteNotesInput struct {
	IDs []int64 `json:"ids" jsonschema:"description=ids of the notes to move to trash"`
}

func (s *Service) deleteNotesTool(ctx context.Context, in *deleteNotesInput) (*okResult, error) {
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.IDs) == 0 {
		return nil, errors.Validationf("ids is empty")
	}
	// TrashMany 本身按 owner 过滤，越权 id 不会生效
	if err := s.notes.TrashMany(ctx, accountID, in.IDs); err != nil {
		return nil, errors.Wrap(err, "trash notes")
	}
	return &okResult{OK: true, Message: fmt.Sprintf("%d note(s) moved to trash", len(in.IDs))}, nil
}

type searchNotesInput struct {
	SearchText   string `json:"searchText,omitempty" jsonschema:"description=keyword to match in note content"`
	IsUseAIQuery bool   `json:"isUseAiQuery,omitempty" jsonschema:"description=use semantic search over the vector index"`
	Days         int    `json:"days,omitempty" jsonschema:"description=restrict to notes created within the last N days"`
	Type         string `json:"type,omitempty" jsonschema:"description=note flavor filter,enum=blinko,enum=note,enum=todo"`
	IsArchived   *bool  `json:"isArchived,omitempty"`
	IsRecycle    *bool  `json:"isRecycle,omitempty"`
	Size         int    `json:"size,omitempty" jsonschema:"description=max results, default 10"`
}

type searchNotesOutput struct {
	Notes []noteRef `json:"notes"`
}

func (s *Service) searchNotesTool(ctx context.Context, in *searchNotesInput) (*searchNotesOutput, error) {
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}

	if in.IsUseAIQuery && s.query != nil && in.SearchText != "" {
		res, err := s.query.QueryVector(ctx, in.SearchText, accountID, in.Size)
		if err != nil {
			return nil, err
		}
		out := &searchNotesOutput{Notes: make([]noteRef, 0, len(res.Notes))}
		for _, n := range res.Notes {
			out.Notes = append(out.Notes, toNoteRef(n))
		}
		return out, nil
	}

	filter := db.NoteFilter{
		SearchText: in.SearchText,
		Size:       in.Size,
		IsArchived: in.IsArchived,
		IsRecycle:  in.IsRecycle,
	}
	if filter.Size <= 0 {
		filter.Size = 10
	}
	if in.Type != "" {
		t := noteTypeFromString(in.Type)
		filter.Type = &t
	}
	if in.Days > 0 {
		end := time.Now()
		start := end.AddDate(0, 0, -in.Days)
		filter.StartDate = &start
		filter.EndDate = &end
	}
	rows, err := s.notes.List(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}
	out := &searchNotesOutput{Notes: make([]noteRef, 0, len(rows))}
	for _, n := range rows {
		out.Notes = append(out.Notes, toNoteRef(n))
	}
	return out, nil
}

type createCommentInput struct {
	Content   string `json:"content" jsonschema:"description=comment text"`
	NoteID    int64  `json:"noteId" jsonschema:"description=id of the note to comment on"`
	GuestName string `json:"guestName,omitempty" jsonschema:"description=display name when commenting as a guest"`
}

func (s *Service) createCommentTool(ctx context.Context, in *createCommentInput) (*okResult, error) {
	if s.comments == nil {
		return nil, errors.ConfigMissingf("comment store not configured")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, errors.Validationf("comment content is empty")
	}
	n, err := s.noteForRead(ctx, in.NoteID)
	if err != nil {
		return nil, err
	}
	accountID, _ := auth.AccountID(ctx)
	c := &db.Comment{NoteID: n.ID, AccountID: accountID, Content: in.Content, GuestName: in.GuestName}
	if _, err := s.comments.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create comment")
	}
	return &okResult{OK: true, Message: fmt.Sprintf("comment %d created", c.ID)}, nil
}

type createTaskInput struct {
	Name   string `json:"name" jsonschema:"description=short unique name of the task"`
	Prompt string `json:"prompt" jsonschema:"description=prompt to run on every firing"`
	Cron   string `json:"cron" jsonschema:"description=5-field cron expression, e.g. 0 10 * * *"`
}

type taskRef struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Cron    string `json:"cron"`
	Enabled bool   `json:"enabled"`
}

func (s *Service) createTaskTool(ctx context.Context, in *createTaskInput) (*taskRef, error) {
	if s.tasks == nil {
		return nil, errors.ConfigMissingf("scheduler not configured")
	}
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.tasks.Create(ctx, accountID, in.Name, in.Prompt, in.Cron)
	if err != nil {
		return nil, err
	}
	return &taskRef{ID: t.ID, Name: t.Name, Cron: t.Cron, Enabled: t.Enabled}, nil
}

type deleteTaskInput struct {
	TaskID   int64  `json:"taskId,omitempty" jsonschema:"description=id of the task to delete"`
	TaskName string `json:"taskName,omitempty" jsonschema:"description=name of the task to delete, used when taskId is unknown"`
}

func (s *Service) deleteTaskTool(ctx context.Context, in *deleteTaskInput) (*okResult, error) {
	if s.tasks == nil {
		return nil, errors.ConfigMissingf("scheduler not configured")
	}
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case in.TaskID > 0:
		err = s.tasks.Delete(ctx, accountID, in.TaskID)
	case in.TaskName != "":
		err = s.tasks.DeleteByName(ctx, accountID, in.TaskName)
	default:
		return nil, errors.Validationf("taskId or taskName is required")
	}
	if err != nil {
		return nil, err
	}
	return &okResult{OK: true, Message: "task deleted"}, nil
}

type listTasksInput struct{}

type listTasksOutput struct {
	Tasks []taskRef `json:"tasks"`
}

func (s *Service) listTasksTool(ctx context.Context, _ *listTasksInput) (*listTasksOutput, error) {
	if s.tasks == nil {
		return nil, errors.ConfigMissingf("scheduler not configured")
	}
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.tasks.List(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := &listTasksOutput{Tasks: make([]taskRef, 0, len(rows))}
	for _, t := range rows {
		out.Tasks = append(out.Tasks, taskRef{ID: t.ID, Name: t.Name, Cron: t.Cron, Enabled: t.Enabled})
	}
	return out, nil
}

// buildTools 固定工具集加 MCP 联邦工具；单个工具构建失败只降级不中断
func (s *Service) buildTools(ctx context.Context) []tool.BaseTool {
	specs := []struct {
		name string
		desc string
		make func() (tool.InvokableTool, error)
	}{
		{"upsert_note", "Create a new note for the current user.", func() (tool.InvokableTool, error) {
			return utils.InferTool("upsert_note", "Create a new note for the current user.", s.upsertNoteTool)
		}},
		{"update_note", "Update an existing note owned by the current user.", func() (tool.InvokableTool, error) {
			return utils.InferTool("update_note", "Update an existing note owned by the current user.", s.updateNoteTool)
		}},
		{"delete_notes", "Move notes owned by the current user to the trash.", func() (tool.InvokableTool, error) {
			return utils.InferTool("delete_notes", "Move notes owned by the current user to the trash.", s.deleteNotesTool)
		}},
		{"search_notes", "Search the current user's notes by keyword or semantically.", func() (tool.InvokableTool, error) {
			return utils.InferTool("search_notes", "Search the current user's notes by keyword or semantically.", s.searchNotesTool)
		}},
		{"create_comment", "Add a comment to a note visible to the current user.", func() (tool.InvokableTool, error) {
			return utils.InferTool("create_comment", "Add a comment to a note visible to the current user.", s.createCommentTool)
		}},
		{"web_search_tool", "Search the web for up-to-date information.", func() (tool.InvokableTool, error) {
			return utils.InferTool("web_search_tool", "Search the web for up-to-date information.", s.webSearchTool)
		}},
		{"web_extra", "Extract readable content from the given URLs.", func() (tool.InvokableTool, error) {
			return utils.InferTool("web_extra", "Extract readable content from the given URLs.", s.webExtractTool)
		}},
		{"create_scheduled_task", "Create a recurring AI task that runs a prompt on a cron schedule.", func() (tool.InvokableTool, error) {
			return utils.InferTool("create_scheduled_task", "Create a recurring AI task that runs a prompt on a cron schedule.", s.createTaskTool)
		}},
		{"delete_scheduled_task", "Delete a scheduled AI task by id or name.", func() (tool.InvokableTool, error) {
			return utils.InferTool("delete_scheduled_task", "Delete a scheduled AI task by id or name.", s.deleteTaskTool)
		}},
		{"list_scheduled_tasks", "List the current user's scheduled AI tasks.", func() (tool.InvokableTool, error) {
			return utils.InferTool("list_scheduled_tasks", "List the current user's scheduled AI tasks.", s.listTasksTool)
		}},
	}

	tools := make([]tool.BaseTool, 0, len(specs))
	for _, spec := range specs {
		t, err := spec.make()
		if err != nil {
			s.log.Error("build tool failed, skipping", "tool", spec.name, "error", err)
			continue
		}
		tools = append(tools, t)
	}
	return append(tools, s.federatedTools(ctx)...)
}

// Tools 当前完整工具集（本地 + 联邦）；MCP 服务端对外暴露时复用
func (s *Service) Tools(ctx context.Context) []tool.BaseTool {
	return s.buildTools(ctx)
}
