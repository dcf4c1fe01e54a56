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

package db

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// NoteStoreMem 内存实现的 NoteStore，供单测与本地演示使用
type NoteStoreMem struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Note
	// note_id -> tag ids，供 WithoutTag 过滤
	noteTags map[int64]map[int64]bool
	// note_id -> 附件数，供 WithFile 过滤
	noteFiles map[int64]int
}

// NewNoteStoreMem 创建内存版 NoteStore
func NewNoteStoreMem() *NoteStoreMem {
	return &NoteStoreMem{
		nextID:    1,
		byID:      make(map[int64]*Note),
		noteTags:  make(map[int64]map[int64]bool),
		noteFiles: make(map[int64]int),
	}
}

func copyNote(n *Note) *Note {
	out := *n
	if n.Metadata != nil {
		out.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func (s *NoteStoreMem) Upsert(ctx context.Context, note *Note) (int64, error) {
	if note == nil {
		return 0, errors.New("nil note")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if note.ID == 0 {
		note.ID = s.nextID
		s.nextID++
		note.CreatedAt = now
	} else if old := s.byID[note.ID]; old != nil {
		note.CreatedAt = old.CreatedAt
	}
	note.UpdatedAt = now
	s.byID[note.ID] = copyNote(note)
	return note.ID, nil
}

func (s *NoteStoreMem) Get(ctx context.Context, id int64) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.byID[id]
	if n == nil {
		return nil, nil
	}
	return copyNote(n), nil
}

func (s *NoteStoreMem) GetMany(ctx context.Context, ids []int64) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Note, 0, len(ids))
	for _, id := range ids {
		if n := s.byID[id]; n != nil {
			out = append(out, copyNote(n))
		}
	}
	return out, nil
}

func (s *NoteStoreMem) List(ctx context.Context, ownerID int64, f NoteFilter) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*Note
	for _, n := range s.byID {
		if n.OwnerID != ownerID {
			continue
		}
		if f.SearchText != "" && !strings.Contains(strings.ToLower(n.Content), strings.ToLower(f.SearchText)) {
			continue
		}
		if f.Type != nil && n.Type != *f.Type {
			continue
		}
		if f.IsArchived != nil && n.IsArchived != *f.IsArchived {
			continue
		}
		if f.IsRecycle != nil {
			if n.IsRecycle != *f.IsRecycle {
				continue
			}
		} else if n.IsRecycle {
			continue
		}
		if f.WithoutTag > 0 && s.noteTags[n.ID][f.WithoutTag] {
			continue
		}
		if f.WithFile && s.noteFiles[n.ID] == 0 {
			continue
		}
		if f.WithLink && !strings.Contains(n.Content, "http://") && !strings.Contains(n.Content, "https://") {
			continue
		}
		if f.HasTodo && !strings.Contains(n.Content, "- [ ]") && !strings.Contains(n.Content, "* [ ]") {
			continue
		}
		if f.StartDate != nil && n.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && n.CreatedAt.After(*f.EndDate) {
			continue
		}
		all = append(all, copyNote(n))
	}
	asc := f.OrderBy == "createdAt asc" || f.OrderBy == "updatedAt asc"
	byUpdated := strings.HasPrefix(f.OrderBy, "updatedAt")
	sort.Slice(all, func(i, j int) bool {
		if all[i].IsTop != all[j].IsTop {
			return all[i].IsTop
		}
		ti, tj := all[i].CreatedAt, all[j].CreatedAt
		if byUpdated {
			ti, tj = all[i].UpdatedAt, all[j].UpdatedAt
		}
		if asc {
			return ti.Before(tj)
		}
		return tj.Before(ti)
	})
	size := f.Size
	if size <= 0 {
		size = 30
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(all) {
		return nil, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *NoteStoreMem) TrashMany(ctx context.Context, ownerID int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if n := s.byID[id]; n != nil && n.OwnerID == ownerID {
			n.IsRecycle = true
			n.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (s *NoteStoreMem) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.byID {
		if n.CreatedAt.Before(cutoff) && !n.IsArchived && !n.IsRecycle && !n.IsTop {
			n.IsArchived = true
			n.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

func (s *NoteStoreMem) ListForIndex(ctx context.Context, excludeIDs []int64) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skip := make(map[int64]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		skip[id] = true
	}
	var out []*Note
	for _, n := range s.byID {
		if n.IsRecycle || skip[n.ID] {
			continue
		}
		out = append(out, copyNote(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *NoteStoreMem) SetMetadataFlag(ctx context.Context, id int64, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.byID[id]
	if n == nil {
		return nil
	}
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
	return nil
}

func (s *NoteStoreMem) Delete(ctx context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.byID[id]; n != nil && n.OwnerID == ownerID {
		delete(s.byID, id)
		delete(s.noteTags, id)
		delete(s.noteFiles, id)
	}
	return nil
}

// TagNote 测试辅助：给笔记挂标签
func (s *NoteStoreMem) TagNote(noteID, tagID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noteTags[noteID] == nil {
		s.noteTags[noteID] = make(map[int64]bool)
	}
	s.noteTags[noteID][tagID] = true
}

// AttachFile 测试辅助：记一个附件
func (s *NoteStoreMem) AttachFile(noteID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noteFiles[noteID]++
}

// AttachmentStoreMem 内存实现的 AttachmentStore
type AttachmentStoreMem struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Attachment
}

func NewAttachmentStoreMem() *AttachmentStoreMem {
	return &AttachmentStoreMem{nextID: 1, byID: make(map[int64]*Attachment)}
}

func copyAttachment(a *Attachment) *Attachment {
	out := *a
	if a.Metadata != nil {
		out.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func (s *AttachmentStoreMem) Create(ctx context.Context, att *Attachment) (int64, error) {
	if att == nil {
		return 0, errors.New("nil attachment")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, old := range s.byID {
		if old.Path == att.Path {
			old.Name = att.Name
			old.Size = att.Size
			old.Type = att.Type
			old.UpdatedAt = time.Now()
			att.ID = old.ID
			return old.ID, nil
		}
	}
	att.ID = s.nextID
	s.nextID++
	att.CreatedAt = time.Now()
	att.UpdatedAt = att.CreatedAt
	s.byID[att.ID] = copyAttachment(att)
	return att.ID, nil
}

func (s *AttachmentStoreMem) Get(ctx context.Context, id int64) (*Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.byID[id]
	if a == nil {
		return nil, nil
	}
	return copyAttachment(a), nil
}

func (s *AttachmentStoreMem) GetByPath(ctx context.Context, path string) (*Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byID {
		if a.Path == path {
			return copyAttachment(a), nil
		}
	}
	return nil, nil
}

func (s *AttachmentStoreMem) ListByNote(ctx context.Context, noteID int64) ([]*Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Attachment
	for _, a := range s.byID {
		if a.NoteID == noteID {
			out = append(out, copyAttachment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *AttachmentStoreMem) BindNote(ctx context.Context, id, noteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.byID[id]; a != nil {
		a.NoteID = noteID
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (s *AttachmentStoreMem) UpdateMetadata(ctx context.Context, id int64, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.byID[id]; a != nil {
		a.Metadata = meta
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (s *AttachmentStoreMem) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

// ScheduledTaskStoreMem 内存实现的 ScheduledTaskStore
type ScheduledTaskStoreMem struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*ScheduledTask
}

func NewScheduledTaskStoreMem() *ScheduledTaskStoreMem {
	return &ScheduledTaskStoreMem{nextID: 1, byID: make(map[int64]*ScheduledTask)}
}

func copyTask(t *ScheduledTask) *ScheduledTask {
	out := *t
	if t.LastRun != nil {
		lr := *t.LastRun
		out.LastRun = &lr
	}
	if t.LastResult != nil {
		r := *t.LastResult
		out.LastResult = &r
	}
	return &out
}

func (s *ScheduledTaskStoreMem) Create(ctx context.Context, t *ScheduledTask) (int64, error) {
	if t == nil {
		return 0, errors.New("nil task")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID
	s.nextID++
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	s.byID[t.ID] = copyTask(t)
	return t.ID, nil
}

func (s *ScheduledTaskStoreMem) Get(ctx context.Context, id int64) (*ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.byID[id]
	if t == nil {
		return nil, nil
	}
	return copyTask(t), nil
}

func (s *ScheduledTaskStoreMem) ListByOwner(ctx context.Context, ownerID int64) ([]*ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ScheduledTask
	for _, t := range s.byID {
		if t.OwnerID == ownerID {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ScheduledTaskStoreMem) ListEnabled(ctx context.Context) ([]*ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ScheduledTask
	for _, t := range s.byID {
		if t.Enabled {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ScheduledTaskStoreMem) SetEnabled(ctx context.Context, ownerID, id int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.byID[id]
	if t == nil || t.OwnerID != ownerID {
		return errors.New("task not found")
	}
	t.Enabled = enabled
	t.UpdatedAt = time.Now()
	return nil
}

func (s *ScheduledTaskStoreMem) RecordRun(ctx context.Context, id int64, ranAt time.Time, result *TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.byID[id]; t != nil {
		lr := ranAt
		t.LastRun = &lr
		t.LastResult = result
		t.UpdatedAt = time.Now()
	}
	return nil
}

func (s *ScheduledTaskStoreMem) Delete(ctx context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.byID[id]; t != nil && t.OwnerID == ownerID {
		delete(s.byID, id)
	}
	return nil
}

// FollowStoreMem 内存实现的 FollowStore
type FollowStoreMem struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Follow
}

func NewFollowStoreMem() *FollowStoreMem {
	return &FollowStoreMem{nextID: 1, byID: make(map[int64]*Follow)}
}

func (s *FollowStoreMem) Create(ctx context.Context, f *Follow) (int64, error) {
	if f == nil {
		return 0, errors.New("nil follow")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.nextID
	s.nextID++
	cp := *f
	s.byID[f.ID] = &cp
	return f.ID, nil
}

func (s *FollowStoreMem) ListByAccount(ctx context.Context, accountID int64) ([]*Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Follow
	for _, f := range s.byID {
		if f.AccountID == accountID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FollowStoreMem) ListAll(ctx context.Context) ([]*Follow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Follow, 0, len(s.byID))
	for _, f := range s.byID {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FollowStoreMem) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}

func (s *FollowStoreMem) Delete(ctx context.Context, accountID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.byID[id]; f != nil && f.AccountID == accountID {
		delete(s.byID, id)
	}
	return nil
}
