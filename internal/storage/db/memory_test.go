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
	"testing"
	"time"
)

func TestNoteStoreMem_UpsertGet(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStoreMem()
	id, err := store.Upsert(ctx, &Note{OwnerID: 1, Content: "hello world"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}
	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Content != "hello world" || got.OwnerID != 1 {
		t.Errorf("Get: got %+v", got)
	}
	missing, err := store.Get(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing note, got %v, %v", missing, err)
	}
}

func TestNoteStoreMem_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStoreMem()
	_, _ = store.Upsert(ctx, &Note{OwnerID: 1, Content: "plain note"})
	linkID, _ := store.Upsert(ctx, &Note{OwnerID: 1, Content: "see https://example.com"})
	todoID, _ := store.Upsert(ctx, &Note{OwnerID: 1, Type: NoteTypeTodo, Content: "- [ ] buy milk"})
	trashID, _ := store.Upsert(ctx, &Note{OwnerID: 1, Content: "trashed"})
	_ = store.TrashMany(ctx, 1, []int64{trashID})
	_, _ = store.Upsert(ctx, &Note{OwnerID: 2, Content: "other owner"})

	all, err := store.List(ctx, 1, NoteFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	// 回收站的默认不展示
	if len(all) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(all))
	}

	links, _ := store.List(ctx, 1, NoteFilter{WithLink: true})
	if len(links) != 1 || links[0].ID != linkID {
		t.Errorf("WithLink: got %+v", links)
	}

	todos, _ := store.List(ctx, 1, NoteFilter{HasTodo: true})
	if len(todos) != 1 || todos[0].ID != todoID {
		t.Errorf("HasTodo: got %+v", todos)
	}

	searched, _ := store.List(ctx, 1, NoteFilter{SearchText: "PLAIN"})
	if len(searched) != 1 {
		t.Errorf("SearchText: got %d notes", len(searched))
	}

	recycled := true
	trash, _ := store.List(ctx, 1, NoteFilter{IsRecycle: &recycled})
	if len(trash) != 1 || trash[0].ID != trashID {
		t.Errorf("IsRecycle: got %+v", trash)
	}
}

func TestNoteStoreMem_ListPaging(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStoreMem()
	for i := 0; i < 5; i++ {
		_, _ = store.Upsert(ctx, &Note{OwnerID: 1, Content: "note"})
	}
	page1, _ := store.List(ctx, 1, NoteFilter{Page: 1, Size: 2})
	page3, _ := store.List(ctx, 1, NoteFilter{Page: 3, Size: 2})
	if len(page1) != 2 || len(page3) != 1 {
		t.Errorf("paging: page1=%d page3=%d", len(page1), len(page3))
	}
	empty, _ := store.List(ctx, 1, NoteFilter{Page: 4, Size: 2})
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %d", len(empty))
	}
}

func TestNoteStoreMem_ArchiveOlderThan(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStoreMem()
	oldID, _ := store.Upsert(ctx, &Note{OwnerID: 1, Content: "old"})
	store.mu.Lock()
	store.byID[oldID].CreatedAt = time.Now().Add(-48 * time.Hour)
	store.mu.Unlock()
	_, _ = store.Upsert(ctx, &Note{OwnerID: 1, Content: "fresh"})

	n, err := store.ArchiveOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ArchiveOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 archived, got %d", n)
	}
	got, _ := store.Get(ctx, oldID)
	if !got.IsArchived {
		t.Error("old note should be archived")
	}
}

func TestNoteStoreMem_ListForIndex(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStoreMem()
	a, _ := store.Upsert(ctx, &Note{OwnerID: 1, Content: "a"})
	b, _ := store.Upsert(ctx, &Note{OwnerID: 1, Content: "b"})
	c, _ := store.Upsert(ctx, &Note{OwnerID: 1, Content: "c"})
	_ = store.TrashMany(ctx, 1, []int64{c})

	notes, err := store.ListForIndex(ctx, []int64{a})
	if err != nil {
		t.Fatalf("ListForIndex: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != b {
		t.Errorf("ListForIndex: got %+v", notes)
	}
}

func TestNoteStoreMem_SetMetadataFlag(t *testing.T) {
	ctx := context.Background()
	store := NewNoteStoreMem()
	id, _ := store.Upsert(ctx, &Note{OwnerID: 1, Content: "x", Metadata: map[string]any{"other": "keep"}})
	if err := store.SetMetadataFlag(ctx, id, MetaIsIndexed, true); err != nil {
		t.Fatalf("SetMetadataFlag: %v", err)
	}
	got, _ := store.Get(ctx, id)
	if got.Metadata[MetaIsIndexed] != true {
		t.Errorf("flag not set: %+v", got.Metadata)
	}
	if got.Metadata["other"] != "keep" {
		t.Errorf("existing metadata lost: %+v", got.Metadata)
	}
}

func TestScheduledTaskStoreMem_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewScheduledTaskStoreMem()
	id, err := store.Create(ctx, &ScheduledTask{OwnerID: 1, Name: "daily", Prompt: "summarize", Cron: "0 8 * * *", Enabled: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	enabled, _ := store.ListEnabled(ctx)
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled task, got %d", len(enabled))
	}

	if err := store.SetEnabled(ctx, 1, id, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	enabled, _ = store.ListEnabled(ctx)
	if len(enabled) != 0 {
		t.Errorf("expected 0 enabled after disable, got %d", len(enabled))
	}

	ranAt := time.Now()
	if err := store.RecordRun(ctx, id, ranAt, &TaskResult{Success: true, Result: "ok", ExecutedAt: ranAt}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	got, _ := store.Get(ctx, id)
	if got.LastRun == nil || got.LastResult == nil || !got.LastResult.Success {
		t.Errorf("run not recorded: %+v", got)
	}

	if err := store.SetEnabled(ctx, 2, id, true); err == nil {
		t.Error("expected error enabling another owner's task")
	}
}

func TestAttachmentStoreMem_PathUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewAttachmentStoreMem()
	first, _ := store.Create(ctx, &Attachment{OwnerID: 1, Path: "/files/a.pdf", Name: "a.pdf", Size: 10})
	second, _ := store.Create(ctx, &Attachment{OwnerID: 1, Path: "/files/a.pdf", Name: "a.pdf", Size: 20})
	if first != second {
		t.Errorf("same path should reuse row: %d vs %d", first, second)
	}
	got, _ := store.GetByPath(ctx, "/files/a.pdf")
	if got == nil || got.Size != 20 {
		t.Errorf("GetByPath: got %+v", got)
	}
}
