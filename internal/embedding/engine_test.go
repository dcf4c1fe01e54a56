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

package embedding

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	modelembed "note-platform/internal/model/embedding"
	"note-platform/internal/model/vision"
	"note-platform/internal/storage/cache"
	"note-platform/internal/storage/db"
	"note-platform/internal/storage/object"
	"note-platform/internal/storage/vector"
	"note-platform/pkg/config"
	"note-platform/pkg/errors"
)

// embedVocab 每个关键词占一维；余弦相似度只由共享关键词决定，
// 断言可以手算
var embedVocab = []string{"fox", "dog", "lazy", "granite", "espresso", "zeppelin", "kubernetes", "whiteboard"}

type fakeEmbedder struct {
	mu     sync.Mutex
	failOn string
	delay  time.Duration
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	failOn, delay := f.failOn, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if failOn != "" && strings.Contains(t, failOn) {
			return nil, fmt.Errorf("embedding backend rejected input")
		}
		vec := make([]float64, len(embedVocab))
		lower := strings.ToLower(t)
		for d, w := range embedVocab {
			if strings.Contains(lower, w) {
				vec[d] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string  { return "fake-vocab" }
func (f *fakeEmbedder) Dimension() int { return len(embedVocab) }

func (f *fakeEmbedder) setFailOn(s string) {
	f.mu.Lock()
	f.failOn = s
	f.mu.Unlock()
}

func (f *fakeEmbedder) setDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

type fakeModels struct {
	embed  modelembed.Client
	vision vision.Client
}

func (m *fakeModels) EmbeddingModelByID(ctx context.Context, modelID int64) (modelembed.Client, error) {
	if m.embed == nil {
		return nil, fmt.Errorf("no embedding model configured")
	}
	return m.embed, nil
}

func (m *fakeModels) VisionModelByID(ctx context.Context, modelID int64) (vision.Client, error) {
	if m.vision == nil {
		return nil, fmt.Errorf("no vision model configured")
	}
	return m.vision, nil
}

type fakeVision struct{ caption string }

func (f *fakeVision) Describe(ctx context.Context, imageBase64, mimeType, prompt string) (string, error) {
	return f.caption, nil
}

func (f *fakeVision) Name() string { return "fake-vision" }

type fakeTags struct{ tags map[int64]*db.Tag }

func (f *fakeTags) Get(ctx context.Context, id int64) (*db.Tag, error) {
	return f.tags[id], nil
}

// fakeBlob web 路径到本地文件的映射；Cleanup 调用计入 cleaned
type fakeBlob struct {
	mu      sync.Mutex
	files   map[string]string
	cleaned []string
}

func (f *fakeBlob) GetFile(ctx context.Context, path string) (*object.FileHandle, error) {
	local, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", path)
	}
	return &object.FileHandle{
		LocalPath:   local,
		IsTemporary: true,
		Cleanup: func() {
			f.mu.Lock()
			f.cleaned = append(f.cleaned, path)
			f.mu.Unlock()
		},
	}, nil
}

func (f *fakeBlob) GetFileBuffer(ctx context.Context, path string) ([]byte, error) {
	return nil, fmt.Errorf("unused")
}

func (f *fakeBlob) UploadFile(ctx context.Context, path string, data []byte) (string, error) {
	return "", fmt.Errorf("unused")
}

func (f *fakeBlob) UploadFileStream(ctx context.Context, path string, r io.Reader, size int64) (string, error) {
	return "", fmt.Errorf("unused")
}

func (f *fakeBlob) DeleteFile(ctx context.Context, path string) error { return nil }

func (f *fakeBlob) RenameFile(ctx context.Context, oldPath, newPath string) (string, error) {
	return newPath, nil
}

func (f *fakeBlob) MoveFile(ctx context.Context, oldPath, newPath string) (string, error) {
	return newPath, nil
}

func (f *fakeBlob) Close() error { return nil }

func (f *fakeBlob) cleanupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cleaned)
}

type sentEvent struct {
	account int64
	typ     string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingNotifier) Notify(_ context.Context, accountID int64, typ, _, _ string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{account: accountID, typ: typ})
	return nil
}

func (r *recordingNotifier) last() *sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	ev := r.events[len(r.events)-1]
	return &ev
}

type fixture struct {
	svc      *Service
	notes    *db.NoteStoreMem
	atts     *db.AttachmentStoreMem
	vec      *vector.MemoryStore
	cache    *cache.MemoryStore
	embed    *fakeEmbedder
	notifier *recordingNotifier
	cfg      *config.Config
}

func newFixture(t *testing.T, mutate func(cfg *config.Config, deps *Deps)) *fixture {
	t.Helper()
	f := &fixture{
		notes:    db.NewNoteStoreMem(),
		atts:     db.NewAttachmentStoreMem(),
		vec:      vector.NewMemoryStore(),
		cache:    cache.NewMemoryStore(),
		embed:    &fakeEmbedder{},
		notifier: &recordingNotifier{},
	}
	cfg := &config.Config{}
	cfg.Vector.Backend = "memory"
	cfg.Vector.Collection = "notes-test"
	cfg.AI.EmbeddingModelID = 1
	cfg.AI.ImageModelID = 2
	f.cfg = cfg
	deps := Deps{
		Notes:       f.notes,
		Attachments: f.atts,
		Models:      &fakeModels{embed: f.embed},
		Cache:       f.cache,
		Notifier:    f.notifier,
		Vector:      f.vec,
		Config:      cfg,
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}
	svc, err := New(context.Background(), deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedNote(t *testing.T, n *db.Note) {
	t.Helper()
	if _, err := f.notes.Upsert(context.Background(), n); err != nil {
		t.Fatalf("seed note %d: %v", n.ID, err)
	}
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func TestNewRequiresCoreDeps(t *testing.T) {
	cfg := &config.Config{}
	cfg.Vector.Backend = "memory"
	base := func() Deps {
		return Deps{
			Notes:  db.NewNoteStoreMem(),
			Models: &fakeModels{embed: &fakeEmbedder{}},
			Cache:  cache.NewMemoryStore(),
			Vector: vector.NewMemoryStore(),
			Config: cfg,
		}
	}
	for name, strip := range map[string]func(*Deps){
		"notes":  func(d *Deps) { d.Notes = nil },
		"models": func(d *Deps) { d.Models = nil },
		"cache":  func(d *Deps) { d.Cache = nil },
		"config": func(d *Deps) { d.Config = nil },
	} {
		d := base()
		strip(&d)
		if _, err := New(context.Background(), d); !errors.Is(err, errors.ErrConfigMissing) {
			t.Errorf("missing %s: got %v", name, err)
		}
	}
}

func TestNewRejectsUnknownSplitter(t *testing.T) {
	cfg := &config.Config{}
	cfg.Vector.Backend = "memory"
	cfg.AI.EmbeddingSplitter = "sentence"
	deps := Deps{
		Notes:  db.NewNoteStoreMem(),
		Models: &fakeModels{embed: &fakeEmbedder{}},
		Cache:  cache.NewMemoryStore(),
		Vector: vector.NewMemoryStore(),
		Config: cfg,
	}
	if _, err := New(context.Background(), deps); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("unknown splitter must fail construction, got %v", err)
	}
}

func TestConfiguredTokenSplitter(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config, _ *Deps) {
		cfg.AI.EmbeddingSplitter = "token"
	})
	chunks, err := f.svc.splitChunks("# heading\nplain words here")
	if err != nil {
		t.Fatalf("splitChunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	// 词级切片器无视 markdown 结构，按空白重排
	if chunks[0].Content != "# heading plain words here" || chunks[0].TokenCount != 5 {
		t.Fatalf("token split = %+v", chunks[0])
	}
}

func TestUpsertAndQueryVector(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.seedNote(t, &db.Note{ID: 42, OwnerID: 7, Content: "The quick brown fox jumps over the lazy dog"})
	f.seedNote(t, &db.Note{ID: 43, OwnerID: 7, Content: "kubernetes upgrade checklist"})

	now := time.Now()
	res, err := f.svc.Upsert(ctx, 42, "The quick brown fox jumps over the lazy dog", OpInsert, now, now)
	if err != nil || !res.OK {
		t.Fatalf("Upsert: res=%+v err=%v", res, err)
	}
	if _, err := f.svc.Upsert(ctx, 43, "kubernetes upgrade checklist", OpInsert, now, now); err != nil {
		t.Fatalf("Upsert distractor: %v", err)
	}

	n, _ := f.notes.Get(ctx, 42)
	if v, _ := n.Metadata[db.MetaIsIndexed].(bool); !v {
		t.Errorf("isIndexed not set: %+v", n.Metadata)
	}

	qr, err := f.svc.QueryVector(ctx, "lazy dog", 7, 3)
	if err != nil {
		t.Fatalf("QueryVector: %v", err)
	}
	if len(qr.Notes) != 1 || qr.Notes[0].ID != 42 {
		t.Fatalf("expected note 42 only, got %+v", qr.Notes)
	}
	if !strings.Contains(qr.AggregatedContext, "quick brown fox") {
		t.Errorf("aggregated context: %q", qr.AggregatedContext)
	}

	// 属主过滤：同一查询换个账号不返回结果
	other, err := f.svc.QueryVector(ctx, "lazy dog", 8, 3)
	if err != nil {
		t.Fatalf("QueryVector other owner: %v", err)
	}
	if len(other.Notes) != 0 {
		t.Errorf("owner scoping leaked notes: %+v", other.Notes)
	}
}

func TestQueryVectorSkipsRecycledNotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.seedNote(t, &db.Note{ID: 9, OwnerID: 1, Content: "zeppelin maintenance"})
	now := time.Now()
	if _, err := f.svc.Upsert(ctx, 9, "zeppelin maintenance", OpInsert, now, now); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// 回收后向量还在，水合时被过滤
	if err := f.notes.TrashMany(ctx, 1, []int64{9}); err != nil {
		t.Fatalf("TrashMany: %v", err)
	}
	qr, err := f.svc.QueryVector(ctx, "zeppelin", 1, 3)
	if err != nil {
		t.Fatalf("QueryVector: %v", err)
	}
	if len(qr.Notes) != 0 {
		t.Errorf("recycled note returned: %+v", qr.Notes)
	}
}

func TestUpsertUpdateReplacesVectors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.seedNote(t, &db.Note{ID: 5, OwnerID: 1, Content: "espresso machine notes"})
	now := time.Now()
	if _, err := f.svc.Upsert(ctx, 5, "espresso machine notes", OpInsert, now, now); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := f.svc.Upsert(ctx, 5, "granite hiking trail", OpUpdate, now, now); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.seedNote(t, &db.Note{ID: 5, OwnerID: 1, Content: "granite hiking trail"})

	if qr, _ := f.svc.QueryVector(ctx, "espresso", 1, 3); len(qr.Notes) != 0 {
		t.Errorf("stale chunks survived update: %+v", qr.Notes)
	}
	qr, err := f.svc.QueryVector(ctx, "granite", 1, 3)
	if err != nil || len(qr.Notes) != 1 || qr.Notes[0].ID != 5 {
		t.Fatalf("updated content not searchable: %+v err=%v", qr, err)
	}
}

func TestUpsertExcludedByTagName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(cfg *config.Config, deps *Deps) {
		cfg.AI.ExcludeEmbeddingTag = 9
		deps.Tags = &fakeTags{tags: map[int64]*db.Tag{9: {ID: 9, OwnerID: 1, Name: "#noai"}}}
	})
	f.seedNote(t, &db.Note{ID: 11, OwnerID: 1, Content: "draft #noai keep out"})

	now := time.Now()
	res, err := f.svc.Upsert(ctx, 11, "draft #noai keep out", OpInsert, now, now)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.OK || res.Reason != ReasonExcluded {
		t.Fatalf("expected exclusion, got %+v", res)
	}
	// 排除命中无任何副作用：不建索引，不落标记
	if names, _ := f.vec.ListIndexes(ctx); len(names) != 0 {
		t.Errorf("index should not exist, got %v", names)
	}
	n, _ := f.notes.Get(ctx, 11)
	if _, ok := n.Metadata[db.MetaIsIndexed]; ok {
		t.Error("isIndexed should stay unset")
	}

	// 标签名不在正文里照常入索引
	f.seedNote(t, &db.Note{ID: 12, OwnerID: 1, Content: "clean granite note"})
	res, err = f.svc.Upsert(ctx, 12, "clean granite note", OpInsert, now, now)
	if err != nil || !res.OK {
		t.Fatalf("clean note: res=%+v err=%v", res, err)
	}
}

func TestInsertAttachmentsTextFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := filepath.Join(dir, "manual.txt")
	if err := os.WriteFile(local, []byte("zeppelin flight manual"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	blob := &fakeBlob{files: map[string]string{"/api/file/docs/manual.txt": local}}
	f := newFixture(t, func(_ *config.Config, deps *Deps) { deps.Blobs = blob })
	f.seedNote(t, &db.Note{ID: 7, OwnerID: 3, Content: "zeppelin hangar inventory"})

	now := time.Now()
	if _, err := f.svc.Upsert(ctx, 7, "zeppelin hangar inventory", OpInsert, now, now); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	res, err := f.svc.InsertAttachments(ctx, 7, "/api/file/docs/manual.txt", now)
	if err != nil || !res.OK {
		t.Fatalf("InsertAttachments: res=%+v err=%v", res, err)
	}
	if blob.cleanupCount() != 1 {
		t.Error("temp handle not cleaned up")
	}
	n, _ := f.notes.Get(ctx, 7)
	if v, _ := n.Metadata[db.MetaIsAttachmentsIndexed].(bool); !v {
		t.Errorf("isAttachmentsIndexed not set: %+v", n.Metadata)
	}

	// 附件切片带稳定 ID 与附件元数据
	rec, err := f.vec.Get(ctx, "notes-test", "7-att-manual.txt-0")
	if err != nil {
		t.Fatalf("attachment vector missing: %v", err)
	}
	if rec.Metadata[vector.MetaIsAttachment] != "true" || rec.Metadata[vector.MetaFilePath] != "/api/file/docs/manual.txt" {
		t.Errorf("attachment metadata: %+v", rec.Metadata)
	}

	// 正文切片与附件切片命中同一笔记，去重后只回一条
	qr, err := f.svc.QueryVector(ctx, "zeppelin", 3, 5)
	if err != nil {
		t.Fatalf("QueryVector: %v", err)
	}
	if len(qr.Notes) != 1 || qr.Notes[0].ID != 7 {
		t.Fatalf("dedupe by note: %+v", qr.Notes)
	}
}

func TestInsertAttachmentsImageCaption(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := filepath.Join(dir, "board.png")
	writeTestPNG(t, local)
	blob := &fakeBlob{files: map[string]string{"/api/file/pics/board.png": local}}
	f := newFixture(t, func(_ *config.Config, deps *Deps) {
		deps.Blobs = blob
		deps.Models = &fakeModels{embed: &fakeEmbedder{}, vision: &fakeVision{caption: "whiteboard covered in sketches"}}
	})
	f.seedNote(t, &db.Note{ID: 20, OwnerID: 2, Content: "meeting notes"})

	res, err := f.svc.InsertAttachments(ctx, 20, "/api/file/pics/board.png", time.Now())
	if err != nil || !res.OK {
		t.Fatalf("InsertAttachments: res=%+v err=%v", res, err)
	}
	qr, err := f.svc.QueryVector(ctx, "whiteboard", 2, 3)
	if err != nil || len(qr.Notes) != 1 || qr.Notes[0].ID != 20 {
		t.Fatalf("caption not searchable: %+v err=%v", qr, err)
	}
}

func TestInsertAttachmentsUnsupportedVision(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := filepath.Join(dir, "photo.png")
	writeTestPNG(t, local)
	blob := &fakeBlob{files: map[string]string{"photo.png": local}}
	f := newFixture(t, func(_ *config.Config, deps *Deps) {
		deps.Blobs = blob
		deps.Models = &fakeModels{embed: &fakeEmbedder{}, vision: &fakeVision{caption: vision.NotSupported}}
	})
	f.seedNote(t, &db.Note{ID: 21, OwnerID: 2, Content: "photo dump"})

	res, err := f.svc.InsertAttachments(ctx, 21, "photo.png", time.Now())
	if err != nil {
		t.Fatalf("InsertAttachments: %v", err)
	}
	if res.OK || res.Reason != vision.NotSupported {
		t.Fatalf("expected recorded skip, got %+v", res)
	}
	// 跳过不落盘：没建索引，标记保持原样
	if names, _ := f.vec.ListIndexes(ctx); len(names) != 0 {
		t.Errorf("no vectors expected, indexes: %v", names)
	}
	n, _ := f.notes.Get(ctx, 21)
	if _, ok := n.Metadata[db.MetaIsAttachmentsIndexed]; ok {
		t.Error("isAttachmentsIndexed should stay unset")
	}
	if blob.cleanupCount() != 1 {
		t.Error("cleanup must run even on skip")
	}
}

func TestDeleteRemovesAttachmentChunksToo(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(local, []byte("espresso dial-in log"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	blob := &fakeBlob{files: map[string]string{"notes.txt": local}}
	f := newFixture(t, func(_ *config.Config, deps *Deps) { deps.Blobs = blob })
	f.seedNote(t, &db.Note{ID: 30, OwnerID: 1, Content: "espresso experiments"})

	now := time.Now()
	if _, err := f.svc.Upsert(ctx, 30, "espresso experiments", OpInsert, now, now); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := f.svc.InsertAttachments(ctx, 30, "notes.txt", now); err != nil {
		t.Fatalf("InsertAttachments: %v", err)
	}
	if err := f.svc.Delete(ctx, 30); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	qr, err := f.svc.QueryVector(ctx, "espresso", 1, 5)
	if err != nil {
		t.Fatalf("QueryVector: %v", err)
	}
	if len(qr.Notes) != 0 {
		t.Errorf("vectors survived delete: %+v", qr.Notes)
	}
}

func TestNoteIDFromDocID(t *testing.T) {
	cases := map[string]int64{
		"42-0":                42,
		"42-att-manual.txt-1": 42,
		"7":                   7,
		"x-1":                 0,
		"":                    0,
	}
	for id, want := range cases {
		if got := noteIDFromDocID(id); got != want {
			t.Errorf("noteIDFromDocID(%q) = %d, want %d", id, got, want)
		}
	}
}
