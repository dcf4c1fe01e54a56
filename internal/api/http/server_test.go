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
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/hertz/pkg/common/ut"
	jwtlib "github.com/golang-jwt/jwt/v4"

	"note-platform/internal/agent"
	"note-platform/internal/embedding"
	"note-platform/internal/model"
	"note-platform/internal/queue"
	"note-platform/internal/storage/cache"
	"note-platform/internal/storage/db"
	"note-platform/internal/storage/object"
	"note-platform/internal/supervisor"
	"note-platform/pkg/config"
)

const testSecret = "test-secret"

type fakeAssistant struct {
	lastReq agent.CompletionsRequest
	events  []agent.Event
}

func (f *fakeAssistant) Completions(_ context.Context, req agent.CompletionsRequest) (<-chan agent.Event, error) {
	f.lastReq = req
	ch := make(chan agent.Event, len(f.events)+1)
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeAssistant) PostProcessNote(context.Context, int64) error { return nil }

func (f *fakeAssistant) Tools(context.Context) []tool.BaseTool { return nil }

type fakeIndex struct {
	upserts int
	deletes int
}

func (f *fakeIndex) Upsert(context.Context, int64, string, embedding.Op, time.Time, time.Time) (*embedding.Result, error) {
	f.upserts++
	return &embedding.Result{OK: true}, nil
}

func (f *fakeIndex) InsertAttachments(context.Context, int64, string, time.Time) (*embedding.Result, error) {
	return &embedding.Result{OK: true}, nil
}

func (f *fakeIndex) Delete(context.Context, int64) error { f.deletes++; return nil }

func (f *fakeIndex) Progress(context.Context) (*embedding.RebuildProgress, error) {
	return &embedding.RebuildProgress{}, nil
}

func (f *fakeIndex) StopRebuild(context.Context) error      { return nil }
func (f *fakeIndex) RetryFailedNotes(context.Context) error { return nil }

type fakeTasks struct {
	created []string
	runs    []int64
}

func (f *fakeTasks) List(context.Context, int64) ([]*db.ScheduledTask, error) { return nil, nil }

func (f *fakeTasks) Create(_ context.Context, ownerID int64, name, prompt, cron string) (*db.ScheduledTask, error) {
	f.created = append(f.created, name)
	return &db.ScheduledTask{ID: 1, OwnerID: ownerID, Name: name, Prompt: prompt, Cron: cron, Enabled: true}, nil
}

func (f *fakeTasks) Delete(context.Context, int64, int64) error           { return nil }
func (f *fakeTasks) SetEnabled(context.Context, int64, int64, bool) error { return nil }

func (f *fakeTasks) RunNow(_ context.Context, _ int64, id int64) (string, error) {
	f.runs = append(f.runs, id)
	return "job-1", nil
}

type fakeModels struct{}

func (fakeModels) TestConnection(context.Context, int64, string, db.Capabilities) (map[string]model.CapabilityResult, error) {
	return map[string]model.CapabilityResult{"inference": {Success: true}}, nil
}

func (fakeModels) FetchProviderModels(context.Context, int64) ([]model.ModelInfo, error) {
	return []model.ModelInfo{{Name: "gpt-test"}}, nil
}

type testEnv struct {
	srv       *Server
	notes     *db.NoteStoreMem
	queue     *queue.Memory
	assistant *fakeAssistant
	index     *fakeIndex
	tasks     *fakeTasks
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	notes := db.NewNoteStoreMem()
	memq := queue.NewMemory(queue.Config{})
	guard, err := object.NewPathGuard(t.TempDir(), ".temp")
	if err != nil {
		t.Fatalf("NewPathGuard: %v", err)
	}

	registry := supervisor.NewRegistry(supervisor.Deps{
		Queue:            memq,
		Notes:            notes,
		Follows:          db.NewFollowStoreMem(),
		Tasks:            db.NewScheduledTaskStoreMem(),
		Cache:            cache.NewMemoryStore(),
		AutoArchivedDays: 90,
		BackupDir:        t.TempDir(),
	})

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret

	env := &testEnv{
		notes:     notes,
		queue:     memq,
		assistant: &fakeAssistant{},
		index:     &fakeIndex{},
		tasks:     &fakeTasks{},
	}
	srv, err := New(Deps{
		Config:      cfg,
		Notes:       notes,
		Attachments: db.NewAttachmentStoreMem(),
		Assistant:   env.assistant,
		Index:       env.index,
		Tasks:       env.tasks,
		Models:      fakeModels{},
		Registry:    registry,
		Queue:       memq,
		Blobs:       object.NewLocalStore(guard),
		Guard:       guard,
	})
	if err != nil {
		t.Fatalf("New server: %v", err)
	}
	env.srv = srv
	return env
}

func bearer(t *testing.T, accountID int64) ut.Header {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"accountId": accountID,
		"name":      "tester",
		"role":      "user",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return ut.Header{Key: "Authorization", Value: "Bearer " + signed}
}

func jsonBody(t *testing.T, v any) *ut.Body {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return &ut.Body{Body: bytes.NewReader(raw), Len: len(raw)}
}

func TestRoutesRequireAuth(t *testing.T) {
	env := newTestServer(t)
	body := []byte(`{}`)
	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/notes/list",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	if w.Result().StatusCode() != 401 {
		t.Fatalf("unauthenticated request: status %d, want 401", w.Result().StatusCode())
	}
}

func TestNoteLifecycle(t *testing.T) {
	env := newTestServer(t)
	auth := bearer(t, 1)
	ct := ut.Header{Key: "Content-Type", Value: "application/json"}

	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/notes/upsert",
		jsonBody(t, map[string]any{"content": "buy oat milk"}), auth, ct)
	if w.Result().StatusCode() != 200 {
		t.Fatalf("upsert: status %d body %s", w.Result().StatusCode(), w.Result().Body())
	}

	w = ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/notes/list",
		jsonBody(t, map[string]any{"searchText": "oat"}), auth, ct)
	if w.Result().StatusCode() != 200 || !bytes.Contains(w.Result().Body(), []byte("buy oat milk")) {
		t.Fatalf("list: status %d body %s", w.Result().StatusCode(), w.Result().Body())
	}

	rows, _ := env.notes.List(context.Background(), 1, db.NoteFilter{})
	if len(rows) != 1 {
		t.Fatalf("store rows = %d", len(rows))
	}
	w = ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/notes/trash-many",
		jsonBody(t, map[string]any{"ids": []int64{rows[0].ID}}), auth, ct)
	if w.Result().StatusCode() != 200 {
		t.Fatalf("trash-many: status %d", w.Result().StatusCode())
	}
	got, _ := env.notes.Get(context.Background(), rows[0].ID)
	if !got.IsRecycle {
		t.Fatal("note not trashed")
	}
}

func TestNoteUpsertRejectsForeignNote(t *testing.T) {
	env := newTestServer(t)
	n := &db.Note{OwnerID: 2, Content: "theirs", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if _, err := env.notes.Upsert(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/notes/upsert",
		jsonBody(t, map[string]any{"id": n.ID, "content": "hijacked"}),
		bearer(t, 1), ut.Header{Key: "Content-Type", Value: "application/json"})
	if w.Result().StatusCode() != 401 {
		t.Fatalf("foreign upsert: status %d, want 401", w.Result().StatusCode())
	}
}

func TestRebuildStartIsSingleton(t *testing.T) {
	env := newTestServer(t)
	auth := bearer(t, 1)
	ct := ut.Header{Key: "Content-Type", Value: "application/json"}

	for range 2 {
		w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/ai/rebuild/start",
			jsonBody(t, map[string]any{"force": true, "incremental": false}), auth, ct)
		if w.Result().StatusCode() != 200 {
			t.Fatalf("rebuild start: status %d body %s", w.Result().StatusCode(), w.Result().Body())
		}
	}
	if jobs := env.queue.Jobs(supervisor.TaskRebuildEmbedding); len(jobs) != 1 {
		t.Fatalf("rebuild jobs = %d, want 1 (singleton)", len(jobs))
	}
}

func TestTasksUpsertControlsSupervisor(t *testing.T) {
	env := newTestServer(t)
	auth := bearer(t, 1)
	ct := ut.Header{Key: "Content-Type", Value: "application/json"}

	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/tasks/upsert",
		jsonBody(t, map[string]any{"task": "archive", "type": "start", "time": "0 2 * * *"}), auth, ct)
	if w.Result().StatusCode() != 200 {
		t.Fatalf("start archive: status %d body %s", w.Result().StatusCode(), w.Result().Body())
	}
	if !bytes.Contains(w.Result().Body(), []byte("scheduled")) {
		t.Fatalf("start archive body: %s", w.Result().Body())
	}

	w = ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/tasks/upsert",
		jsonBody(t, map[string]any{"task": "archive", "type": "stop"}), auth, ct)
	if w.Result().StatusCode() != 200 {
		t.Fatalf("stop archive: status %d", w.Result().StatusCode())
	}

	w = ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/tasks/upsert",
		jsonBody(t, map[string]any{"task": "rebuild", "type": "start"}), auth, ct)
	if w.Result().StatusCode() != 400 {
		t.Fatalf("unknown task: status %d, want 400", w.Result().StatusCode())
	}
}

func TestCompletionsPassesFlags(t *testing.T) {
	env := newTestServer(t)
	env.assistant.events = []agent.Event{{Kind: agent.EventDone}}

	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/ai/completions",
		jsonBody(t, map[string]any{"question": "hi", "withRAG": true, "withTools": true}),
		bearer(t, 1), ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("completions: status %d body %s", resp.StatusCode(), resp.Body())
	}
	if ctype := string(resp.Header.ContentType()); !strings.HasPrefix(ctype, "text/event-stream") {
		t.Fatalf("content type = %q", ctype)
	}
	if env.assistant.lastReq.Question != "hi" || !env.assistant.lastReq.WithRAG || !env.assistant.lastReq.WithTools {
		t.Fatalf("assistant request = %+v", env.assistant.lastReq)
	}
}

func TestWriteSSEFraming(t *testing.T) {
	var buf bytes.Buffer
	writeSSE(&buf, "chunk", map[string]string{"content": "hello"})
	want := "event: chunk\ndata: {\"content\":\"hello\"}\n\n"
	if buf.String() != want {
		t.Fatalf("frame = %q, want %q", buf.String(), want)
	}
}

func TestAITaskCreateAndRun(t *testing.T) {
	env := newTestServer(t)
	auth := bearer(t, 1)
	ct := ut.Header{Key: "Content-Type", Value: "application/json"}

	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/ai-tasks",
		jsonBody(t, map[string]any{"name": "digest", "prompt": "summarize", "cron": "0 9 * * *"}), auth, ct)
	if w.Result().StatusCode() != 200 {
		t.Fatalf("create: status %d body %s", w.Result().StatusCode(), w.Result().Body())
	}
	if len(env.tasks.created) != 1 || env.tasks.created[0] != "digest" {
		t.Fatalf("created = %v", env.tasks.created)
	}

	w = ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/ai-tasks/1/run", nil, auth, ct)
	if w.Result().StatusCode() != 200 {
		t.Fatalf("run: status %d", w.Result().StatusCode())
	}
	if len(env.tasks.runs) != 1 || env.tasks.runs[0] != 1 {
		t.Fatalf("runs = %v", env.tasks.runs)
	}
}

func TestFileUploadAndTraversalRejected(t *testing.T) {
	env := newTestServer(t)
	auth := bearer(t, 1)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("attachment body"))
	mw.Close()

	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/files/upload",
		&ut.Body{Body: bytes.NewReader(buf.Bytes()), Len: buf.Len()},
		auth, ut.Header{Key: "Content-Type", Value: mw.FormDataContentType()})
	if w.Result().StatusCode() != 200 {
		t.Fatalf("upload: status %d body %s", w.Result().StatusCode(), w.Result().Body())
	}

	w = ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/api/v1/files/delete",
		jsonBody(t, map[string]any{"attachment_path": "../../etc/passwd"}),
		auth, ut.Header{Key: "Content-Type", Value: "application/json"})
	if w.Result().StatusCode() != 400 {
		t.Fatalf("traversal delete: status %d, want 400", w.Result().StatusCode())
	}
}

func TestMCPUnknownSession(t *testing.T) {
	env := newTestServer(t)
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/messages?sessionId=nope",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	if w.Result().StatusCode() != 404 {
		t.Fatalf("unknown session: status %d, want 404", w.Result().StatusCode())
	}
}

func TestMCPMessageFlow(t *testing.T) {
	env := newTestServer(t)
	sess := &mcpSession{id: "s1", frames: make(chan string, 4)}
	env.srv.mcp.add(sess)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	w := ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/messages?sessionId=s1",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	if w.Result().StatusCode() != 202 {
		t.Fatalf("initialize: status %d, want 202", w.Result().StatusCode())
	}
	select {
	case frame := <-sess.frames:
		if !strings.Contains(frame, "protocolVersion") {
			t.Fatalf("initialize frame = %q", frame)
		}
	default:
		t.Fatal("no response frame pushed")
	}

	body = []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	w = ut.PerformRequest(env.srv.Hertz().Engine, "POST", "/messages?sessionId=s1",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)})
	if w.Result().StatusCode() != 202 {
		t.Fatalf("tools/list: status %d", w.Result().StatusCode())
	}
	select {
	case frame := <-sess.frames:
		if !strings.Contains(frame, `"tools"`) {
			t.Fatalf("tools/list frame = %q", frame)
		}
	default:
		t.Fatal("no tools/list frame pushed")
	}
}
