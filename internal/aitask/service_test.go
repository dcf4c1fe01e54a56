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

package aitask

import (
	"context"
	"testing"

	"note-platform/internal/queue"
	"note-platform/internal/storage/db"
	"note-platform/internal/supervisor"
	"note-platform/pkg/errors"
)

func newService(t *testing.T) (*Service, *queue.Memory, db.ScheduledTaskStore, *supervisor.AIScheduledTaskJob) {
	t.Helper()
	q := queue.NewMemory(queue.DefaultConfig())
	tasks := db.NewScheduledTaskStoreMem()
	fanout := supervisor.NewAIScheduledTaskJob(tasks, q, nil, nil)
	return NewService(tasks, q, fanout, nil), q, tasks, fanout
}

func TestCreateSchedulesPerTaskQueue(t *testing.T) {
	s, q, _, _ := newService(t)
	ctx := context.Background()

	task, err := s.Create(ctx, 7, "Daily summary", "Summarize my last 24h notes.", "0 10 * * *")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !task.Enabled {
		t.Fatal("new task should be enabled")
	}
	sched, err := q.GetSchedule(ctx, supervisor.PerTaskQueue(task.ID))
	if err != nil || sched == nil {
		t.Fatalf("per-task schedule missing: %v", err)
	}
	if sched.Cron != "0 10 * * *" {
		t.Fatalf("cron = %q", sched.Cron)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	s, _, _, _ := newService(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, 7, "", "p", "0 10 * * *"); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := s.Create(ctx, 7, "n", "", "0 10 * * *"); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("empty prompt: %v", err)
	}
	if _, err := s.Create(ctx, 7, "n", "p", "not-a-cron"); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("bad cron: %v", err)
	}
}

func TestToggleKeepsScheduleInSync(t *testing.T) {
	s, q, _, _ := newService(t)
	ctx := context.Background()

	task, err := s.Create(ctx, 7, "nightly", "tidy up", "0 2 * * *")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetEnabled(ctx, 7, task.ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if sched, _ := q.GetSchedule(ctx, supervisor.PerTaskQueue(task.ID)); sched != nil {
		t.Fatal("disabled task must not keep a schedule row")
	}
	if err := s.SetEnabled(ctx, 7, task.ID, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if sched, _ := q.GetSchedule(ctx, supervisor.PerTaskQueue(task.ID)); sched == nil {
		t.Fatal("enabled task must have a schedule row")
	}
}

func TestDeleteTearsDownSchedule(t *testing.T) {
	s, q, tasks, _ := newService(t)
	ctx := context.Background()

	task, err := s.Create(ctx, 7, "weekly", "report", "0 9 * * 1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, 7, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if sched, _ := q.GetSchedule(ctx, supervisor.PerTaskQueue(task.ID)); sched != nil {
		t.Fatal("schedule row survived delete")
	}
	if got, _ := tasks.Get(ctx, task.ID); got != nil {
		t.Fatal("task row survived delete")
	}
}

func TestRunNowEnqueuesSharedQueue(t *testing.T) {
	s, q, _, _ := newService(t)
	ctx := context.Background()

	task, err := s.Create(ctx, 7, "now", "do it", "0 10 * * *")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	jobID, err := s.RunNow(ctx, 7, task.ID)
	if err != nil || jobID == "" {
		t.Fatalf("run now: id=%q err=%v", jobID, err)
	}
	jobs := q.Jobs(supervisor.TaskAISchedule)
	if len(jobs) != 1 {
		t.Fatalf("shared queue jobs = %d", len(jobs))
	}
	var p queue.AITaskPayload
	if err := queue.DecodePayload(jobs[0], &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.TaskID != task.ID || p.OwnerID != 7 || p.Prompt != "do it" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	s, _, _, _ := newService(t)
	ctx := context.Background()

	task, err := s.Create(ctx, 7, "mine", "p", "0 10 * * *")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.RunNow(ctx, 8, task.ID); !errors.Is(err, errors.ErrAuthFailed) {
		t.Fatalf("foreign run now: %v", err)
	}
	if err := s.Delete(ctx, 8, task.ID); !errors.Is(err, errors.ErrAuthFailed) {
		t.Fatalf("foreign delete: %v", err)
	}
	if err := s.SetEnabled(ctx, 8, task.ID, false); !errors.Is(err, errors.ErrAuthFailed) {
		t.Fatalf("foreign toggle: %v", err)
	}
}

func TestDeleteByName(t *testing.T) {
	s, _, tasks, _ := newService(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, 7, "morning brief", "p", "0 8 * * *"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteByName(ctx, 7, "morning brief"); err != nil {
		t.Fatalf("delete by name: %v", err)
	}
	rows, _ := tasks.ListByOwner(ctx, 7)
	if len(rows) != 0 {
		t.Fatalf("rows left = %d", len(rows))
	}
	if err := s.DeleteByName(ctx, 7, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("missing name: %v", err)
	}
}
