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

package supervisor

import (
	"context"
	"time"

	"note-platform/internal/queue"
	"note-platform/internal/storage/db"
	"note-platform/pkg/log"
)

// TaskArchive 归档任务名
const TaskArchive = "archive"

// ArchiveJob 每日把超龄普通笔记置为已归档；置顶与回收站笔记不动
type ArchiveJob struct {
	notes db.NoteStore
	days  int
	log   *log.Logger
}

// NewArchiveJob days <= 0 时取 30 天
func NewArchiveJob(notes db.NoteStore, days int, logger *log.Logger) *ArchiveJob {
	if days <= 0 {
		days = 30
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &ArchiveJob{notes: notes, days: days, log: logger.Named("archive")}
}

func (j *ArchiveJob) Name() string         { return TaskArchive }
func (j *ArchiveJob) DefaultCron() string  { return "0 0 * * *" }
func (j *ArchiveJob) SchedulePayload() any { return queue.ArchiveTick{} }

func (j *ArchiveJob) Run(ctx context.Context, _ *queue.Job) error {
	cutoff := time.Now().AddDate(0, 0, -j.days)
	n, err := j.notes.ArchiveOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info("notes archived", "count", n, "cutoff", cutoff)
	}
	return nil
}
