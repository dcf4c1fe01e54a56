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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"note-platform/internal/queue"
	"note-platform/internal/storage/cache"
	"note-platform/pkg/errors"
	"note-platform/pkg/log"
)

// TaskDBBackup 备份任务名
const TaskDBBackup = "dbbak"

// backupTables 逻辑导出的表清单；恢复按同一顺序回放以满足引用关系
var backupTables = []string{
	"accounts", "notes", "attachments", "tags", "tags_to_notes", "comments",
	"ai_providers", "ai_models", "ai_scheduled_tasks", "follows",
	"notifications", "conversations", "configs",
}

// serialTables 带 bigserial 主键的表，恢复后重置序列
var serialTables = []string{
	"accounts", "notes", "attachments", "tags", "comments",
	"ai_providers", "ai_models", "ai_scheduled_tasks", "follows",
	"notifications", "conversations",
}

// BackupProgress 写入 ProgressCache 的进度记录
type BackupProgress struct {
	Phase   string `json:"phase"` // export | write | restore | done | error
	Current int    `json:"current"`
	Total   int    `json:"total"`
	File    string `json:"file,omitempty"`
	Message string `json:"message,omitempty"`
}

// backupDocument .bak.json 文件结构
type backupDocument struct {
	Version   int                        `json:"version"`
	CreatedAt time.Time                  `json:"createdAt"`
	Tables    map[string]json.RawMessage `json:"tables"`
}

// DBJob 关系库的逻辑备份与恢复；恢复须显式开启 enableRestore
type DBJob struct {
	pool          *pgxpool.Pool
	progress      cache.Store
	backupDir     string
	enableRestore bool
	log           *log.Logger
}

// NewDBJob backupDir 按需创建
func NewDBJob(pool *pgxpool.Pool, progress cache.Store, backupDir string, enableRestore bool, logger *log.Logger) *DBJob {
	if logger == nil {
		logger = log.Nop()
	}
	return &DBJob{
		pool:          pool,
		progress:      progress,
		backupDir:     backupDir,
		enableRestore: enableRestore,
		log:           logger.Named("dbbak"),
	}
}

func (j *DBJob) Name() string         { return TaskDBBackup }
func (j *DBJob) DefaultCron() string  { return "0 3 * * *" }
func (j *DBJob) SchedulePayload() any { return queue.BackupPayload{Type: "backup"} }

func (j *DBJob) Run(ctx context.Context, job *queue.Job) error {
	var p queue.BackupPayload
	if err := queue.DecodePayload(job, &p); err != nil {
		return err
	}
	switch p.Type {
	case "", "backup":
		_, err := j.Backup(ctx)
		return err
	case "restore":
		return j.Restore(ctx, p.Filename)
	default:
		return errors.Validationf("unknown backup payload type %q", p.Type)
	}
}

func (j *DBJob) setProgress(ctx context.Context, p BackupProgress) {
	if err := j.progress.Set(ctx, cache.KeyBackupProgress, p, 0); err != nil {
		j.log.Warn("write backup progress failed", "error", err)
	}
}

// Backup 导出全部业务表为带时间戳的 .bak.json；返回文件名
func (j *DBJob) Backup(ctx context.Context) (string, error) {
	total := len(backupTables)
	doc := backupDocument{
		Version:   1,
		CreatedAt: time.Now(),
		Tables:    make(map[string]json.RawMessage, total),
	}
	for i, table := range backupTables {
		j.setProgress(ctx, BackupProgress{Phase: "export", Current: i + 1, Total: total})
		var rows []byte
		// 表名来自固定清单，非用户输入
		q := fmt.Sprintf(`SELECT coalesce(jsonb_agg(to_jsonb(t)), '[]'::jsonb) FROM %s t`, table)
		if err := j.pool.QueryRow(ctx, q).Scan(&rows); err != nil {
			j.setProgress(ctx, BackupProgress{Phase: "error", Current: i + 1, Total: total, Message: err.Error()})
			return "", errors.Wrapf(err, "export table %s", table)
		}
		doc.Tables[table] = rows
	}

	j.setProgress(ctx, BackupProgress{Phase: "write", Current: total, Total: total})
	if err := os.MkdirAll(j.backupDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create backup dir")
	}
	filename := fmt.Sprintf("blinko_bak_%s.bak.json", time.Now().Format("20060102T150405"))
	path := filepath.Join(j.backupDir, filename)
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "marshal backup document")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		j.setProgress(ctx, BackupProgress{Phase: "error", Current: total, Total: total, Message: err.Error()})
		return "", errors.Wrap(err, "write backup file")
	}
	j.setProgress(ctx, BackupProgress{Phase: "done", Current: total, Total: total, File: filename})
	j.log.Info("database backup written", "file", filename, "bytes", len(data))
	return filename, nil
}

// ListBackups 备份目录下的 .bak.json 文件名，新的在前
func (j *DBJob) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(j.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read backup dir")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	for i, k := 0, len(names)-1; i < k; i, k = i+1, k-1 {
		names[i], names[k] = names[k], names[i]
	}
	return names, nil
}

// Restore 回放一份备份文件；既有行保留（ON CONFLICT DO NOTHING），
// 序列对齐到最大 id。须配置 tasks.enableRestore
func (j *DBJob) Restore(ctx context.Context, filename string) error {
	if !j.enableRestore {
		return errors.ConfigMissingf("restore disabled: set tasks.enableRestore to allow re-import")
	}
	if filename == "" || filename != filepath.Base(filename) {
		return errors.Validationf("invalid backup filename %q", filename)
	}
	data, err := os.ReadFile(filepath.Join(j.backupDir, filename))
	if err != nil {
		return errors.Wrap(err, "read backup file")
	}
	var doc backupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "decode backup document")
	}

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return errors.WithKind(errors.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	total := len(backupTables)
	for i, table := range backupTables {
		rows, ok := doc.Tables[table]
		if !ok || len(rows) == 0 {
			continue
		}
		j.setProgress(ctx, BackupProgress{Phase: "restore", Current: i + 1, Total: total, File: filename})
		q := fmt.Sprintf(
			`INSERT INTO %s SELECT * FROM jsonb_populate_recordset(NULL::%s, $1) ON CONFLICT DO NOTHING`,
			table, table)
		if _, err := tx.Exec(ctx, q, rows); err != nil {
			j.setProgress(ctx, BackupProgress{Phase: "error", Current: i + 1, Total: total, Message: err.Error()})
			return errors.Wrapf(err, "restore table %s", table)
		}
	}
	for _, table := range serialTables {
		q := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', 'id'), (SELECT coalesce(max(id), 1) FROM %s))`,
			table, table)
		if _, err := tx.Exec(ctx, q); err != nil {
			return errors.Wrapf(err, "reset sequence for %s", table)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.WithKind(errors.ErrStorage, err)
	}
	j.setProgress(ctx, BackupProgress{Phase: "done", Current: total, Total: total, File: filename})
	j.log.Info("database restore completed", "file", filename)
	return nil
}
