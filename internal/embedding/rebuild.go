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
	"context"
	"fmt"
	"strings"
	"time"

	"note-platform/internal/extract"
	"note-platform/internal/notification"
	"note-platform/internal/storage/cache"
	"note-platform/internal/storage/db"
	"note-platform/pkg/errors"
	"note-platform/pkg/retry"
)

// RebuildProgress 重建进度快照；整份 JSON 存入 ProgressCache，
// 字段名与前端约定保持一致。API 进程读它展示进度，也可以把
// isRunning 翻成 false 来跨进程停止 Worker 里的运行。
type RebuildProgress struct {
	Current          int             `json:"current"`
	Total            int             `json:"total"`
	Percentage       int             `json:"percentage"`
	IsRunning        bool            `json:"isRunning"`
	Results          []RebuildResult `json:"results"`
	ProcessedNoteIDs []int64         `json:"processedNoteIds"`
	FailedNoteIDs    []int64         `json:"failedNoteIds"`
	SkippedNoteIDs   []int64         `json:"skippedNoteIds"`
	LastProcessedID  int64           `json:"lastProcessedId,omitempty"`
	RetryCount       int             `json:"retryCount"`
	StartTime        time.Time       `json:"startTime"`
	IsIncremental    bool            `json:"isIncremental"`
	LastUpdate       time.Time       `json:"lastUpdate"`
}

// RebuildResult 进度环里的一条记录
type RebuildResult struct {
	Type      string    `json:"type"` // success | skip | error
	Content   string    `json:"content"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	resultSuccess = "success"
	resultSkip    = "skip"
	resultError   = "error"

	// resultsRingSize 进度环只保留最近这么多条
	resultsRingSize = 50
	// rebuildBatchSize 每批处理的笔记数
	rebuildBatchSize = 5
)

// noteRetryPolicy 单条笔记/附件的重试预算：3 次尝试，1s×次数退避
var noteRetryPolicy = retry.Policy{Attempts: 3, BaseDelay: time.Second, Backoff: retry.BackoffLinear}

// Progress 读取当前进度；缓存里没有记录时返回零值快照
func (s *Service) Progress(ctx context.Context) (*RebuildProgress, error) {
	var p RebuildProgress
	if err := s.cache.Get(ctx, cache.KeyRebuildProgress, &p); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &RebuildProgress{}, nil
		}
		return nil, errors.Wrap(err, "load rebuild progress")
	}
	return &p, nil
}

func (s *Service) saveProgress(ctx context.Context, p *RebuildProgress) error {
	p.LastUpdate = time.Now()
	if p.Total > 0 {
		p.Percentage = p.Current * 100 / p.Total
	}
	return s.cache.Set(ctx, cache.KeyRebuildProgress, p, 0)
}

// appendResult 追加一条记录并收缩进度环
func (p *RebuildProgress) appendResult(r RebuildResult) {
	r.Timestamp = time.Now()
	p.Results = append(p.Results, r)
	if len(p.Results) > resultsRingSize {
		p.Results = p.Results[len(p.Results)-resultsRingSize:]
	}
}

// StopRebuild 请求停止：置进程内强停标记，并把缓存里的 isRunning
// 翻成 false，跨进程的运行也会在下一个检查点停下
func (s *Service) StopRebuild(ctx context.Context) error {
	s.stopFlag.Store(true)
	p, err := s.Progress(ctx)
	if err != nil {
		return err
	}
	if !p.IsRunning {
		return nil
	}
	p.IsRunning = false
	return s.saveProgress(ctx, p)
}

// ResumeRebuild 断点续跑，等价于 ForceRebuild(true, true)
func (s *Service) ResumeRebuild(ctx context.Context) error {
	return s.ForceRebuild(ctx, true, true)
}

// RetryFailedNotes 把失败的笔记重新排进待处理集合并清空失败列表；
// 实际重跑由下一次增量运行完成
func (s *Service) RetryFailedNotes(ctx context.Context) error {
	p, err := s.Progress(ctx)
	if err != nil {
		return err
	}
	if len(p.FailedNoteIDs) == 0 {
		return nil
	}
	failed := make(map[int64]bool, len(p.FailedNoteIDs))
	for _, id := range p.FailedNoteIDs {
		failed[id] = true
	}
	var kept []int64
	for _, id := range p.ProcessedNoteIDs {
		if !failed[id] {
			kept = append(kept, id)
		}
	}
	p.ProcessedNoteIDs = kept
	p.FailedNoteIDs = nil
	s.log.Info("failed notes queued for retry", "count", len(failed))
	return s.saveProgress(ctx, p)
}

// ForceRebuild 重建入口，阻塞到本次运行结束。force 为 true 时抢占
// 进行中的运行：请求停止、等一秒再开始。incremental 为 true 时保留
// 已处理/失败集合续跑并递增 retryCount，否则清空向量索引从头重建。
func (s *Service) ForceRebuild(ctx context.Context, force, incremental bool) error {
	prev, err := s.Progress(ctx)
	if err != nil {
		return err
	}
	if prev.IsRunning {
		if !force {
			s.log.Info("rebuild already running, skipping trigger")
			return nil
		}
		s.stopFlag.Store(true)
		prev.IsRunning = false
		if err := s.saveProgress(ctx, prev); err != nil {
			return err
		}
		time.Sleep(time.Second)
	}

	p := &RebuildProgress{
		IsRunning:     true,
		StartTime:     time.Now(),
		IsIncremental: incremental,
	}
	if incremental {
		p.ProcessedNoteIDs = prev.ProcessedNoteIDs
		p.FailedNoteIDs = prev.FailedNoteIDs
		p.RetryCount = prev.RetryCount + 1
	}
	s.stopFlag.Store(false)
	if err := s.saveProgress(ctx, p); err != nil {
		return err
	}

	if !incremental {
		if err := s.driver.Reset(ctx); err != nil {
			return s.failRun(ctx, p, errors.Wrap(err, "reset vector index"))
		}
	}
	return s.run(ctx, p)
}

// run 主循环：批量过笔记，批间与条间都响应停止请求，每条结束后
// 持久化完整进度。单条失败只入失败集合，不中止整轮。
func (s *Service) run(ctx context.Context, p *RebuildProgress) error {
	var exclude []int64
	if p.IsIncremental {
		exclude = p.ProcessedNoteIDs
	}
	notes, err := s.notes.ListForIndex(ctx, exclude)
	if err != nil {
		return s.failRun(ctx, p, errors.Wrap(err, "list notes for rebuild"))
	}
	p.Total = len(notes)
	p.Current = 0
	if err := s.saveProgress(ctx, p); err != nil {
		return s.failRun(ctx, p, err)
	}
	s.log.Info("rebuild started", "total", p.Total, "incremental", p.IsIncremental, "retryCount", p.RetryCount)

	var success, failed, skipped int
	for start := 0; start < len(notes); start += rebuildBatchSize {
		stopped, err := s.shouldStop(ctx)
		if err != nil {
			return s.failRun(ctx, p, err)
		}
		if stopped {
			return s.stopRun(ctx, p)
		}

		end := start + rebuildBatchSize
		if end > len(notes) {
			end = len(notes)
		}
		for _, note := range notes[start:end] {
			stopped, err := s.shouldStop(ctx)
			if err != nil {
				return s.failRun(ctx, p, err)
			}
			if stopped {
				return s.stopRun(ctx, p)
			}

			switch s.processNote(ctx, p, note) {
			case resultSuccess:
				success++
			case resultSkip:
				skipped++
			case resultError:
				failed++
			}
			p.Current++
			p.LastProcessedID = note.ID

			// 保存前再看一眼，避免把外部翻掉的 isRunning 盖回去
			stopped, err = s.shouldStop(ctx)
			if err != nil {
				return s.failRun(ctx, p, err)
			}
			if stopped {
				return s.stopRun(ctx, p)
			}
			if err := s.saveProgress(ctx, p); err != nil {
				return s.failRun(ctx, p, errors.Wrap(err, "persist rebuild progress"))
			}
		}
	}

	p.IsRunning = false
	p.Percentage = 100
	if err := s.saveProgress(ctx, p); err != nil {
		return s.failRun(ctx, p, errors.Wrap(err, "persist final progress"))
	}
	_ = notification.RebuildComplete(ctx, s.notifier, 0, success, failed, skipped)
	s.log.Info("rebuild complete", "success", success, "failed", failed, "skipped", skipped)
	return nil
}

// processNote 处理单条笔记：正文经 Upsert，非图片附件逐个入索引，
// 图片附件在重建模式下跳过。返回 success/skip/error 之一。
func (s *Service) processNote(ctx context.Context, p *RebuildProgress, note *db.Note) string {
	var failure error
	var res *Result

	hasContent := strings.TrimSpace(note.Content) != ""
	if hasContent {
		failure = noteRetryPolicy.Do(ctx, func(ctx context.Context) error {
			r, err := s.Upsert(ctx, note.ID, note.Content, OpUpdate, note.CreatedAt, note.UpdatedAt)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
	}

	if failure == nil && s.attachments != nil && s.blobs != nil {
		atts, err := s.attachments.ListByNote(ctx, note.ID)
		if err != nil {
			failure = errors.Wrapf(err, "list attachments for note %d", note.ID)
		}
		for _, att := range atts {
			if failure != nil {
				break
			}
			if extract.IsImage(att.Path) {
				// 重建不回填图片描述，与实时插入保持不对称
				continue
			}
			path := att.Path
			err := noteRetryPolicy.Do(ctx, func(ctx context.Context) error {
				_, err := s.InsertAttachments(ctx, note.ID, path, note.UpdatedAt)
				return err
			})
			if err != nil {
				failure = errors.Wrapf(err, "attachment %s", path)
			}
		}
	}

	preview := notePreview(note)
	switch {
	case failure != nil:
		p.FailedNoteIDs = appendUnique(p.FailedNoteIDs, note.ID)
		p.appendResult(RebuildResult{Type: resultError, Content: preview, Error: failure.Error()})
		s.log.Warn("note rebuild failed", "note", note.ID, "error", failure)
		return resultError
	case !hasContent:
		p.SkippedNoteIDs = appendUnique(p.SkippedNoteIDs, note.ID)
		p.ProcessedNoteIDs = appendUnique(p.ProcessedNoteIDs, note.ID)
		p.appendResult(RebuildResult{Type: resultSkip, Content: preview, Error: "empty content"})
		return resultSkip
	case res != nil && !res.OK:
		p.SkippedNoteIDs = appendUnique(p.SkippedNoteIDs, note.ID)
		p.ProcessedNoteIDs = appendUnique(p.ProcessedNoteIDs, note.ID)
		p.appendResult(RebuildResult{Type: resultSkip, Content: preview, Error: res.Reason})
		return resultSkip
	default:
		p.ProcessedNoteIDs = appendUnique(p.ProcessedNoteIDs, note.ID)
		p.appendResult(RebuildResult{Type: resultSuccess, Content: preview})
		return resultSuccess
	}
}

// shouldStop 停止条件：ctx 取消、进程内强停标记、或缓存里的
// isRunning 已被外部翻成 false
func (s *Service) shouldStop(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return true, nil
	}
	if s.stopFlag.Load() {
		return true, nil
	}
	cur, err := s.Progress(ctx)
	if err != nil {
		return false, err
	}
	return !cur.IsRunning, nil
}

// stopRun 保存停止快照；isIncremental 置 true 让下一次运行续跑
func (s *Service) stopRun(ctx context.Context, p *RebuildProgress) error {
	p.IsRunning = false
	p.IsIncremental = true
	if err := s.saveProgress(ctx, p); err != nil {
		return err
	}
	s.log.Info("rebuild stopped", "current", p.Current, "total", p.Total)
	return nil
}

// failRun 持久化带错误尾巴的停止快照，然后把错误原样抛回
func (s *Service) failRun(ctx context.Context, p *RebuildProgress, err error) error {
	p.IsRunning = false
	p.appendResult(RebuildResult{Type: resultError, Content: "rebuild aborted", Error: err.Error()})
	if saveErr := s.saveProgress(ctx, p); saveErr != nil {
		s.log.Error("persist aborted rebuild state failed", "error", saveErr)
	}
	return err
}

// notePreview 进度环里展示的内容摘要
func notePreview(n *db.Note) string {
	text := strings.TrimSpace(n.Content)
	runes := []rune(text)
	if len(runes) > 30 {
		text = string(runes[:30]) + "..."
	}
	if text == "" {
		return fmt.Sprintf("note %d", n.ID)
	}
	return fmt.Sprintf("note %d: %s", n.ID, text)
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
