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

// Package notification 通知写入：后台任务与 AI 后处理的完成/失败事件
// 落到 notifications 表，前端按账号拉取
package notification

import (
	"context"
	"fmt"

	"note-platform/internal/storage/db"
	"note-platform/pkg/log"
)

// 通知类型；type 列的取值
const (
	TypeRebuildComplete = "embedding-rebuild-complete"
	TypePostProcessing  = "ai-post-processing-notification"
	TypeBackupComplete  = "backup-complete"
	TypeTaskFailed      = "scheduled-task-failed"
)

// Notifier 通知写入接口
type Notifier interface {
	Notify(ctx context.Context, accountID int64, typ, title, content string, metadata map[string]any) error
}

// Service 基于 NotificationStore 的 Notifier
type Service struct {
	store db.NotificationStore
	log   *log.Logger
}

func NewService(store db.NotificationStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, log: logger.Named("notification")}
}

// Notify 写一条通知；写入失败只记日志，不让任务因通知失败而失败
func (s *Service) Notify(ctx context.Context, accountID int64, typ, title, content string, metadata map[string]any) error {
	n := &db.Notification{
		AccountID: accountID,
		Type:      typ,
		Title:     title,
		Content:   content,
		Metadata:  metadata,
	}
	if _, err := s.store.Create(ctx, n); err != nil {
		s.log.Warn("write notification failed", "type", typ, "account", accountID, "error", err)
		return err
	}
	return nil
}

// RebuildComplete 重建结束通知，携带计数摘要；accountID 0 为系统广播
func RebuildComplete(ctx context.Context, n Notifier, accountID int64, success, failed, skipped int) error {
	return n.Notify(ctx, accountID, TypeRebuildComplete,
		"Embedding rebuild complete",
		fmt.Sprintf("indexed %d, failed %d, skipped %d", success, failed, skipped),
		map[string]any{"success": success, "failed": failed, "skipped": skipped})
}

// PostProcessing AI 后处理结果通知
func PostProcessing(ctx context.Context, n Notifier, accountID, noteID int64, mode, summary string) error {
	return n.Notify(ctx, accountID, TypePostProcessing,
		"AI post-processing finished",
		summary,
		map[string]any{"noteId": noteID, "mode": mode})
}

// Nop 丢弃所有通知；测试与未装配存储时使用
type Nop struct{}

func (Nop) Notify(context.Context, int64, string, string, string, map[string]any) error {
	return nil
}
