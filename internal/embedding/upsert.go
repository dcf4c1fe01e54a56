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
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"note-platform/internal/extract"
	"note-platform/internal/model/vision"
	"note-platform/internal/storage/db"
	"note-platform/internal/storage/object"
	"note-platform/internal/storage/vector"
	"note-platform/pkg/errors"
)

// ReasonExcluded 笔记命中排除标签
const ReasonExcluded = "excluded"

// Upsert 写入或更新一条笔记的向量。排除标签命中时不产生任何副作用；
// op 为 update 时先删旧向量再写新切片；成功后置 metadata.isIndexed。
func (s *Service) Upsert(ctx context.Context, noteID int64, content string, op Op, createdAt, updatedAt time.Time) (*Result, error) {
	excluded, err := s.isExcluded(ctx, content)
	if err != nil {
		return nil, err
	}
	if excluded {
		return &Result{Reason: ReasonExcluded}, nil
	}

	chunks, err := s.splitChunks(content)
	if err != nil {
		return nil, errors.Wrapf(err, "split note %d", noteID)
	}

	if op == OpUpdate {
		if err := s.driver.DeleteNote(ctx, noteID); err != nil {
			return nil, errors.Wrapf(err, "delete stale vectors for note %d", noteID)
		}
	}

	suffix := fmt.Sprintf("\n\nCreate At: %s Update At: %s",
		createdAt.Format(time.RFC3339), updatedAt.Format(time.RFC3339))
	docs := make([]chunkDoc, 0, len(chunks))
	for i, c := range chunks {
		text := c.Content + suffix
		docs = append(docs, chunkDoc{
			ID:   noteDocID(noteID, i),
			Text: text,
			Metadata: map[string]string{
				vector.MetaText:       text,
				vector.MetaNoteID:     strconv.FormatInt(noteID, 10),
				vector.MetaCreateTime: createdAt.Format(time.RFC3339),
				vector.MetaUpdatedAt:  updatedAt.Format(time.RFC3339),
			},
		})
	}
	if err := s.driver.AddChunks(ctx, docs); err != nil {
		return nil, errors.Wrapf(err, "index note %d", noteID)
	}
	if err := s.notes.SetMetadataFlag(ctx, noteID, db.MetaIsIndexed, true); err != nil {
		return nil, errors.Wrapf(err, "mark note %d indexed", noteID)
	}
	s.log.Debug("note indexed", "note", noteID, "chunks", len(docs), "op", string(op))
	return &Result{OK: true}, nil
}

// isExcluded 排除标签名出现在正文里即排除
func (s *Service) isExcluded(ctx context.Context, content string) (bool, error) {
	tagID := s.cfg.AI.ExcludeEmbeddingTag
	if tagID <= 0 || s.tags == nil {
		return false, nil
	}
	tag, err := s.tags.Get(ctx, tagID)
	if err != nil {
		return false, errors.Wrap(err, "load exclude tag")
	}
	if tag == nil || tag.Name == "" {
		return false, nil
	}
	return strings.Contains(content, tag.Name), nil
}

// InsertAttachments 把一个附件的内容写入索引：对象存储物化为本地
// 文件（临时文件无条件清理），图片走视觉描述，其余走文档抽取；
// 成功后置 metadata.isAttachmentsIndexed。视觉模型不收图时记为
// 跳过，不写向量，标记保持原样。
func (s *Service) InsertAttachments(ctx context.Context, noteID int64, filePath string, updatedAt time.Time) (*Result, error) {
	if s.blobs == nil {
		return nil, errors.ConfigMissingf("blob store not configured")
	}
	handle, err := s.blobs.GetFile(ctx, filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "materialize %s", filePath)
	}
	defer func() {
		if handle.Cleanup != nil {
			handle.Cleanup()
		}
	}()

	var text string
	if extract.IsImage(handle.LocalPath) {
		vc, err := s.models.VisionModelByID(ctx, s.cfg.AI.ImageModelID)
		if err != nil {
			return nil, err
		}
		caption, err := extract.CaptionImage(ctx, vc, handle.LocalPath)
		if err != nil {
			return nil, errors.Wrapf(err, "caption %s", filePath)
		}
		if caption == vision.NotSupported {
			s.log.Info("vision model does not accept images, skipping attachment", "file", filePath)
			return &Result{Reason: vision.NotSupported}, nil
		}
		text = caption
	} else {
		text, err = s.extract.ExtractFile(ctx, handle.LocalPath)
		if err != nil {
			return nil, err
		}
	}

	chunks, err := s.splitChunks(text)
	if err != nil {
		return nil, errors.Wrapf(err, "split attachment %s", filePath)
	}
	suffix := fmt.Sprintf("\n\nUpdate At: %s", updatedAt.Format(time.RFC3339))
	name := filepath.Base(object.NormalizeWebPath(filePath))
	docs := make([]chunkDoc, 0, len(chunks))
	for i, c := range chunks {
		text := c.Content + suffix
		docs = append(docs, chunkDoc{
			ID:   attachmentDocID(noteID, name, i),
			Text: text,
			Metadata: map[string]string{
				vector.MetaText:         text,
				vector.MetaNoteID:       strconv.FormatInt(noteID, 10),
				vector.MetaUpdatedAt:    updatedAt.Format(time.RFC3339),
				vector.MetaIsAttachment: "true",
				vector.MetaFilePath:     filePath,
			},
		})
	}
	if err := s.driver.AddChunks(ctx, docs); err != nil {
		return nil, errors.Wrapf(err, "index attachment %s", filePath)
	}
	if err := s.notes.SetMetadataFlag(ctx, noteID, db.MetaIsAttachmentsIndexed, true); err != nil {
		return nil, errors.Wrapf(err, "mark note %d attachments indexed", noteID)
	}
	s.log.Debug("attachment indexed", "note", noteID, "file", filePath, "chunks", len(docs))
	return &Result{OK: true}, nil
}

// Delete 删除笔记的全部向量记录（含附件切片）
func (s *Service) Delete(ctx context.Context, noteID int64) error {
	if err := s.driver.DeleteNote(ctx, noteID); err != nil {
		return errors.Wrapf(err, "delete vectors for note %d", noteID)
	}
	return nil
}
