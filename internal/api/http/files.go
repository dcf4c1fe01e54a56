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
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"note-platform/internal/storage/db"
)

// uploadFile multipart 上传：文件名经 PathGuard 收敛后写入 BlobStore，
// 附件行记录 web 路径；noteId 可选，带上即绑定
func (s *Server) uploadFile(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}

	rel := fmt.Sprintf("upload/%s_%s", uuid.NewString()[:8], path.Base(header.Filename))
	if _, err := s.guard.ValidateRelPath(rel, false); err != nil {
		s.fail(c, err)
		return
	}

	data, err := readMultipart(header)
	if err != nil {
		s.fail(c, err)
		return
	}
	webPath, err := s.blobs.UploadFile(ctx, rel, data)
	if err != nil {
		s.fail(c, err)
		return
	}

	att := &db.Attachment{
		OwnerID:   accountID,
		Path:      webPath,
		Name:      header.Filename,
		Size:      header.Size,
		Type:      header.Header.Get("Content-Type"),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if noteID := noteIDForm(c); noteID > 0 {
		att.NoteID = noteID
	}
	if _, err := s.attachments.Create(ctx, att); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, att)
}

func readMultipart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func noteIDForm(c *app.RequestContext) int64 {
	var id int64
	fmt.Sscanf(string(c.FormValue("noteId")), "%d", &id)
	return id
}

type deleteFileRequest struct {
	AttachmentPath string `json:"attachment_path"`
}

func (s *Server) deleteFile(ctx context.Context, c *app.RequestContext) {
	accountID, authed := requireAccount(ctx, c)
	if !authed {
		return
	}
	var req deleteFileRequest
	if err := c.BindJSON(&req); err != nil || req.AttachmentPath == "" {
		badRequest(c, "attachment_path is required")
		return
	}
	rel := strings.TrimPrefix(req.AttachmentPath, "/file/")
	if _, err := s.guard.ValidateRelPath(rel, false); err != nil {
		s.fail(c, err)
		return
	}

	att, err := s.attachments.GetByPath(ctx, req.AttachmentPath)
	if err != nil {
		s.fail(c, err)
		return
	}
	if att != nil && att.OwnerID != accountID {
		c.JSON(consts.StatusForbidden, errorBody("attachment not owned by caller"))
		return
	}

	if err := s.blobs.DeleteFile(ctx, rel); err != nil {
		s.fail(c, err)
		return
	}
	if att != nil {
		if err := s.attachments.Delete(ctx, att.ID); err != nil {
			s.fail(c, err)
			return
		}
	}
	ok(c, nil)
}

// serveFile 本地对象的直出通道；路径强制过 PathGuard
func (s *Server) serveFile(_ context.Context, c *app.RequestContext) {
	rel := strings.TrimPrefix(c.Param("filepath"), "/")
	abs, err := s.guard.ValidateAndResolvePath(rel, false)
	if err != nil {
		c.JSON(consts.StatusBadRequest, errorBody("invalid file path"))
		return
	}
	c.File(abs)
}
