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

package object

import (
	"context"
	"os"
	"strings"
	"testing"

	"note-platform/pkg/errors"
)

func newLocalForTest(t *testing.T) *LocalStore {
	t.Helper()
	return NewLocalStore(newGuardForTest(t))
}

func TestLocalStore_UploadAndRead(t *testing.T) {
	ctx := context.Background()
	s := newLocalForTest(t)

	web, err := s.UploadFile(ctx, "notes/a.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if web != WebPathLocal+"notes/a.txt" {
		t.Errorf("web path = %q", web)
	}

	// 读取接受 web 路径与裸相对路径两种写法
	for _, p := range []string{web, "notes/a.txt"} {
		data, err := s.GetFileBuffer(ctx, p)
		if err != nil {
			t.Fatalf("GetFileBuffer(%q): %v", p, err)
		}
		if string(data) != "hello" {
			t.Errorf("GetFileBuffer(%q) = %q", p, data)
		}
	}

	h, err := s.GetFile(ctx, web)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if h.IsTemporary {
		t.Error("local GetFile should not be temporary")
	}
	if got, _ := os.ReadFile(h.LocalPath); string(got) != "hello" {
		t.Errorf("LocalPath content = %q", got)
	}
}

func TestLocalStore_UploadStream(t *testing.T) {
	ctx := context.Background()
	s := newLocalForTest(t)

	web, err := s.UploadFileStream(ctx, "docs/big.bin", strings.NewReader("streamed"), int64(len("streamed")))
	if err != nil {
		t.Fatalf("UploadFileStream: %v", err)
	}
	data, err := s.GetFileBuffer(ctx, web)
	if err != nil {
		t.Fatalf("GetFileBuffer: %v", err)
	}
	if string(data) != "streamed" {
		t.Errorf("content = %q", data)
	}
}

func TestLocalStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := newLocalForTest(t)

	if _, err := s.GetFile(ctx, "nope.txt"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetFile missing: want ErrNotFound, got %v", err)
	}
	if _, err := s.GetFileBuffer(ctx, "nope.txt"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetFileBuffer missing: want ErrNotFound, got %v", err)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newLocalForTest(t)

	if _, err := s.GetFileBuffer(ctx, "../etc/passwd"); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("traversal read: want validation error, got %v", err)
	}
	if _, err := s.UploadFile(ctx, "a/../b", []byte("x")); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("traversal write: want validation error, got %v", err)
	}
}

func TestLocalStore_DeleteAndRename(t *testing.T) {
	ctx := context.Background()
	s := newLocalForTest(t)

	if _, err := s.UploadFile(ctx, "notes/old.txt", []byte("v1")); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	web, err := s.RenameFile(ctx, "notes/old.txt", "notes/new.txt")
	if err != nil {
		t.Fatalf("RenameFile: %v", err)
	}
	if web != WebPathLocal+"notes/new.txt" {
		t.Errorf("renamed web path = %q", web)
	}
	if _, err := s.GetFileBuffer(ctx, "notes/old.txt"); !errors.Is(err, errors.ErrNotFound) {
		t.Error("old path should be gone after rename")
	}

	if err := s.DeleteFile(ctx, web); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := s.DeleteFile(ctx, web); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("double delete: want ErrNotFound, got %v", err)
	}
}

func TestLocalStore_MoveOutOfTemp(t *testing.T) {
	ctx := context.Background()
	s := newLocalForTest(t)

	if _, err := s.UploadFile(ctx, "temp/upload-1.png", []byte("img")); err != nil {
		t.Fatalf("upload to temp: %v", err)
	}
	web, err := s.MoveFile(ctx, "temp/upload-1.png", "images/upload-1.png")
	if err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	data, err := s.GetFileBuffer(ctx, web)
	if err != nil || string(data) != "img" {
		t.Fatalf("GetFileBuffer after move: %q, %v", data, err)
	}

	// 目标落在临时目录的移动拒绝
	if _, err := s.UploadFile(ctx, "images/b.png", []byte("x")); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if _, err := s.MoveFile(ctx, "images/b.png", "temp/b.png"); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("move into temp: want validation error, got %v", err)
	}
}
