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

func TestMemoryStore_UploadGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	web, err := s.UploadFile(ctx, "p1", []byte("hello"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	b, err := s.GetFileBuffer(ctx, web)
	if err != nil {
		t.Fatalf("GetFileBuffer: %v", err)
	}
	if string(b) != "hello" {
		t.Errorf("GetFileBuffer: got %q", string(b))
	}
	if err := s.DeleteFile(ctx, "p1"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := s.GetFileBuffer(ctx, "p1"); !errors.Is(err, errors.ErrNotFound) {
		t.Error("GetFileBuffer after delete should be ErrNotFound")
	}
}

func TestMemoryStore_GetFileMaterializes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.UploadFileStream(ctx, "doc.txt", strings.NewReader("body"), 4); err != nil {
		t.Fatalf("UploadFileStream: %v", err)
	}
	h, err := s.GetFile(ctx, "/api/file/doc.txt")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if !h.IsTemporary || h.Cleanup == nil {
		t.Fatal("memory GetFile should hand out a temporary copy")
	}
	data, err := os.ReadFile(h.LocalPath)
	if err != nil || string(data) != "body" {
		t.Fatalf("temp copy: %q, %v", data, err)
	}
	h.Cleanup()
	if _, err := os.Stat(h.LocalPath); !os.IsNotExist(err) {
		t.Error("Cleanup should remove the temp copy")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.GetFileBuffer(ctx, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Error("GetFileBuffer missing should be ErrNotFound")
	}
}

func TestMemoryStore_Move(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.UploadFile(ctx, "a/x.txt", []byte("v")); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	web, err := s.MoveFile(ctx, "a/x.txt", "b/y.txt")
	if err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if web != WebPathLocal+"b/y.txt" {
		t.Errorf("moved web path = %q", web)
	}
	if _, err := s.GetFileBuffer(ctx, "a/x.txt"); !errors.Is(err, errors.ErrNotFound) {
		t.Error("source should be gone after move")
	}
	if _, err := s.MoveFile(ctx, "a/x.txt", "c/z.txt"); !errors.Is(err, errors.ErrNotFound) {
		t.Error("moving a missing object should be ErrNotFound")
	}
}
