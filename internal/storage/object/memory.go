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
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"note-platform/pkg/errors"
)

// MemoryStore 内存附件存储，测试用。GetFile 物化到系统临时目录，
// 行为与 S3 一致：IsTemporary 为 true，调用方负责 Cleanup。
type MemoryStore struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) key(p string) string {
	return strings.Trim(NormalizeWebPath(p), "/")
}

// GetFile 物化为临时文件
func (s *MemoryStore) GetFile(ctx context.Context, p string) (*FileHandle, error) {
	data, err := s.GetFileBuffer(ctx, p)
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp("", "note-*-"+sanitizeComponent(path.Base(s.key(p))))
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, errors.Wrap(err, "write temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, errors.Wrap(err, "close temp file")
	}
	name := f.Name()
	return &FileHandle{
		LocalPath:   name,
		IsTemporary: true,
		Cleanup:     func() { os.Remove(name) },
	}, nil
}

// GetFileBuffer 整块读取
func (s *MemoryStore) GetFileBuffer(ctx context.Context, p string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[s.key(p)]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", errors.ErrNotFound, p)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// UploadFile 写入对象
func (s *MemoryStore) UploadFile(ctx context.Context, p string, data []byte) (string, error) {
	k := s.key(p)
	if k == "" {
		return "", errors.Validationf("empty path")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.objects[k] = buf
	s.mu.Unlock()
	return WebPathLocal + k, nil
}

// UploadFileStream 流式写入
func (s *MemoryStore) UploadFileStream(ctx context.Context, p string, r io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "read object data")
	}
	return s.UploadFile(ctx, p, data)
}

// DeleteFile 删除对象
func (s *MemoryStore) DeleteFile(ctx context.Context, p string) error {
	k := s.key(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[k]; !ok {
		return fmt.Errorf("%w: object %s", errors.ErrNotFound, p)
	}
	delete(s.objects, k)
	return nil
}

// RenameFile 改名
func (s *MemoryStore) RenameFile(ctx context.Context, oldPath, newPath string) (string, error) {
	return s.MoveFile(ctx, oldPath, newPath)
}

// MoveFile 移动
func (s *MemoryStore) MoveFile(ctx context.Context, oldPath, newPath string) (string, error) {
	oldKey, newKey := s.key(oldPath), s.key(newPath)
	if newKey == "" {
		return "", errors.Validationf("empty path")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[oldKey]
	if !ok {
		return "", fmt.Errorf("%w: object %s", errors.ErrNotFound, oldPath)
	}
	delete(s.objects, oldKey)
	s.objects[newKey] = data
	return WebPathLocal + newKey, nil
}

// Close 无连接可关
func (s *MemoryStore) Close() error { return nil }
