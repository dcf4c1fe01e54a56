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
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"note-platform/pkg/errors"
)

// 残留临时文件的清扫年限；正在进行的上传不会被误删
const tempSweepAge = time.Hour

// LocalStore 本地磁盘附件存储。所有路径经 PathGuard 解析，
// 物化即原文件本身，不产生临时副本。
type LocalStore struct {
	guard *PathGuard
}

// NewLocalStore 创建本地存储
func NewLocalStore(guard *PathGuard) *LocalStore {
	return &LocalStore{guard: guard}
}

// resolve 归一化并解析路径，返回绝对路径与清洗后的相对路径
func (s *LocalStore) resolve(p string, allowTemp bool) (string, string, error) {
	rel, err := s.guard.ValidateRelPath(NormalizeWebPath(p), allowTemp)
	if err != nil {
		return "", "", err
	}
	abs, err := s.guard.ValidateAndResolvePath(rel, allowTemp)
	if err != nil {
		return "", "", err
	}
	return abs, rel, nil
}

func (s *LocalStore) inTemp(abs string) bool {
	return strings.HasPrefix(abs, s.guard.TempRoot()+string(filepath.Separator))
}

// GetFile 本地盘直接返回原路径，无需清理
func (s *LocalStore) GetFile(ctx context.Context, path string) (*FileHandle, error) {
	abs, _, err := s.resolve(path, true)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithKind(errors.ErrNotFound, err)
		}
		return nil, errors.Wrap(err, "stat file")
	}
	return &FileHandle{LocalPath: abs, IsTemporary: false}, nil
}

// GetFileBuffer 整块读取
func (s *LocalStore) GetFileBuffer(ctx context.Context, path string) ([]byte, error) {
	abs, _, err := s.resolve(path, true)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithKind(errors.ErrNotFound, err)
		}
		return nil, errors.Wrap(err, "read file")
	}
	return data, nil
}

// UploadFile 写入对象并返回 web 路径
func (s *LocalStore) UploadFile(ctx context.Context, path string, data []byte) (string, error) {
	abs, rel, err := s.resolve(path, true)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", errors.Wrap(err, "create parent directory")
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write file")
	}
	return WebPathLocal + rel, nil
}

// UploadFileStream 流式写入；写失败时清掉半截文件
func (s *LocalStore) UploadFileStream(ctx context.Context, path string, r io.Reader, size int64) (string, error) {
	abs, rel, err := s.resolve(path, true)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", errors.Wrap(err, "create parent directory")
	}
	f, err := os.Create(abs)
	if err != nil {
		return "", errors.Wrap(err, "create file")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(abs)
		return "", errors.Wrap(err, "write file stream")
	}
	if err := f.Close(); err != nil {
		os.Remove(abs)
		return "", errors.Wrap(err, "close file")
	}
	return WebPathLocal + rel, nil
}

// DeleteFile 删除对象；删的是临时文件时顺带清扫残留
func (s *LocalStore) DeleteFile(ctx context.Context, path string) error {
	abs, _, err := s.resolve(path, true)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return errors.WithKind(errors.ErrNotFound, err)
		}
		return errors.Wrap(err, "delete file")
	}
	if s.inTemp(abs) {
		s.guard.SweepTemp(tempSweepAge)
	}
	return nil
}

// RenameFile 改名只在正式目录树内进行
func (s *LocalStore) RenameFile(ctx context.Context, oldPath, newPath string) (string, error) {
	oldAbs, _, err := s.resolve(oldPath, false)
	if err != nil {
		return "", err
	}
	newAbs, newRel, err := s.resolve(newPath, false)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(oldAbs); err != nil {
		if os.IsNotExist(err) {
			return "", errors.WithKind(errors.ErrNotFound, err)
		}
		return "", errors.Wrap(err, "stat file")
	}
	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return "", errors.Wrap(err, "create parent directory")
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return "", errors.Wrap(err, "rename file")
	}
	return WebPathLocal + newRel, nil
}

// MoveFile 允许从临时目录移入正式目录树（上传落定的一步），
// 目标不得落在临时目录；移出后清扫临时残留
func (s *LocalStore) MoveFile(ctx context.Context, oldPath, newPath string) (string, error) {
	oldAbs, _, err := s.resolve(oldPath, true)
	if err != nil {
		return "", err
	}
	newAbs, newRel, err := s.resolve(newPath, false)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return "", errors.Wrap(err, "create parent directory")
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		if os.IsNotExist(err) {
			return "", errors.WithKind(errors.ErrNotFound, err)
		}
		return "", errors.Wrap(err, "move file")
	}
	if s.inTemp(oldAbs) {
		s.guard.SweepTemp(tempSweepAge)
	}
	return WebPathLocal + newRel, nil
}

// Close 本地存储无连接可关
func (s *LocalStore) Close() error { return nil }
