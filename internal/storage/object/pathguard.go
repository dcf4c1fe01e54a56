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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"note-platform/pkg/errors"
)

// PathGuard 把外部传入的相对路径解析到受限基目录内。
// 所有磁盘访问都必须经过它：拒绝穿越、逐段清洗文件名、
// 临时子目录需要显式放行。
type PathGuard struct {
	base    string // 绝对路径
	tempDir string // base 下的临时子目录名
}

// NewPathGuard 创建守卫并按需建出基目录
func NewPathGuard(base, tempDir string) (*PathGuard, error) {
	if base == "" {
		return nil, errors.ConfigMissingf("storage base path is empty")
	}
	if tempDir == "" {
		tempDir = "temp"
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, errors.Wrap(err, "resolve storage base path")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage base path")
	}
	return &PathGuard{base: abs, tempDir: tempDir}, nil
}

// Base 基目录绝对路径
func (g *PathGuard) Base() string { return g.base }

// TempRoot 临时子目录绝对路径
func (g *PathGuard) TempRoot() string { return filepath.Join(g.base, g.tempDir) }

// ValidateRelPath 校验并清洗相对路径，返回以 "/" 连接的规范相对路径。
// 含 ".." 的路径一律拒绝（包括 "a/../b" 这种最终仍落在目录内的写法），
// 指向临时子目录的路径仅在 allowTemp 时放行。
func (g *PathGuard) ValidateRelPath(rel string, allowTemp bool) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", errors.Validationf("empty path")
	}
	if strings.ContainsRune(rel, 0) {
		return "", errors.Validationf("path contains NUL byte")
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	if strings.HasPrefix(rel, "/") {
		return "", errors.Validationf("absolute path not allowed: %s", rel)
	}

	var parts []string
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", errors.Validationf("path traversal rejected: %s", rel)
		}
		clean := sanitizeComponent(seg)
		if clean == "" {
			return "", errors.Validationf("invalid path component %q in %s", seg, rel)
		}
		parts = append(parts, clean)
	}
	if len(parts) == 0 {
		return "", errors.Validationf("empty path after sanitize: %s", rel)
	}
	if parts[0] == g.tempDir && !allowTemp {
		return "", errors.Validationf("temp directory access requires opt-in: %s", rel)
	}
	return strings.Join(parts, "/"), nil
}

// ValidateAndResolvePath 校验相对路径并解析为基目录下的绝对路径
func (g *PathGuard) ValidateAndResolvePath(rel string, allowTemp bool) (string, error) {
	clean, err := g.ValidateRelPath(rel, allowTemp)
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(g.base, filepath.FromSlash(clean))
	// 清洗后理论上不可能逃出基目录，仍二次确认
	inside, err := filepath.Rel(g.base, resolved)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", errors.Validationf("path escapes base directory: %s", rel)
	}
	return resolved, nil
}

// TempPath 在临时子目录下生成一个唯一文件路径，name 仅取其文件名部分
func (g *PathGuard) TempPath(name string) (string, error) {
	if err := os.MkdirAll(g.TempRoot(), 0o755); err != nil {
		return "", errors.Wrap(err, "create temp directory")
	}
	base := sanitizeComponent(filepath.Base(name))
	if base == "" {
		base = "file"
	}
	return filepath.Join(g.TempRoot(), uuid.NewString()+"-"+base), nil
}

// SweepTemp 清理临时子目录里超过 olderThan 的残留文件，返回清理数量。
// 尽力而为：单个文件删不掉不中断扫描。
func (g *PathGuard) SweepTemp(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	entries, err := os.ReadDir(g.TempRoot())
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(g.TempRoot(), e.Name())) == nil {
			removed++
		}
	}
	return removed
}

// sanitizeComponent 清洗单个路径段：危险字符替换为下划线，去掉尾部点和空格
func sanitizeComponent(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		switch {
		case r < 0x20, r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`<>:"|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), ". ")
}
