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
	"testing"
	"time"

	"note-platform/pkg/errors"
)

func newGuardForTest(t *testing.T) *PathGuard {
	t.Helper()
	g, err := NewPathGuard(t.TempDir(), "temp")
	if err != nil {
		t.Fatalf("NewPathGuard: %v", err)
	}
	return g
}

func TestPathGuard_RejectsTraversal(t *testing.T) {
	g := newGuardForTest(t)

	for _, rel := range []string{
		"../etc/passwd",
		"a/../b", // 即便最终仍落在目录内也拒绝
		"..",
		"notes/../../x",
	} {
		if _, err := g.ValidateAndResolvePath(rel, false); err == nil {
			t.Errorf("ValidateAndResolvePath(%q) should fail", rel)
		} else if !errors.Is(err, errors.ErrValidation) {
			t.Errorf("ValidateAndResolvePath(%q): want validation error, got %v", rel, err)
		}
	}
}

func TestPathGuard_RejectsAbsoluteAndEmpty(t *testing.T) {
	g := newGuardForTest(t)

	for _, rel := range []string{"", "  ", "/etc/passwd", "///"} {
		if _, err := g.ValidateAndResolvePath(rel, false); err == nil {
			t.Errorf("ValidateAndResolvePath(%q) should fail", rel)
		}
	}
}

func TestPathGuard_TempRequiresOptIn(t *testing.T) {
	g := newGuardForTest(t)

	if _, err := g.ValidateAndResolvePath("temp/x", false); err == nil {
		t.Error("temp path without opt-in should fail")
	}
	abs, err := g.ValidateAndResolvePath("temp/x", true)
	if err != nil {
		t.Fatalf("temp path with opt-in: %v", err)
	}
	if abs != filepath.Join(g.Base(), "temp", "x") {
		t.Errorf("resolved = %q", abs)
	}
}

func TestPathGuard_ResolvesInsideBase(t *testing.T) {
	g := newGuardForTest(t)

	abs, err := g.ValidateAndResolvePath("notes/2026/a.pdf", false)
	if err != nil {
		t.Fatalf("ValidateAndResolvePath: %v", err)
	}
	want := filepath.Join(g.Base(), "notes", "2026", "a.pdf")
	if abs != want {
		t.Errorf("resolved = %q, want %q", abs, want)
	}
}

func TestPathGuard_SanitizesComponents(t *testing.T) {
	g := newGuardForTest(t)

	rel, err := g.ValidateRelPath(`notes/a<b>:c.txt`, false)
	if err != nil {
		t.Fatalf("ValidateRelPath: %v", err)
	}
	if strings.ContainsAny(rel, `<>:"|?*`) {
		t.Errorf("sanitized rel still has dangerous chars: %q", rel)
	}
	// 尾部点与空格去掉，防 Windows 式别名
	rel, err = g.ValidateRelPath("dir/file.txt. ", false)
	if err != nil {
		t.Fatalf("ValidateRelPath: %v", err)
	}
	if rel != "dir/file.txt" {
		t.Errorf("rel = %q, want dir/file.txt", rel)
	}
}

func TestPathGuard_TempPathAndSweep(t *testing.T) {
	g := newGuardForTest(t)

	p1, err := g.TempPath("report.pdf")
	if err != nil {
		t.Fatalf("TempPath: %v", err)
	}
	p2, _ := g.TempPath("report.pdf")
	if p1 == p2 {
		t.Error("TempPath should be unique per call")
	}
	if !strings.HasPrefix(p1, g.TempRoot()) {
		t.Errorf("temp path %q outside temp root %q", p1, g.TempRoot())
	}

	if err := os.WriteFile(p1, []byte("stale"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(p2, []byte("fresh"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(p1, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if n := g.SweepTemp(time.Hour); n != 1 {
		t.Errorf("SweepTemp removed %d, want 1", n)
	}
	if _, err := os.Stat(p1); !os.IsNotExist(err) {
		t.Error("stale temp file should be removed")
	}
	if _, err := os.Stat(p2); err != nil {
		t.Error("fresh temp file should survive the sweep")
	}
}
