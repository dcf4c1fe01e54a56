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

package extract

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// fakeVoice 记录调用参数的语音客户端替身
type fakeVoice struct {
	gotFilename string
	gotBytes    []byte
	reply       string
}

func (f *fakeVoice) Listen(ctx context.Context, audio io.Reader, filename string) (string, error) {
	f.gotFilename = filename
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	f.gotBytes = data
	return f.reply, nil
}

func (f *fakeVoice) Name() string { return "fake" }

func TestTranscribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memo.mp3")
	if err := os.WriteFile(path, []byte("fake-mp3-bytes"), 0644); err != nil {
		t.Fatalf("write audio file: %v", err)
	}

	fake := &fakeVoice{reply: "remember to buy milk"}
	text, err := Transcribe(context.Background(), fake, path)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "remember to buy milk" {
		t.Errorf("text = %q", text)
	}
	if fake.gotFilename != "memo.mp3" {
		t.Errorf("filename = %q, want base name", fake.gotFilename)
	}
	if string(fake.gotBytes) != "fake-mp3-bytes" {
		t.Errorf("bytes = %q", fake.gotBytes)
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	fake := &fakeVoice{}
	if _, err := Transcribe(context.Background(), fake, "/nonexistent/a.wav"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsAudio(t *testing.T) {
	cases := map[string]bool{
		"voice/memo.mp3": true,
		"a.WAV":          true,
		"b.m4a":          true,
		"c.ogg":          true,
		"d.flac":         true,
		"e.aac":          true,
		"clip.webm":      true,
		"doc.pdf":        false,
		"pic.png":        false,
	}
	for path, want := range cases {
		if got := IsAudio(path); got != want {
			t.Errorf("IsAudio(%q) = %v, want %v", path, got, want)
		}
	}
}
