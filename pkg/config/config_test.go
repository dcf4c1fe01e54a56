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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9000
  host: "127.0.0.1"
log:
  level: "debug"
vector:
  backend: "memory"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port: got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host: got %q", cfg.Server.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Vector.Backend != "memory" {
		t.Errorf("Vector.Backend: got %q", cfg.Vector.Backend)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "min.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Queue.ArchiveCompletedAfterSeconds != 86400 {
		t.Errorf("Queue.ArchiveCompletedAfterSeconds: got %d", cfg.Queue.ArchiveCompletedAfterSeconds)
	}
	if cfg.Queue.DeleteAfterSeconds != 604800 {
		t.Errorf("Queue.DeleteAfterSeconds: got %d", cfg.Queue.DeleteAfterSeconds)
	}
	if cfg.Queue.Retry.Limit != 3 || cfg.Queue.Retry.Delay != "60s" || !cfg.Queue.Retry.Backoff {
		t.Errorf("Queue.Retry defaults: got %+v", cfg.Queue.Retry)
	}
	if cfg.AI.EmbeddingTopK != 3 {
		t.Errorf("AI.EmbeddingTopK: got %d", cfg.AI.EmbeddingTopK)
	}
	if cfg.AI.EmbeddingScore != 0.4 {
		t.Errorf("AI.EmbeddingScore: got %v", cfg.AI.EmbeddingScore)
	}
	if cfg.Vector.Collection != "blinko" {
		t.Errorf("Vector.Collection: got %q", cfg.Vector.Collection)
	}
	if cfg.Tasks.EnableRestore {
		t.Error("Tasks.EnableRestore should default to false")
	}
}

func TestLoadConfig_DatabaseURLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.yaml")
	if err := os.WriteFile(path, []byte("database:\n  url: \"postgres://file\"\n"), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("DATABASE_URL", "postgres://env")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.URL != "postgres://env" {
		t.Errorf("DATABASE_URL should override file value, got %q", cfg.Database.URL)
	}
}

func TestReplaceEnvVars(t *testing.T) {
	t.Setenv("TEST_TAVILY_KEY", "tvly-abc")
	cfg := Default()
	cfg.AI.Tavily.APIKey = "${TEST_TAVILY_KEY}"
	replaceEnvVars(cfg)
	if cfg.AI.Tavily.APIKey != "tvly-abc" {
		t.Errorf("Tavily.APIKey: got %q", cfg.AI.Tavily.APIKey)
	}
}
