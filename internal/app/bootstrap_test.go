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

package app

import (
	"context"
	"testing"
	"time"

	"note-platform/pkg/config"
	"note-platform/pkg/errors"
)

func TestQueueConfigMapping(t *testing.T) {
	qc := config.QueueConfig{
		VisibilityTimeout:            "2m",
		ArchiveCompletedAfterSeconds: 3600,
		DeleteAfterSeconds:           7200,
		MonitorStateIntervalSeconds:  10,
	}
	qc.Retry.Limit = 5
	qc.Retry.Delay = "30s"
	qc.Retry.Backoff = true

	out := QueueConfig(qc)
	if out.VisibilityTimeout != 2*time.Minute {
		t.Errorf("VisibilityTimeout = %v", out.VisibilityTimeout)
	}
	if out.ArchiveAfter != time.Hour {
		t.Errorf("ArchiveAfter = %v", out.ArchiveAfter)
	}
	if out.DeleteAfter != 2*time.Hour {
		t.Errorf("DeleteAfter = %v", out.DeleteAfter)
	}
	if out.MonitorInterval != 10*time.Second {
		t.Errorf("MonitorInterval = %v", out.MonitorInterval)
	}
	if out.RetryLimit != 5 || out.RetryDelay != 30*time.Second || !out.RetryBackoff {
		t.Errorf("retry = %d/%v/%v", out.RetryLimit, out.RetryDelay, out.RetryBackoff)
	}
}

func TestQueueConfigFallsBackToDefaults(t *testing.T) {
	out := QueueConfig(config.QueueConfig{VisibilityTimeout: "not-a-duration"})
	if out.VisibilityTimeout != 5*time.Minute {
		t.Errorf("VisibilityTimeout = %v, want default 5m", out.VisibilityTimeout)
	}
	if out.RetryLimit != 3 {
		t.Errorf("RetryLimit = %d, want default 3", out.RetryLimit)
	}
}

func TestNewRequiresDatabaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.Database.URL = ""
	_, err := New(context.Background(), cfg)
	if !errors.Is(err, errors.ErrConfigMissing) {
		t.Fatalf("err = %v, want ErrConfigMissing", err)
	}
}
