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

package supervisor

import (
	"context"

	"note-platform/internal/queue"
	"note-platform/pkg/log"
)

// TaskRebuildEmbedding 向量重建任务名
const TaskRebuildEmbedding = "rebuild-embedding"

// Rebuilder 重建协议入口，由 internal/embedding 实现
type Rebuilder interface {
	ForceRebuild(ctx context.Context, force, incremental bool) error
}

// RebuildEmbeddingJob 把队列触发转发给重建引擎；断点续跑、强停与
// 进度都由引擎自身维护
type RebuildEmbeddingJob struct {
	engine Rebuilder
	log    *log.Logger
}

func NewRebuildEmbeddingJob(engine Rebuilder, logger *log.Logger) *RebuildEmbeddingJob {
	if logger == nil {
		logger = log.Nop()
	}
	return &RebuildEmbeddingJob{engine: engine, log: logger.Named("rebuild")}
}

func (j *RebuildEmbeddingJob) Name() string        { return TaskRebuildEmbedding }
func (j *RebuildEmbeddingJob) DefaultCron() string { return "0 4 * * 0" }
func (j *RebuildEmbeddingJob) SchedulePayload() any {
	return queue.RebuildPayload{Force: false, Incremental: true}
}

func (j *RebuildEmbeddingJob) Run(ctx context.Context, job *queue.Job) error {
	var p queue.RebuildPayload
	if err := queue.DecodePayload(job, &p); err != nil {
		return err
	}
	j.log.Info("rebuild requested", "force", p.Force, "incremental", p.Incremental)
	return j.engine.ForceRebuild(ctx, p.Force, p.Incremental)
}
