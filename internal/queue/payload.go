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

package queue

import (
	"encoding/json"

	"note-platform/pkg/errors"
)

// 每个内建队列一种载荷类型，(反)序列化只发生在队列边界。

// RebuildPayload 触发向量索引重建
type RebuildPayload struct {
	Force       bool `json:"force"`
	Incremental bool `json:"incremental"`
}

// AITaskPayload 用户定时 AI 任务的一次执行
type AITaskPayload struct {
	TaskID  int64  `json:"taskId"`
	OwnerID int64  `json:"ownerId"`
	Prompt  string `json:"prompt"`
}

// ArchiveTick 归档巡检，无参数
type ArchiveTick struct{}

// BackupPayload 数据库备份/恢复；Type 为 backup 或 restore
type BackupPayload struct {
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
}

// RecommendTick 关注站点推荐拉取，无参数
type RecommendTick struct{}

// MarshalPayload 序列化载荷；nil 序列化为 {}
func MarshalPayload(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal job payload")
	}
	return b, nil
}

// DecodePayload 反序列化任务载荷到 v
func DecodePayload(j *Job, v any) error {
	if j == nil || len(j.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return errors.Wrapf(err, "decode payload for queue %s", j.Queue)
	}
	return nil
}
