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

package db

import "time"

// NoteType 笔记类型
type NoteType int

const (
	NoteTypeFlash NoteType = 0
	NoteTypeNote  NoteType = 1
	NoteTypeTodo  NoteType = 2
)

// 笔记 metadata 里由索引引擎维护的键
const (
	MetaIsIndexed            = "isIndexed"
	MetaIsAttachmentsIndexed = "isAttachmentsIndexed"
)

// Note 用户笔记
type Note struct {
	ID         int64
	OwnerID    int64
	Type       NoteType
	Content    string
	IsArchived bool
	IsRecycle  bool
	IsTop      bool
	IsShare    bool
	SortOrder  int
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Attachment 附件；NoteID 为 0 表示未绑定笔记
type Attachment struct {
	ID        int64
	NoteID    int64
	OwnerID   int64
	Path      string
	Name      string
	Size      int64
	Type      string
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tag 层级标签，Parent 为 0 表示根
type Tag struct {
	ID      int64
	OwnerID int64
	Name    string
	Icon    string
	Parent  int64
}

// Comment 笔记评论；AccountID 为 0 时为访客评论
type Comment struct {
	ID        int64
	NoteID    int64
	AccountID int64
	GuestName string
	Content   string
	CreatedAt time.Time
}

// Account 账号
type Account struct {
	ID       int64
	Name     string
	Nickname string
	Role     string
}

// Capabilities 模型能力向量；Rerank 仅保留字段，无对应管线
type Capabilities struct {
	Inference       bool `json:"inference"`
	Tools           bool `json:"tools"`
	Image           bool `json:"image"`
	ImageGeneration bool `json:"imageGeneration"`
	Video           bool `json:"video"`
	Audio           bool `json:"audio"`
	Embedding       bool `json:"embedding"`
	Rerank          bool `json:"rerank"`
}

// Provider AI 供应商配置行
type Provider struct {
	ID        int64
	Title     string
	Provider  string
	BaseURL   string
	APIKey    string
	Config    map[string]any
	SortOrder int
}

// Model 供应商下的模型行
type Model struct {
	ID           int64
	ProviderID   int64
	Title        string
	ModelKey     string
	Capabilities Capabilities
	Config       ModelSettings
	SortOrder    int
}

// ModelSettings 模型行里的可选配置
type ModelSettings struct {
	EmbeddingDimensions int     `json:"embeddingDimensions,omitempty"`
	Temperature         float64 `json:"temperature,omitempty"`
	APIVersion          string  `json:"apiVersion,omitempty"`
}

// ScheduledTask 用户定义的定时 AI 任务
type ScheduledTask struct {
	ID         int64
	OwnerID    int64
	Name       string
	Prompt     string
	Cron       string
	Enabled    bool
	LastRun    *time.Time
	LastResult *TaskResult
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TaskResult 任务执行结果，写入 last_result
type TaskResult struct {
	Success    bool      `json:"success"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
	ExecutedAt time.Time `json:"executedAt"`
}

// Follow 关注的站点
type Follow struct {
	ID          int64
	AccountID   int64
	SiteURL     string
	SiteName    string
	SiteAvatar  string
	Description string
}

// ConversationMessage 会话里的一条消息
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation AI 会话记录
type Conversation struct {
	ID        int64
	AccountID int64
	Title     string
	Messages  []ConversationMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notification 用户通知
type Notification struct {
	ID        int64
	AccountID int64
	Type      string
	Title     string
	Content   string
	Read      bool
	Metadata  map[string]any
	CreatedAt time.Time
}

// NoteFilter notes.list 的过滤条件；指针字段为 nil 表示不过滤
type NoteFilter struct {
	SearchText string
	Page       int
	Size       int
	OrderBy    string
	Type       *NoteType
	IsArchived *bool
	IsRecycle  *bool
	WithoutTag int64
	WithFile   bool
	WithLink   bool
	HasTodo    bool
	StartDate  *time.Time
	EndDate    *time.Time
}
