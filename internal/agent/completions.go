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

package agent

import (
	"context"
	"io"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"note-platform/internal/storage/db"
	"note-platform/pkg/auth"
	"note-platform/pkg/errors"
	pkgutils "note-platform/pkg/utils"
)

// maxAgentSteps react loop 的步数上限，防工具调用打转
const maxAgentSteps = 12

// EventKind 流式回答的事件类型
type EventKind string

const (
	// EventNotes RAG 引用，保证在任何 chunk 之前发出
	EventNotes EventKind = "notes"
	// EventChunk 一段增量回答文本
	EventChunk EventKind = "chunk"
	// EventDone 回答结束
	EventDone EventKind = "done"
	// EventError 中途失败；之后不再有事件
	EventError EventKind = "error"
)

// Event 流式回答的一帧
type Event struct {
	Kind  EventKind `json:"kind"`
	Notes []noteRef `json:"notes,omitempty"`
	Chunk string    `json:"chunk,omitempty"`
	Err   error     `json:"-"`
}

// CompletionsRequest 一次对话请求
type CompletionsRequest struct {
	Question       string
	Conversations  []db.ConversationMessage
	ConversationID int64
	SystemPrompt   string
	WithTools      bool
	WithOnline     bool
	WithRAG        bool
}

// Completions 流式回答。事件顺序固定：WithRAG 时先发一帧 notes
// （哪怕引用为空），随后若干 chunk，最后 done；任何失败发 error 收尾。
// 返回后调用方只管消费 channel，取消用 ctx。
func (s *Service) Completions(ctx context.Context, req CompletionsRequest) (<-chan Event, error) {
	accountID, err := auth.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Question == "" {
		return nil, errors.Validationf("question is empty")
	}

	cm, err := s.builder(ctx)
	if err != nil {
		return nil, err
	}

	// 系统消息依次为：日期+全局提示、当前用户名、调用方追加的提示
	msgs := []*schema.Message{schema.SystemMessage(s.systemPrompt(time.Now()))}
	if name := auth.Name(ctx); name != "" {
		msgs = append(msgs, schema.SystemMessage("Current user name: "+name))
	}
	if req.SystemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(req.SystemPrompt))
	}

	// RAG 引用在模型起跑前取好，保证 notes 帧先于首个 chunk
	var refs []noteRef
	if req.WithRAG && s.query != nil {
		res, err := s.query.QueryVector(ctx, req.Question, accountID, 5)
		if err != nil {
			s.log.Warn("rag query failed, answering without context", "error", err)
		} else {
			for _, n := range res.Notes {
				refs = append(refs, toNoteRef(n))
			}
			if res.AggregatedContext != "" {
				msgs = append(msgs, schema.SystemMessage(
					"Relevant notes from the user's knowledge base:\n"+res.AggregatedContext))
			}
		}
	}

	for _, m := range req.Conversations {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}
	msgs = append(msgs, schema.UserMessage(req.Question))

	stream, err := s.answerStream(ctx, cm, msgs, req)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 8)
	go func() {
		defer close(events)
		defer stream.Close()

		if req.WithRAG {
			if !emit(ctx, events, Event{Kind: EventNotes, Notes: refs}) {
				return
			}
		}

		var answer []byte
		for {
			msg, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				emit(ctx, events, Event{Kind: EventError, Err: err})
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			answer = append(answer, msg.Content...)
			if !emit(ctx, events, Event{Kind: EventChunk, Chunk: msg.Content}) {
				return
			}
		}
		s.saveConversation(ctx, accountID, req, string(answer))
		emit(ctx, events, Event{Kind: EventDone})
	}()
	return events, nil
}

// answerStream 按请求开关选执行路径：要工具走 react loop，纯聊天直通
// 模型。模型不支持工具调用时降级为纯聊天，不报错。
func (s *Service) answerStream(ctx context.Context, cm einomodel.ToolCallingChatModel, msgs []*schema.Message, req CompletionsRequest) (*schema.StreamReader[*schema.Message], error) {
	var tools []tool.BaseTool
	switch {
	case req.WithTools:
		tools = s.buildTools(ctx)
	case req.WithOnline:
		tools = s.webTools()
	}
	if _, noTools := cm.(*chatAdapter); noTools && len(tools) > 0 {
		s.log.Warn("model has no tool calling, answering without tools")
		tools = nil
	}
	if len(tools) > 0 {
		ra, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: cm,
			ToolsConfig:      compose.ToolsNodeConfig{Tools: tools},
			MaxStep:          maxAgentSteps,
		})
		if err == nil {
			return ra.Stream(ctx, msgs)
		}
		if !errors.Is(err, errors.ErrCapabilityUnsupported) {
			return nil, err
		}
		s.log.Warn("model has no tool calling, answering without tools", "error", err)
	}
	return cm.Stream(ctx, msgs)
}

// webTools 仅联网工具，用于 WithOnline 且不开完整工具集的请求
func (s *Service) webTools() []tool.BaseTool {
	var tools []tool.BaseTool
	if t, err := utils.InferTool("web_search_tool", "Search the web for up-to-date information.", s.webSearchTool); err == nil {
		tools = append(tools, t)
	}
	if t, err := utils.InferTool("web_extra", "Extract readable content from the given URLs.", s.webExtractTool); err == nil {
		tools = append(tools, t)
	}
	return tools
}

// emit 投递一帧；ctx 取消时放弃
func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// saveConversation best-effort 落会话；没配存储就跳过
func (s *Service) saveConversation(ctx context.Context, accountID int64, req CompletionsRequest, answer string) {
	if s.conversations == nil || answer == "" {
		return
	}
	now := time.Now()
	conv := &db.Conversation{
		ID:        req.ConversationID,
		AccountID: accountID,
		Title:     titleFrom(req.Question),
		Messages: append(append([]db.ConversationMessage{}, req.Conversations...),
			db.ConversationMessage{Role: "user", Content: req.Question, CreatedAt: now},
			db.ConversationMessage{Role: "assistant", Content: answer, CreatedAt: now},
		),
		UpdatedAt: now,
	}
	if _, err := s.conversations.Save(ctx, conv); err != nil {
		s.log.Warn("save conversation failed", "error", err)
	}
}

// titleFrom 会话标题取问题前 60 个 rune
func titleFrom(q string) string {
	return pkgutils.TruncateString(q, 60)
}
