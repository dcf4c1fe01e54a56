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

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"note-platform/pkg/auth"
)

const mcpProtocolVersion = "2024-11-05"

// mcpSession 一条 SSE 会话：principal 在建会话时固化，之后每次
// tools/call 都以它注入 context，消息里带 token 也不认
type mcpSession struct {
	id        string
	principal auth.Principal
	frames    chan string
	tools     []tool.BaseTool
	once      sync.Once
}

type mcpSessions struct {
	mu       sync.Mutex
	sessions map[string]*mcpSession
}

func newMCPSessions() *mcpSessions {
	return &mcpSessions{sessions: map[string]*mcpSession{}}
}

func (m *mcpSessions) add(s *mcpSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
}

func (m *mcpSessions) get(id string) *mcpSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *mcpSessions) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// mcpOpenSession GET /sse：建会话，先发 endpoint 事件，之后把
// /messages 产生的响应帧持续写给客户端；写失败即视为断连清会话
func (s *Server) mcpOpenSession(ctx context.Context, c *app.RequestContext) {
	p, authed := auth.FromContext(ctx)
	if !authed || p.AccountID == 0 {
		c.JSON(consts.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	sess := &mcpSession{
		id:        uuid.NewString(),
		principal: p,
		frames:    make(chan string, 16),
	}
	s.mcp.add(sess)
	s.log.Info("mcp session opened", "session", sess.id, "account", p.AccountID)

	pr, pw := io.Pipe()
	c.SetStatusCode(consts.StatusOK)
	c.Response.Header.Set("Content-Type", "text/event-stream")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.SetBodyStream(pr, -1)

	go func() {
		defer func() {
			pw.Close()
			s.mcp.remove(sess.id)
			s.log.Info("mcp session closed", "session", sess.id)
		}()
		if _, err := fmt.Fprintf(pw, "event: endpoint\ndata: /messages?sessionId=%s\n\n", sess.id); err != nil {
			return
		}
		for frame := range sess.frames {
			if _, err := io.WriteString(pw, frame); err != nil {
				return
			}
		}
	}()
}

type mcpRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// mcpMessage POST /messages?sessionId=：JSON-RPC 入口。响应统一从
// SSE 流回去，POST 本身只回 202
func (s *Server) mcpMessage(ctx context.Context, c *app.RequestContext) {
	sess := s.mcp.get(c.Query("sessionId"))
	if sess == nil {
		c.JSON(consts.StatusNotFound, errorBody("unknown session"))
		return
	}
	var req mcpRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, errorBody("invalid json-rpc body"))
		return
	}

	// 工具调用以会话主体执行
	ctx = auth.WithPrincipal(ctx, sess.principal)

	switch req.Method {
	case "initialize":
		sess.reply(req.ID, map[string]any{
			"protocolVersion": mcpProtocolVersion,
			"serverInfo":      map[string]string{"name": "note-platform", "version": "1.0"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		// 单向通知，无响应
	case "tools/list":
		sess.reply(req.ID, map[string]any{"tools": s.mcpToolSpecs(ctx, sess)})
	case "tools/call":
		s.mcpCallTool(ctx, sess, &req)
	default:
		sess.replyError(req.ID, -32601, fmt.Sprintf("method %q not found", req.Method))
	}
	c.SetStatusCode(consts.StatusAccepted)
}

func (sess *mcpSession) reply(id *int64, result any) {
	if id == nil {
		return
	}
	raw, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": *id, "result": result})
	if err != nil {
		return
	}
	sess.push(raw)
}

func (sess *mcpSession) replyError(id *int64, code int, message string) {
	if id == nil {
		return
	}
	raw, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": *id,
		"error": map[string]any{"code": code, "message": message},
	})
	sess.push(raw)
}

func (sess *mcpSession) push(raw []byte) {
	select {
	case sess.frames <- fmt.Sprintf("event: message\ndata: %s\n\n", raw):
	default: // 客户端读不动就丢帧，不阻塞 POST
	}
}

// sessionTools 会话工具集惰性构建，一次建好整个会话复用
func (s *Server) sessionTools(ctx context.Context, sess *mcpSession) []tool.BaseTool {
	sess.once.Do(func() {
		sess.tools = s.assistant.Tools(ctx)
	})
	return sess.tools
}

type mcpToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

var genericSchema = json.RawMessage(`{"type":"object"}`)

func (s *Server) mcpToolSpecs(ctx context.Context, sess *mcpSession) []mcpToolSpec {
	tools := s.sessionTools(ctx, sess)
	specs := make([]mcpToolSpec, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil || info == nil {
			continue
		}
		spec := mcpToolSpec{Name: info.Name, Description: info.Desc, InputSchema: genericSchema}
		if info.ParamsOneOf != nil {
			if js, err := info.ParamsOneOf.ToJSONSchema(); err == nil && js != nil {
				if raw, err := json.Marshal(js); err == nil {
					spec.InputSchema = raw
				}
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

type mcpCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) mcpCallTool(ctx context.Context, sess *mcpSession, req *mcpRequest) {
	var params mcpCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		sess.replyError(req.ID, -32602, "invalid tool call params")
		return
	}

	var target tool.InvokableTool
	for _, t := range s.sessionTools(ctx, sess) {
		info, err := t.Info(ctx)
		if err != nil || info == nil || info.Name != params.Name {
			continue
		}
		if inv, invOK := t.(tool.InvokableTool); invOK {
			target = inv
		}
		break
	}
	if target == nil {
		sess.replyError(req.ID, -32602, fmt.Sprintf("tool %q not found", params.Name))
		return
	}

	args := "{}"
	if len(params.Arguments) > 0 {
		args = string(params.Arguments)
	}
	out, err := target.InvokableRun(ctx, args)
	if err != nil {
		sess.reply(req.ID, map[string]any{
			"content": []map[string]string{{"type": "text", "text": err.Error()}},
			"isError": true,
		})
		return
	}
	sess.reply(req.ID, map[string]any{
		"content": []map[string]string{{"type": "text", "text": out}},
	})
}
