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

// Package mcp 远端工具联邦客户端：JSON-RPC 2.0 跑在 SSE 会话上。
// GET /sse 建会话拿到 endpoint，请求 POST 到 endpoint，响应从 SSE
// 流里按 id 对回。stdlib net/http 直连：SSE 要增量读响应体，
// resty 会整包缓冲，用不上。
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const protocolVersion = "2024-11-05"

// ToolSpec 远端工具描述
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Err() error {
	return fmt.Errorf("rpc error %d: %s", e.Code, e.Message)
}

// Client 一个远端 MCP 服务的连接
type Client struct {
	Name string

	sseURL string
	token  string
	http   *http.Client

	mu       sync.Mutex
	endpoint string
	pending  map[int64]chan *rpcResponse
	closed   bool
	cancel   context.CancelFunc
	nextID   atomic.Int64
}

// New 创建客户端；url 为服务的 SSE 入口，token 可为空
func New(name, sseURL, token string) *Client {
	return &Client{
		Name:    name,
		sseURL:  sseURL,
		token:   token,
		http:    &http.Client{}, // SSE 长连接，不设全局超时
		pending: map[int64]chan *rpcResponse{},
	}
}

// Connect 建立 SSE 会话并完成 initialize 握手
func (c *Client) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req) //nolint:bodyclose // 读协程负责关闭
	if err != nil {
		return fmt.Errorf("mcp %s: open sse: %w", c.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("mcp %s: open sse: status %d", c.Name, resp.StatusCode)
	}

	endpointCh := make(chan string, 1)
	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	go c.readLoop(readCtx, resp.Body, endpointCh)

	select {
	case ep := <-endpointCh:
		resolved, err := c.resolveEndpoint(ep)
		if err != nil {
			c.Close()
			return err
		}
		c.mu.Lock()
		c.endpoint = resolved
		c.mu.Unlock()
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	case <-time.After(15 * time.Second):
		c.Close()
		return fmt.Errorf("mcp %s: no endpoint event", c.Name)
	}

	_, err = c.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo":      map[string]string{"name": "note-platform", "version": "1.0"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		c.Close()
		return fmt.Errorf("mcp %s: initialize: %w", c.Name, err)
	}
	return c.notify(ctx, "notifications/initialized")
}

// resolveEndpoint endpoint 事件可能是相对路径，相对 SSE URL 解析
func (c *Client) resolveEndpoint(ep string) (string, error) {
	base, err := url.Parse(c.sseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(ep)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// readLoop 解析 SSE 帧：endpoint 事件给握手，message 事件按 id 分发
func (c *Client) readLoop(ctx context.Context, body io.ReadCloser, endpointCh chan<- string) {
	defer body.Close()
	defer c.failPending(io.ErrClosedPipe)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	event := ""
	var data bytes.Buffer
	dispatch := func() {
		defer func() { event = ""; data.Reset() }()
		payload := strings.TrimSpace(data.String())
		if payload == "" {
			return
		}
		switch event {
		case "endpoint":
			select {
			case endpointCh <- payload:
			default:
			}
		default: // message 或未标事件名的 data 帧
			var resp rpcResponse
			if err := json.Unmarshal([]byte(payload), &resp); err != nil || resp.ID == 0 {
				return
			}
			c.mu.Lock()
			ch, ok := c.pending[resp.ID]
			if ok {
				delete(c.pending, resp.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- &resp
			}
		}
	}
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

// failPending 连接断开时唤醒所有等待方
func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	_ = err
}

// call 发 JSON-RPC 请求并等待对应 id 的响应帧
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	endpoint := c.endpoint
	if c.closed || endpoint == "" {
		c.mu.Unlock()
		return nil, fmt.Errorf("mcp %s: not connected", c.Name)
	}
	id := c.nextID.Add(1)
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.post(ctx, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("mcp %s: connection closed", c.Name)
		}
		if resp.Error != nil {
			return nil, resp.Error.Err()
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// notify 单向通知，不等响应
func (c *Client) notify(ctx context.Context, method string) error {
	return c.post(ctx, rpcRequest{JSONRPC: "2.0", Method: method})
}

func (c *Client) post(ctx context.Context, body rpcRequest) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	endpoint := c.endpoint
	c.mu.Unlock()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mcp %s: post: %w", c.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mcp %s: post: status %d", c.Name, resp.StatusCode)
	}
	return nil
}

// ListTools tools/list
func (c *Client) ListTools(ctx context.Context) ([]ToolSpec, error) {
	raw, err := c.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []ToolSpec `json:"tools"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("mcp %s: tools/list: %w", c.Name, err)
	}
	return out.Tools, nil
}

// CallTool tools/call；返回 content 里文本块的拼接
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	params := map[string]any{"name": name}
	if len(args) > 0 {
		var decoded any
		if err := json.Unmarshal(args, &decoded); err == nil {
			params["arguments"] = decoded
		}
	}
	raw, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return "", err
	}
	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("mcp %s: tools/call: %w", c.Name, err)
	}
	parts := make([]string, 0, len(out.Content))
	for _, c := range out.Content {
		if c.Type == "" || c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if out.IsError {
		return "", fmt.Errorf("mcp %s: tool %s failed: %s", c.Name, name, text)
	}
	return text, nil
}

// Close 结束会话；在途 call 立即失败
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
