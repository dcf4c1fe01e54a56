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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// apiClient API 进程的瘦客户端。普通请求走 resty；completions 是 SSE
// 流，resty 会整包缓冲，这一条用 net/http 增量读。
type apiClient struct {
	base  string
	token string
	rc    *resty.Client
}

func newAPIClient(base, token string) *apiClient {
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		rc.SetAuthToken(token)
	}
	return &apiClient{base: strings.TrimRight(base, "/"), token: token, rc: rc}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// call POST/GET 一个端点并解出 data 段
func (c *apiClient) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	req := c.rc.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	var env apiEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("unexpected response (%d): %s", resp.StatusCode(), resp.Body())
	}
	if !env.Success {
		return nil, fmt.Errorf("api error (%d): %s", resp.StatusCode(), env.Error)
	}
	return env.Data, nil
}

// ask 流式问答；onChunk 随每个 chunk 帧回调
func (c *apiClient) ask(ctx context.Context, question string, withRAG, withTools bool, onChunk func(string)) error {
	body, err := json.Marshal(map[string]any{
		"question":  question,
		"withRAG":   withRAG,
		"withTools": withTools,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/v1/ai/completions", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("completions failed (%d): %s", resp.StatusCode, raw)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "chunk":
				var frame struct {
					Content string `json:"content"`
				}
				if json.Unmarshal([]byte(data), &frame) == nil {
					onChunk(frame.Content)
				}
			case "error":
				var frame struct {
					Error string `json:"error"`
				}
				_ = json.Unmarshal([]byte(data), &frame)
				return fmt.Errorf("stream error: %s", frame.Error)
			case "done":
				return nil
			}
		}
	}
	return scanner.Err()
}
