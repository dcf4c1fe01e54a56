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

// note CLI：对 API 进程的命令行客户端。地址与令牌从环境读：
// NOTE_API_URL（默认 http://127.0.0.1:1111）、NOTE_API_TOKEN。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

const version = "note-platform cli 0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	base := os.Getenv("NOTE_API_URL")
	if base == "" {
		base = "http://127.0.0.1:1111"
	}
	client := newAPIClient(base, os.Getenv("NOTE_API_TOKEN"))

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "version":
		fmt.Println(version)
	case "health":
		err = runHealth(ctx, client)
	case "notes":
		err = runNotes(ctx, client, args)
	case "ask":
		err = runAsk(ctx, client, args)
	case "rebuild":
		err = runRebuild(ctx, client, args)
	case "tasks":
		err = runTasks(ctx, client)
	case "ai-tasks":
		err = runAITasks(ctx, client)
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: note <command> [args]

Commands:
  version                打印版本
  health                 探活
  notes list [keyword]   列出笔记
  notes add <content>    新建笔记
  ask <question>         流式问答（带 RAG 与工具）
  rebuild start|progress 向量索引重建
  tasks                  内建后台任务状态
  ai-tasks               用户定时任务列表`)
}

func runHealth(ctx context.Context, c *apiClient) error {
	resp, err := http.Get(c.base + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy (%d)", resp.StatusCode)
	}
	fmt.Println("ok")
	return nil
}

func runNotes(ctx context.Context, c *apiClient, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: note notes list|add")
	}
	switch args[0] {
	case "list":
		body := map[string]any{}
		if len(args) > 1 {
			body["searchText"] = args[1]
		}
		data, err := c.call(ctx, http.MethodPost, "/api/v1/notes/list", body)
		if err != nil {
			return err
		}
		return printJSON(data)
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: note notes add <content>")
		}
		data, err := c.call(ctx, http.MethodPost, "/api/v1/notes/upsert",
			map[string]string{"content": strings.Join(args[1:], " ")})
		if err != nil {
			return err
		}
		return printJSON(data)
	default:
		return fmt.Errorf("unknown notes command %q", args[0])
	}
}

func runAsk(ctx context.Context, c *apiClient, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: note ask <question>")
	}
	err := c.ask(ctx, strings.Join(args, " "), true, true, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	return err
}

func runRebuild(ctx context.Context, c *apiClient, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: note rebuild start|progress")
	}
	switch args[0] {
	case "start":
		data, err := c.call(ctx, http.MethodPost, "/api/v1/ai/rebuild/start",
			map[string]bool{"force": true, "incremental": false})
		if err != nil {
			return err
		}
		return printJSON(data)
	case "progress":
		data, err := c.call(ctx, http.MethodGet, "/api/v1/ai/rebuild/progress", nil)
		if err != nil {
			return err
		}
		return printJSON(data)
	default:
		return fmt.Errorf("unknown rebuild command %q", args[0])
	}
}

func runTasks(ctx context.Context, c *apiClient) error {
	data, err := c.call(ctx, http.MethodGet, "/api/v1/tasks", nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func runAITasks(ctx context.Context, c *apiClient) error {
	data, err := c.call(ctx, http.MethodGet, "/api/v1/ai-tasks", nil)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func printJSON(raw json.RawMessage) error {
	var buf map[string]any
	if err := json.Unmarshal(raw, &buf); err == nil {
		out, _ := json.MarshalIndent(buf, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(string(raw))
	return nil
}
