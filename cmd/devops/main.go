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

// devops 启动 Eino Dev 调试服务并注册示例编排，供 IDE 插件（Eino Dev）
// 连接后可视化调试。使用：go run ./cmd/devops；在 IDE 中配置连接地址
// 127.0.0.1:52538 后选择编排进行 Test Run。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/cloudwego/eino/compose"
)

// NoteInput 示例编排输入
type NoteInput struct {
	Content string `json:"content"`
}

// NoteOutput 示例编排输出
type NoteOutput struct {
	Content string `json:"content"`
	Tags    []string `json:"tags"`
}

// registerTagGraph 注册一个"抽标签"示例图：校验笔记内容后抽出 #tag
func registerTagGraph(ctx context.Context) error {
	g := compose.NewGraph[*NoteInput, *NoteOutput]()

	g.AddLambdaNode("validate", compose.InvokableLambda(func(ctx context.Context, input *NoteInput) (*NoteOutput, error) {
		if input == nil || strings.TrimSpace(input.Content) == "" {
			return nil, fmt.Errorf("笔记内容不能为空")
		}
		return &NoteOutput{Content: input.Content}, nil
	}))

	g.AddLambdaNode("extract-tags", compose.InvokableLambda(func(ctx context.Context, input *NoteOutput) (*NoteOutput, error) {
		if input == nil {
			return &NoteOutput{}, nil
		}
		for _, word := range strings.Fields(input.Content) {
			if strings.HasPrefix(word, "#") && len(word) > 1 {
				input.Tags = append(input.Tags, strings.TrimPrefix(word, "#"))
			}
		}
		return input, nil
	}))

	g.AddEdge(compose.START, "validate")
	g.AddEdge("validate", "extract-tags")
	g.AddEdge("extract-tags", compose.END)

	_, err := g.Compile(ctx)
	if err != nil {
		return fmt.Errorf("compile tag graph: %w", err)
	}
	return nil
}

// registerEchoGraph 再注册一个极简 echo 图，便于插件中看到多个 artifact
func registerEchoGraph(ctx context.Context) error {
	g := compose.NewGraph[*NoteInput, *NoteOutput]()

	g.AddLambdaNode("echo", compose.InvokableLambda(func(ctx context.Context, input *NoteInput) (*NoteOutput, error) {
		if input == nil {
			return &NoteOutput{}, nil
		}
		return &NoteOutput{Content: "echo: " + input.Content}, nil
	}))

	g.AddEdge(compose.START, "echo")
	g.AddEdge("echo", compose.END)

	_, err := g.Compile(ctx)
	if err != nil {
		return fmt.Errorf("compile echo graph: %w", err)
	}
	return nil
}

func main() {
	ctx := context.Background()

	// Eino Dev 调试服务必须在任何 Compile 之前初始化
	if err := devops.Init(ctx); err != nil {
		log.Fatalf("[eino dev] init failed: %v", err)
	}

	if err := registerTagGraph(ctx); err != nil {
		log.Fatalf("[eino dev] register tag graph: %v", err)
	}
	if err := registerEchoGraph(ctx); err != nil {
		log.Fatalf("[eino dev] register echo graph: %v", err)
	}

	log.Println("[eino dev] server listening on 127.0.0.1:52538; open Eino Dev in IDE and configure this address to debug")
	log.Println("[eino dev] press Ctrl+C to exit")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Println("[eino dev] shutting down")
}
