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

// Package splitter 文本切片：笔记与附件正文进入向量索引前按
// markdown 结构切块。
package splitter

import (
	"fmt"
)

// Chunk 文本切片
type Chunk struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Index      int    `json:"index"`
	TokenCount int    `json:"token_count"`
}

// Splitter 切片器接口
type Splitter interface {
	Split(content string, options map[string]interface{}) ([]Chunk, error)
	Name() string
}

// Engine 切片引擎
type Engine struct {
	name      string
	splitters map[string]Splitter
}

// NewEngine 创建新的切片引擎
func NewEngine() *Engine {
	engine := &Engine{
		name:      "splitter_engine",
		splitters: make(map[string]Splitter),
	}

	// 注册内置切片器
	engine.registerSplitters()

	return engine
}

// Name 返回引擎名称
func (e *Engine) Name() string {
	return e.name
}

// registerSplitters 注册切片器
func (e *Engine) registerSplitters() {
	e.splitters["markdown"] = NewMarkdownSplitter()
	e.splitters["token"] = NewTokenSplitter()
}

// AddSplitter 添加自定义切片器
func (e *Engine) AddSplitter(name string, splitter Splitter) {
	e.splitters[name] = splitter
}

// GetSplitter 获取切片器
func (e *Engine) GetSplitter(name string) (Splitter, error) {
	splitter, exists := e.splitters[name]
	if !exists {
		return nil, fmt.Errorf("splitter not found: %s", name)
	}
	return splitter, nil
}

// Split 执行切片
func (e *Engine) Split(content string, splitterName string, options map[string]interface{}) ([]Chunk, error) {
	splitter, err := e.GetSplitter(splitterName)
	if err != nil {
		return nil, err
	}

	chunks, err := splitter.Split(content, options)
	if err != nil {
		return nil, fmt.Errorf("split failed: %w", err)
	}

	return chunks, nil
}
