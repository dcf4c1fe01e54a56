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

package splitter

import (
	"strings"

	"github.com/google/uuid"
)

// token 切片器的缺省窗口
const (
	defaultMaxTokens    = 512
	defaultTokenOverlap = 100
)

// TokenSplitter 词级滑动窗口切片器。没有 markdown 结构可依赖的
// 纯文本（附件提取产物、日志粘贴）用它兜底；token 即空白分词后的
// 词，不走真实 tokenizer。
type TokenSplitter struct{}

// NewTokenSplitter 创建词级切片器
func NewTokenSplitter() *TokenSplitter {
	return &TokenSplitter{}
}

func (s *TokenSplitter) Name() string {
	return "token_splitter"
}

// Split 按词数滑窗切块；options 支持 max_tokens 与 chunk_overlap
func (s *TokenSplitter) Split(content string, options map[string]interface{}) ([]Chunk, error) {
	maxTokens, overlap := defaultMaxTokens, defaultTokenOverlap
	if v, ok := options["max_tokens"].(int); ok && v > 0 {
		maxTokens = v
	}
	if v, ok := options["chunk_overlap"].(int); ok && v > 0 {
		overlap = v
	}

	words := strings.Fields(content)
	var chunks []Chunk
	var window []string
	flush := func() {
		chunks = append(chunks, Chunk{
			ID:         uuid.New().String(),
			Content:    strings.Join(window, " "),
			Index:      len(chunks),
			TokenCount: len(window),
		})
	}
	for _, w := range words {
		if len(window)+1 > maxTokens {
			flush()
			// 窗口尾部 overlap 个词带入下一片，保住跨片上下文
			if len(window) > overlap {
				window = window[len(window)-overlap:]
			} else {
				window = nil
			}
		}
		window = append(window, w)
	}
	if len(window) > 0 {
		flush()
	}
	return chunks, nil
}
