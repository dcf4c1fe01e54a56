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

package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"note-platform/pkg/log"
)

// Extractor 把一个本地文件抽成纯文本
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Service 按扩展名分发的文本提取器。路径来自存储适配层，
// 这里只读本地文件，不负责取回远端对象。
type Service struct {
	extractors map[string]Extractor // ".pdf" → extractor
	fallback   Extractor
	log        *log.Logger
}

// NewService 创建提取服务并注册内置提取器
func NewService(logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		extractors: make(map[string]Extractor),
		fallback:   &TextExtractor{},
		log:        logger.Named("extract"),
	}

	s.Register(".pdf", &PDFExtractor{})
	s.Register(".docx", &DocxExtractor{})
	s.Register(".csv", &CSVExtractor{})
	s.Register(".txt", &TextExtractor{})
	s.Register(".md", &TextExtractor{})
	s.Register(".markdown", &TextExtractor{})
	return s
}

// Register 注册或覆盖某扩展名的提取器
func (s *Service) Register(ext string, e Extractor) {
	s.extractors[strings.ToLower(ext)] = e
}

// ExtractFile 按扩展名提取文本，未注册的扩展名按纯文本读取
func (s *Service) ExtractFile(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extractor, ok := s.extractors[ext]
	if !ok {
		s.log.Debug("no extractor for extension, falling back to plain text", "ext", ext)
		extractor = s.fallback
	}

	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return text, nil
}

// TextExtractor 纯文本提取器，也是未知扩展名的兜底
type TextExtractor struct{}

// Extract 读出整个文件
func (e *TextExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
