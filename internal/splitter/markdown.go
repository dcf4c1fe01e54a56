package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MarkdownSplitter 结构切片器：优先在标题、围栏与空行处断块，
// 超长块逐级回退到行与空格边界；块间保留定长重叠
type MarkdownSplitter struct {
	name string
}

// 分隔符按结构强度排序
var markdownSeparators = []string{"\n# ", "\n## ", "\n### ", "\n#### ", "\n```", "\n\n", "\n", " "}

// NewMarkdownSplitter 创建新的 markdown 切片器
func NewMarkdownSplitter() *MarkdownSplitter {
	return &MarkdownSplitter{
		name: "markdown_splitter",
	}
}

// Name 返回切片器名称
func (s *MarkdownSplitter) Name() string {
	return s.name
}

// Split 执行 markdown 切片；尺寸以 rune 计
func (s *MarkdownSplitter) Split(content string, options map[string]interface{}) ([]Chunk, error) {
	chunkSize := 2000
	chunkOverlap := 200

	if size, ok := options["chunk_size"].(int); ok && size > 0 {
		chunkSize = size
	}
	if overlap, ok := options["chunk_overlap"].(int); ok && overlap > 0 {
		chunkOverlap = overlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}

	pieces := s.splitRecursive(content, markdownSeparators, chunkSize)
	merged := s.merge(pieces, chunkSize, chunkOverlap)

	var chunks []Chunk
	for _, text := range merged {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:         uuid.New().String(),
			Content:    text,
			Index:      len(chunks),
			TokenCount: utf8.RuneCountInString(text),
		})
	}
	return chunks, nil
}

// splitRecursive 沿分隔符层级把文本拆成不超过 chunkSize 的片段
func (s *MarkdownSplitter) splitRecursive(text string, separators []string, chunkSize int) []string {
	if utf8.RuneCountInString(text) <= chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	if len(separators) == 0 {
		return s.hardSplit(text, chunkSize)
	}

	sep := separators[0]
	rest := separators[1:]
	if !strings.Contains(text, sep) {
		return s.splitRecursive(text, rest, chunkSize)
	}

	// 标题与围栏的起始标记在重组后保留
	marker := strings.TrimPrefix(sep, "\n")
	if strings.TrimSpace(marker) == "" {
		marker = ""
	}

	parts := strings.Split(text, sep)
	var out []string
	for i, part := range parts {
		if i > 0 {
			part = marker + part
		}
		out = append(out, s.splitRecursive(part, rest, chunkSize)...)
	}
	return out
}

// merge 贪心合并片段，块间携带重叠尾部
func (s *MarkdownSplitter) merge(pieces []string, chunkSize, chunkOverlap int) []string {
	var out []string
	var current []rune

	for _, piece := range pieces {
		pr := []rune(piece)
		if len(current) > 0 && len(current)+1+len(pr) > chunkSize {
			out = append(out, string(current))
			if chunkOverlap > 0 && len(current) > chunkOverlap {
				current = append([]rune(nil), current[len(current)-chunkOverlap:]...)
			} else {
				current = current[:0]
			}
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, pr...)
	}

	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

// hardSplit 无结构可依时按定长切
func (s *MarkdownSplitter) hardSplit(text string, chunkSize int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
