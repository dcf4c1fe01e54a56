package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestMarkdownSplitter_ShortContent(t *testing.T) {
	s := NewMarkdownSplitter()
	chunks, err := s.Split("# Note\n\njust a short note", nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "short note") {
		t.Errorf("chunk content: %q", chunks[0].Content)
	}
}

func TestMarkdownSplitter_EmptyContent(t *testing.T) {
	s := NewMarkdownSplitter()
	chunks, err := s.Split("   \n\n  ", nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("blank content should yield 0 chunks, got %d", len(chunks))
	}
}

func TestMarkdownSplitter_RespectsChunkSize(t *testing.T) {
	s := NewMarkdownSplitter()
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("## Section\n\n")
		b.WriteString(strings.Repeat("word ", 30))
		b.WriteString("\n\n")
	}
	options := map[string]interface{}{"chunk_size": 400, "chunk_overlap": 40}
	chunks, err := s.Split(b.String(), options)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Content); n > 400 {
			t.Errorf("chunk %d exceeds size: %d runes", i, n)
		}
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.ID == "" {
			t.Errorf("chunk %d has empty id", i)
		}
	}
}

func TestMarkdownSplitter_HeadingsStartChunks(t *testing.T) {
	s := NewMarkdownSplitter()
	content := "## Alpha\n" + strings.Repeat("aaa ", 60) +
		"\n## Beta\n" + strings.Repeat("bbb ", 60)
	chunks, err := s.Split(content, map[string]interface{}{"chunk_size": 260, "chunk_overlap": 0})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	var betaStarts bool
	for _, c := range chunks {
		if strings.HasPrefix(c.Content, "## Beta") {
			betaStarts = true
		}
	}
	if !betaStarts {
		t.Errorf("expected a chunk starting with the Beta heading, got %d chunks", len(chunks))
	}
}

func TestMarkdownSplitter_OverlapCarried(t *testing.T) {
	s := NewMarkdownSplitter()
	content := strings.Repeat("alpha beta gamma delta. ", 60)
	chunks, err := s.Split(content, map[string]interface{}{"chunk_size": 200, "chunk_overlap": 50})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// 前一块的尾部应出现在后一块的开头附近
	prevTail := chunks[0].Content[len(chunks[0].Content)-20:]
	if !strings.Contains(chunks[1].Content, strings.TrimSpace(prevTail)) {
		t.Errorf("overlap not carried: tail=%q next=%q", prevTail, chunks[1].Content[:40])
	}
}

func TestEngine_Dispatch(t *testing.T) {
	e := NewEngine()
	chunks, err := e.Split("hello splitter", "markdown", nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
	if _, err := e.Split("x", "unknown", nil); err == nil {
		t.Error("unknown splitter should error")
	}
	if _, err := e.GetSplitter("token"); err != nil {
		t.Errorf("token splitter should be registered: %v", err)
	}
}
