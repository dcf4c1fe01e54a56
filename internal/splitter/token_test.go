package splitter

import (
	"strings"
	"testing"
)

func TestTokenSplitterName(t *testing.T) {
	if got := NewTokenSplitter().Name(); got != "token_splitter" {
		t.Errorf("Name = %q", got)
	}
}

func TestTokenSplitterShortNoteSingleChunk(t *testing.T) {
	s := NewTokenSplitter()
	chunks, err := s.Split("buy oat milk tomorrow", nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Content != "buy oat milk tomorrow" || chunks[0].Index != 0 {
		t.Errorf("chunk = %+v", chunks[0])
	}
	if chunks[0].TokenCount != 4 {
		t.Errorf("TokenCount = %d, want 4", chunks[0].TokenCount)
	}
}

func TestTokenSplitterOverlapCarriesContext(t *testing.T) {
	s := NewTokenSplitter()
	content := strings.Repeat("word ", 10) + "tail"
	chunks, err := s.Split(content, map[string]interface{}{
		"max_tokens":    4,
		"chunk_overlap": 2,
	})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want >= 2", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Content)
		cur := strings.Fields(chunks[i].Content)
		// 重叠窗口：下一片以上一片的尾部 token 开头
		if cur[0] != prev[len(prev)-2] {
			t.Errorf("chunk %d does not start with overlap of chunk %d: %q vs %q", i, i-1, cur, prev)
		}
		if chunks[i].Index != i {
			t.Errorf("chunk %d Index = %d", i, chunks[i].Index)
		}
	}
}

func TestTokenSplitterEmptyNote(t *testing.T) {
	chunks, err := NewTokenSplitter().Split("", nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(chunks))
	}
}
