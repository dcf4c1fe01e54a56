// Copyright 2026 fanjia1024
// Tests for embedding dimension inference

package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuessDimension(t *testing.T) {
	cases := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"bge-m3", 1024},
		{"bge-m3:latest", 1024},
		{"voyage-3.5", 1024},
		{"nomic-embed-text", 768},
		{"all-minilm", 384},
		{"bge-small-en-v1.5", 512},
		{"Text-Embedding-3-Small", 1536}, // 大小写不敏感
		{"totally-unknown-model", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GuessDimension(tc.model), tc.model)
	}
}
