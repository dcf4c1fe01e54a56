package embedding

import (
	"context"
	"strings"

	"note-platform/internal/storage/db"
	"note-platform/pkg/errors"
)

// QueryResult 语义检索结果；AggregatedContext 为命中笔记正文的拼接
type QueryResult struct {
	Notes             []*db.Note `json:"notes"`
	AggregatedContext string     `json:"aggregatedContext"`
}

// QueryVector 语义检索：向量化查询、按阈值过滤、按笔记去重，
// 只返回 ownerID 名下未回收的笔记。topK 为 0 时取配置值，缺省 3。
func (s *Service) QueryVector(ctx context.Context, q string, ownerID int64, topK int) (*QueryResult, error) {
	matches, err := s.driver.Search(ctx, q, s.topK(topK), s.scoreThreshold())
	if err != nil {
		return nil, errors.Wrap(err, "vector search")
	}

	// 去重保序：驱动按相似度降序返回，保留每条笔记的最高命中
	seen := make(map[int64]bool, len(matches))
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		if m.NoteID == 0 || seen[m.NoteID] {
			continue
		}
		seen[m.NoteID] = true
		ids = append(ids, m.NoteID)
	}
	if len(ids) == 0 {
		return &QueryResult{}, nil
	}

	rows, err := s.notes.GetMany(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "hydrate notes")
	}
	notes := make([]*db.Note, 0, len(rows))
	parts := make([]string, 0, len(rows))
	for _, n := range rows {
		if n.OwnerID != ownerID || n.IsRecycle {
			continue
		}
		notes = append(notes, n)
		parts = append(parts, n.Content)
	}
	return &QueryResult{
		Notes:             notes,
		AggregatedContext: strings.Join(parts, "\n\n"),
	}, nil
}
