package vector

import (
	"context"
	"strconv"
	"testing"
)

func TestMemoryStore_Create_Add_Search(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	idx := &Index{Name: "idx1", Dimension: 2, Distance: "cosine"}
	if err := s.Create(ctx, idx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	vecs := []*Vector{
		{ID: "v1", Values: []float64{1, 0}},
		{ID: "v2", Values: []float64{0, 1}},
	}
	if err := s.Add(ctx, "idx1", vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := s.Search(ctx, "idx1", []float64{1, 0}, &SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) < 1 {
		t.Fatalf("Search: expected at least 1 result, got %d", len(results))
	}
	if results[0].ID != "v1" {
		t.Errorf("Search: expected v1 first (cosine sim), got %s", results[0].ID)
	}
}

func TestMemoryStore_Create_DuplicateIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	idx := &Index{Name: "x", Dimension: 2}
	_ = s.Create(ctx, idx)
	err := s.Create(ctx, idx)
	if err == nil {
		t.Error("Create duplicate index should error")
	}
}

func TestMemoryStore_Add_IndexNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	err := s.Add(ctx, "missing", []*Vector{{ID: "v1", Values: []float64{1}}})
	if err == nil {
		t.Error("Add to missing index should error")
	}
}

func TestMemoryStore_Add_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, &Index{Name: "i", Dimension: 2})
	err := s.Add(ctx, "i", []*Vector{{ID: "v1", Values: []float64{1, 0, 0}}})
	if err == nil {
		t.Error("Add with wrong dimension should error")
	}
}

func TestMemoryStore_Search_IndexNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Search(ctx, "missing", []float64{1}, nil)
	if err == nil {
		t.Error("Search missing index should error")
	}
}

func TestMemoryStore_Add_ReplacesSameID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, &Index{Name: "i", Dimension: 2})
	_ = s.Add(ctx, "i", []*Vector{{ID: "v1", Values: []float64{1, 0}}})
	if err := s.Add(ctx, "i", []*Vector{{ID: "v1", Values: []float64{0, 1}}}); err != nil {
		t.Fatalf("Add replace: %v", err)
	}
	v, err := s.Get(ctx, "i", "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Values[0] != 0 || v.Values[1] != 1 {
		t.Errorf("replace did not stick: %v", v.Values)
	}
}

func TestMemoryStore_Search_FilterAndThreshold(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, &Index{Name: "i", Dimension: 2, Distance: "cosine"})
	_ = s.Add(ctx, "i", []*Vector{
		{ID: "a", Values: []float64{1, 0}, Metadata: map[string]string{MetaNoteID: "1"}},
		{ID: "b", Values: []float64{1, 0}, Metadata: map[string]string{MetaNoteID: "2"}},
		{ID: "c", Values: []float64{0, 1}, Metadata: map[string]string{MetaNoteID: "1"}},
	})
	results, err := s.Search(ctx, "i", []float64{1, 0}, &SearchOptions{
		TopK:      10,
		Filter:    map[string]string{MetaNoteID: "1"},
		Threshold: 0.5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Errorf("filter+threshold: got %+v", results)
	}
}

func TestMemoryStore_DeleteByFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, &Index{Name: "i", Dimension: 2})
	for k := 0; k < 3; k++ {
		_ = s.Add(ctx, "i", []*Vector{{
			ID:       "n42-" + strconv.Itoa(k),
			Values:   []float64{1, 0},
			Metadata: map[string]string{MetaNoteID: "42"},
		}})
	}
	_ = s.Add(ctx, "i", []*Vector{{
		ID:       "n7-0",
		Values:   []float64{0, 1},
		Metadata: map[string]string{MetaNoteID: "7"},
	}})

	n, err := s.DeleteByFilter(ctx, "i", map[string]string{MetaNoteID: "42"})
	if err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 deleted, got %d", n)
	}
	if _, err := s.Get(ctx, "i", "n7-0"); err != nil {
		t.Errorf("unrelated vector should survive: %v", err)
	}
	// 空过滤器拒绝，避免整索引误删
	if _, err := s.DeleteByFilter(ctx, "i", nil); err == nil {
		t.Error("empty filter should error")
	}
}

func TestEnsureIndex_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := EnsureIndex(ctx, s, "blinko", 4, ""); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if err := EnsureIndex(ctx, s, "blinko", 4, ""); err != nil {
		t.Fatalf("EnsureIndex twice: %v", err)
	}
	names, _ := s.ListIndexes(ctx)
	if len(names) != 1 {
		t.Errorf("expected 1 index, got %v", names)
	}
}
