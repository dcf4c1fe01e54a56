package vector

import (
	"context"
	"testing"
)

func newSQLiteForTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteForTest(t)
	if err := s.Create(ctx, &Index{Name: "blinko", Dimension: 3, Distance: "cosine"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	vecs := []*Vector{
		{ID: "v1", Values: []float64{1, 0, 0}, Metadata: map[string]string{MetaNoteID: "1", MetaText: "alpha"}},
		{ID: "v2", Values: []float64{0, 1, 0}, Metadata: map[string]string{MetaNoteID: "2", MetaText: "beta"}},
	}
	if err := s.Add(ctx, "blinko", vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := s.Search(ctx, "blinko", []float64{1, 0, 0}, &SearchOptions{TopK: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "v1" {
		t.Fatalf("Search: got %+v", results)
	}
	if results[0].Metadata[MetaText] != "alpha" {
		t.Errorf("metadata lost: %+v", results[0].Metadata)
	}

	got, err := s.Get(ctx, "blinko", "v2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Values[1] != 1 {
		t.Errorf("Get values: %v", got.Values)
	}
}

func TestSQLiteStore_UpsertSameID(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteForTest(t)
	_ = s.Create(ctx, &Index{Name: "i", Dimension: 2})
	if err := s.Add(ctx, "i", []*Vector{{ID: "v", Values: []float64{1, 0}}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, "i", []*Vector{{ID: "v", Values: []float64{0, 1}, Metadata: map[string]string{"k": "1"}}}); err != nil {
		t.Fatalf("Add replace: %v", err)
	}
	got, err := s.Get(ctx, "i", "v")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Values[0] != 0 || got.Metadata["k"] != "1" {
		t.Errorf("replace did not stick: %+v", got)
	}
}

func TestSQLiteStore_DeleteByFilter(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteForTest(t)
	_ = s.Create(ctx, &Index{Name: "i", Dimension: 2})
	_ = s.Add(ctx, "i", []*Vector{
		{ID: "a", Values: []float64{1, 0}, Metadata: map[string]string{MetaNoteID: "9"}},
		{ID: "b", Values: []float64{0, 1}, Metadata: map[string]string{MetaNoteID: "9"}},
		{ID: "c", Values: []float64{0, 1}, Metadata: map[string]string{MetaNoteID: "8"}},
	})
	n, err := s.DeleteByFilter(ctx, "i", map[string]string{MetaNoteID: "9"})
	if err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	results, _ := s.Search(ctx, "i", []float64{0, 1}, &SearchOptions{TopK: 10})
	if len(results) != 1 || results[0].ID != "c" {
		t.Errorf("survivors: %+v", results)
	}
}

func TestSQLiteStore_IndexLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteForTest(t)
	if err := s.Create(ctx, &Index{Name: "x", Dimension: 2}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, &Index{Name: "x", Dimension: 2}); err == nil {
		t.Error("duplicate Create should error")
	}
	if err := s.Add(ctx, "missing", []*Vector{{ID: "v", Values: []float64{1, 0}}}); err == nil {
		t.Error("Add to missing index should error")
	}
	if err := s.DeleteIndex(ctx, "x"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if _, err := s.Search(ctx, "x", []float64{1, 0}, nil); err == nil {
		t.Error("Search on deleted index should error")
	}
	names, _ := s.ListIndexes(ctx)
	if len(names) != 0 {
		t.Errorf("indexes should be empty, got %v", names)
	}
}
