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

package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore 单文件 SQLite 向量存储。库里没有向量类型，嵌入以 JSON
// 存列、相似度在进程内计算；写侧持单写锁，读侧靠 WAL 并发。
type SQLiteStore struct {
	db  *sql.DB
	wmu sync.Mutex
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vector_indexes (
	name      TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL,
	distance  TEXT NOT NULL DEFAULT 'cosine'
);
CREATE TABLE IF NOT EXISTS vectors (
	index_name TEXT NOT NULL,
	id         TEXT NOT NULL,
	embedding  TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (index_name, id)
);
`

// NewSQLiteStore 打开（或创建）dir 下的 vectors.db
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if dir == "" {
		dir = ".blinko"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	file := filepath.Join(dir, "vectors.db")
	db, err := sql.Open("sqlite3", file+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init vector schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) indexMeta(ctx context.Context, name string) (dimension int, distance string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT dimension, distance FROM vector_indexes WHERE name = ?`, name).
		Scan(&dimension, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("index with name %s not found", name)
	}
	return dimension, distance, err
}

// Create 创建向量索引
func (s *SQLiteStore) Create(ctx context.Context, idx *Index) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	distance := idx.Distance
	if distance == "" {
		distance = "cosine"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO vector_indexes (name, dimension, distance) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		idx.Name, idx.Dimension, distance)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index with name %s already exists", idx.Name)
	}
	return nil
}

// Add 添加向量；同 ID 覆盖旧值
func (s *SQLiteStore) Add(ctx context.Context, indexName string, vectors []*Vector) error {
	dimension, _, err := s.indexMeta(ctx, indexName)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, vector := range vectors {
		if len(vector.Values) != dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector.Values), dimension)
		}
		embedding, err := json.Marshal(vector.Values)
		if err != nil {
			return err
		}
		metadata, err := json.Marshal(vector.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vectors (index_name, id, embedding, metadata) VALUES (?, ?, ?, ?)
			 ON CONFLICT(index_name, id) DO UPDATE SET embedding = excluded.embedding, metadata = excluded.metadata`,
			indexName, vector.ID, string(embedding), string(metadata)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Search 全索引扫描 + 进程内打分；笔记库量级下足够
func (s *SQLiteStore) Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	dimension, distance, err := s.indexMeta(ctx, indexName)
	if err != nil {
		return nil, err
	}
	if len(query) != dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), dimension)
	}
	if options == nil {
		options = &SearchOptions{TopK: 10, Threshold: 0.0}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding, metadata FROM vectors WHERE index_name = ?`, indexName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var id, rawEmbedding, rawMetadata string
		if err := rows.Scan(&id, &rawEmbedding, &rawMetadata); err != nil {
			return nil, err
		}
		var values []float64
		if err := json.Unmarshal([]byte(rawEmbedding), &values); err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", id, err)
		}
		var metadata map[string]string
		if err := json.Unmarshal([]byte(rawMetadata), &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", id, err)
		}
		if !matchesFilter(metadata, options.Filter) {
			continue
		}
		score := calculateSimilarity(query, values, distance)
		if score < options.Threshold {
			continue
		}
		result := &SearchResult{ID: id, Score: score, Metadata: metadata}
		if options.IncludeVectors {
			result.Values = values
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > options.TopK {
		results = results[:options.TopK]
	}
	return results, nil
}

// Get 根据 ID 获取向量
func (s *SQLiteStore) Get(ctx context.Context, indexName string, id string) (*Vector, error) {
	var rawEmbedding, rawMetadata string
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding, metadata FROM vectors WHERE index_name = ? AND id = ?`,
		indexName, id).Scan(&rawEmbedding, &rawMetadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vector with ID %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	v := &Vector{ID: id}
	if err := json.Unmarshal([]byte(rawEmbedding), &v.Values); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rawMetadata), &v.Metadata); err != nil {
		return nil, err
	}
	return v, nil
}

// Delete 删除向量
func (s *SQLiteStore) Delete(ctx context.Context, indexName string, id string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE index_name = ? AND id = ?`, indexName, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vector with ID %s not found", id)
	}
	return nil
}

// DeleteByFilter 删除元数据完全匹配的全部向量
func (s *SQLiteStore) DeleteByFilter(ctx context.Context, indexName string, filter map[string]string) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("empty filter")
	}
	if _, _, err := s.indexMeta(ctx, indexName); err != nil {
		return 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, metadata FROM vectors WHERE index_name = ?`, indexName)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id, rawMetadata string
		if err := rows.Scan(&id, &rawMetadata); err != nil {
			rows.Close()
			return 0, err
		}
		var metadata map[string]string
		if err := json.Unmarshal([]byte(rawMetadata), &metadata); err != nil {
			rows.Close()
			return 0, err
		}
		if matchesFilter(metadata, filter) {
			ids = append(ids, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vectors WHERE index_name = ? AND id = ?`, indexName, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DeleteIndex 删除索引及其全部向量
func (s *SQLiteStore) DeleteIndex(ctx context.Context, indexName string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vectors WHERE index_name = ?`, indexName); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM vector_indexes WHERE name = ?`, indexName)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index with name %s not found", indexName)
	}
	return tx.Commit()
}

// ListIndexes 列出所有索引
func (s *SQLiteStore) ListIndexes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM vector_indexes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close 关闭存储连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
