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

package embedding

import (
	"context"
	"fmt"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"note-platform/internal/einoext"
	"note-platform/pkg/config"
)

// einoDriver redis 后端：写读走 eino-ext 的 indexer/retriever，
// 删除按键前缀扫描。文档键为 <collection><noteID>-<chunk>，借助
// 稳定 ID 实现按笔记删除与覆盖写。
type einoDriver struct {
	indexer   einoindexer.Indexer
	retriever einoretriever.Retriever
	client    *redis.Client
	prefix    string
}

func newEinoDriver(ctx context.Context, cfg config.VectorConfig, resolve resolveFunc) (*einoDriver, error) {
	collection := cfg.Collection
	if collection == "" {
		collection = "blinko"
	}
	client, err := einoext.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	adapter := &einoext.EmbedderAdapter{Resolve: resolve}
	idx, err := einoext.NewIndexer(ctx, client, collection, adapter)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	ret, err := einoext.NewRetriever(ctx, client, collection, adapter)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &einoDriver{
		indexer:   idx,
		retriever: ret,
		client:    client,
		prefix:    collection,
	}, nil
}

func (d *einoDriver) AddChunks(ctx context.Context, docs []chunkDoc) error {
	if len(docs) == 0 {
		return nil
	}
	sdocs := make([]*schema.Document, 0, len(docs))
	for _, doc := range docs {
		meta := make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		sdocs = append(sdocs, &schema.Document{
			ID:       doc.ID,
			Content:  doc.Text,
			MetaData: meta,
		})
	}
	if _, err := d.indexer.Store(ctx, sdocs); err != nil {
		return fmt.Errorf("eino indexer store: %w", err)
	}
	return nil
}

func (d *einoDriver) Search(ctx context.Context, query string, topK int, threshold float64) ([]match, error) {
	docs, err := d.retriever.Retrieve(ctx, query, einoretriever.WithTopK(topK))
	if err != nil {
		return nil, fmt.Errorf("eino retriever: %w", err)
	}
	out := make([]match, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		score := doc.Score()
		if score < threshold {
			continue
		}
		out = append(out, match{
			NoteID: noteIDFromDocID(doc.ID),
			Score:  score,
			Text:   doc.Content,
		})
	}
	return out, nil
}

func (d *einoDriver) DeleteNote(ctx context.Context, noteID int64) error {
	return d.deleteByPattern(ctx, fmt.Sprintf("%s%d-*", d.prefix, noteID))
}

// Reset 清空集合下的全部向量键
func (d *einoDriver) Reset(ctx context.Context) error {
	return d.deleteByPattern(ctx, d.prefix+"*")
}

func (d *einoDriver) deleteByPattern(ctx context.Context, pattern string) error {
	iter := d.client.Scan(ctx, 0, pattern, 200).Iterator()
	keys := make([]string, 0, 200)
	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		if err := d.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
		keys = keys[:0]
		return nil
	}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 200 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

func (d *einoDriver) Close() error {
	return d.client.Close()
}
