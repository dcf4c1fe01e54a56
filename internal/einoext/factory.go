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

package einoext

import (
	"context"
	"fmt"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"

	"note-platform/pkg/config"
)

const (
	defaultBatchSize = 100
	defaultTopK      = 10
)

// NewClient 建立 redis 连接并探活；调用方负责 Close
func NewClient(ctx context.Context, cfg config.VectorConfig) (*redis.Client, error) {
	client := redis.NewClient(RedisOptions(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewIndexer 基于共享连接创建 eino Indexer；向量键以 keyPrefix 开头
func NewIndexer(ctx context.Context, client *redis.Client, keyPrefix string, embedder einoembed.Embedder) (einoindexer.Indexer, error) {
	idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
		Client:    client,
		KeyPrefix: keyPrefix,
		BatchSize: defaultBatchSize,
		Embedding: embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("redis indexer: %w", err)
	}
	return idx, nil
}

// NewRetriever 基于共享连接创建 eino Retriever；TopK 可被调用方选项覆盖
func NewRetriever(ctx context.Context, client *redis.Client, index string, embedder einoembed.Embedder) (einoretriever.Retriever, error) {
	ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
		Client:    client,
		Index:     index,
		TopK:      defaultTopK,
		Embedding: embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("redis retriever: %w", err)
	}
	return ret, nil
}
