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

	einoembed "github.com/cloudwego/eino/components/embedding"

	"note-platform/internal/model/embedding"
)

// EmbedderAdapter 把内部 embedding.Client 适配为 eino 的 Embedder。
// Resolve 在每次调用时重新取客户端，模型配置变更随即生效。
type EmbedderAdapter struct {
	Resolve func(ctx context.Context) (embedding.Client, error)
}

// EmbedStrings 实现 eino/components/embedding.Embedder，忽略 opts
func (a *EmbedderAdapter) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	if a == nil || a.Resolve == nil || len(texts) == 0 {
		return nil, nil
	}
	client, err := a.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return client.Embed(ctx, texts)
}

var _ einoembed.Embedder = (*EmbedderAdapter)(nil)
