package embedding

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	modelembed "note-platform/internal/model/embedding"
	"note-platform/internal/storage/vector"
)

// chunkDoc 待写入的一条切片文档；Text 已带时间后缀
type chunkDoc struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// match 一条向量命中，按相似度降序返回
type match struct {
	NoteID int64
	Score  float64
	Text   string
}

// driver 屏蔽 native 与 eino 两条索引通路的差异
type driver interface {
	AddChunks(ctx context.Context, docs []chunkDoc) error
	Search(ctx context.Context, query string, topK int, threshold float64) ([]match, error)
	DeleteNote(ctx context.Context, noteID int64) error
	Reset(ctx context.Context) error
	Close() error
}

// resolveFunc 按当前配置取向量化客户端
type resolveFunc func(ctx context.Context) (modelembed.Client, error)

// noteDocID 笔记切片的稳定 ID；同 ID 覆盖写依赖它
func noteDocID(noteID int64, idx int) string {
	return fmt.Sprintf("%d-%d", noteID, idx)
}

// attachmentDocID 附件切片的稳定 ID
func attachmentDocID(noteID int64, name string, idx int) string {
	return fmt.Sprintf("%d-att-%s-%d", noteID, name, idx)
}

// noteIDFromDocID 从文档 ID 还原笔记 ID；解析失败返回 0
func noteIDFromDocID(id string) int64 {
	head, _, found := strings.Cut(id, "-")
	if !found {
		head = id
	}
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// nativeDriver 内置通路：显式 embed 后读写 vector.Store（sqlite/memory）
type nativeDriver struct {
	store   vector.Store
	index   string
	resolve resolveFunc

	mu    sync.Mutex
	ready bool
}

func newNativeDriver(store vector.Store, index string, resolve resolveFunc) *nativeDriver {
	return &nativeDriver{store: store, index: index, resolve: resolve}
}

// ensure 首次使用时按模型维度建索引；余弦距离
func (d *nativeDriver) ensure(ctx context.Context, em modelembed.Client) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	if err := vector.EnsureIndex(ctx, d.store, d.index, em.Dimension(), "cosine"); err != nil {
		return err
	}
	d.ready = true
	return nil
}

func (d *nativeDriver) indexExists(ctx context.Context) (bool, error) {
	names, err := d.store.ListIndexes(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == d.index {
			return true, nil
		}
	}
	return false, nil
}

func (d *nativeDriver) AddChunks(ctx context.Context, docs []chunkDoc) error {
	if len(docs) == 0 {
		return nil
	}
	em, err := d.resolve(ctx)
	if err != nil {
		return err
	}
	if err := d.ensure(ctx, em); err != nil {
		return err
	}
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	vecs, err := em.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embedding returned %d vectors for %d chunks", len(vecs), len(docs))
	}
	records := make([]*vector.Vector, len(docs))
	for i, doc := range docs {
		records[i] = &vector.Vector{ID: doc.ID, Values: vecs[i], Metadata: doc.Metadata}
	}
	return d.store.Add(ctx, d.index, records)
}

func (d *nativeDriver) Search(ctx context.Context, query string, topK int, threshold float64) ([]match, error) {
	em, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.ensure(ctx, em); err != nil {
		return nil, err
	}
	vecs, err := em.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	results, err := d.store.Search(ctx, d.index, vecs[0], &vector.SearchOptions{
		TopK:      topK,
		Threshold: threshold,
	})
	if err != nil {
		return nil, err
	}
	out := make([]match, 0, len(results))
	for _, r := range results {
		noteID, _ := strconv.ParseInt(r.Metadata[vector.MetaNoteID], 10, 64)
		out = append(out, match{
			NoteID: noteID,
			Score:  r.Score,
			Text:   r.Metadata[vector.MetaText],
		})
	}
	return out, nil
}

func (d *nativeDriver) DeleteNote(ctx context.Context, noteID int64) error {
	exists, err := d.indexExists(ctx)
	if err != nil || !exists {
		return err
	}
	_, err = d.store.DeleteByFilter(ctx, d.index, map[string]string{
		vector.MetaNoteID: strconv.FormatInt(noteID, 10),
	})
	return err
}

// Reset 丢弃整个索引；下一次写入按当时的模型维度重建
func (d *nativeDriver) Reset(ctx context.Context) error {
	d.mu.Lock()
	d.ready = false
	d.mu.Unlock()
	exists, err := d.indexExists(ctx)
	if err != nil || !exists {
		return err
	}
	return d.store.DeleteIndex(ctx, d.index)
}

func (d *nativeDriver) Close() error {
	return d.store.Close()
}
