package object

import (
	"context"
	"fmt"

	"note-platform/pkg/config"
)

// NewStore 根据配置创建附件存储；local 与 s3 共用同一个路径守卫
func NewStore(ctx context.Context, cfg config.StorageConfig) (BlobStore, *PathGuard, error) {
	base := cfg.LocalBasePath
	if base == "" {
		base = ".blinko/files"
	}
	guard, err := NewPathGuard(base, cfg.LocalTempDir)
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Type {
	case "", "local":
		return NewLocalStore(guard), guard, nil
	case "s3":
		st, err := NewS3Store(ctx, cfg.S3, guard)
		if err != nil {
			return nil, nil, err
		}
		return st, guard, nil
	case "memory":
		return NewMemoryStore(), guard, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
