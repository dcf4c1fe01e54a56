package vector

import (
	"fmt"

	"note-platform/pkg/config"
)

// NewStore 按配置创建向量存储。redis 后端经由 eino 驱动接入，
// 不走本接口。
func NewStore(cfg config.VectorConfig) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return nil, fmt.Errorf("redis backend is served by the eino indexer driver")
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Backend)
	}
}
