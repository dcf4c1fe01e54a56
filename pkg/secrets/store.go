// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"errors"
	"strings"
)

// ErrNoStore 引用了 secret: 前缀但未配置后端
var ErrNoStore = errors.New("secret store not configured")

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config Secret Store 配置
type Config struct {
	Backend    string `yaml:"backend"` // vault | env | memory
	VaultAddr  string `yaml:"vault_addr"`
	VaultToken string `yaml:"vault_token"`
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Backend {
	case "vault":
		return NewVaultStore(VaultConfig{Address: config.VaultAddr, Token: config.VaultToken})
	case "memory":
		return NewMemoryStore(), nil
	default:
		return NewEnvStore(), nil
	}
}

// Resolve 解析供应商凭据引用。支持四种写法：
//
//	"sk-..."                  字面量，原样返回
//	"env:OPENAI_KEY"          环境变量
//	"secret:ai/key"           经 Store 查询
//	"vault:secret/ai#apiKey"  Vault 路径，# 后为字段名（缺省 value）
//
// provider 行里存引用而不是明文时，用这里统一换出真实 key。
func Resolve(ctx context.Context, store Store, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env:"):
		return NewEnvStore().Get(ctx, strings.TrimPrefix(ref, "env:"))
	case strings.HasPrefix(ref, "secret:"):
		if store == nil {
			return "", ErrNoStore
		}
		return store.Get(ctx, strings.TrimPrefix(ref, "secret:"))
	case strings.HasPrefix(ref, "vault:"):
		if store == nil {
			return "", ErrNoStore
		}
		return store.Get(ctx, strings.TrimPrefix(ref, "vault:"))
	default:
		return ref, nil
	}
}
