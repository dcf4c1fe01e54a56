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

// Package auth 提供请求主体（principal）在 context 中的传递与校验。
// 工具调用、嵌入查询与笔记存取都以此处的 accountId 为准做归属判断，
// 入参里不接受 token。
package auth

import (
	"context"

	"note-platform/pkg/errors"
)

type contextKey string

const principalKey contextKey = "auth.principal"

// Role 账号角色
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleUser       Role = "user"
)

// Principal 经认证的请求主体
type Principal struct {
	AccountID int64
	Name      string
	Role      Role
}

// WithPrincipal 将 principal 注入 context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext 从 context 获取 principal；不存在时 ok=false
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// AccountID 取当前主体的账号 id；未认证返回 AuthFailed
func AccountID(ctx context.Context) (int64, error) {
	p, ok := FromContext(ctx)
	if !ok || p.AccountID == 0 {
		return 0, errors.Wrap(errors.ErrAuthFailed, "no principal in context")
	}
	return p.AccountID, nil
}

// Name 取当前主体的显示名，未认证返回空串
func Name(ctx context.Context) string {
	p, _ := FromContext(ctx)
	return p.Name
}

// IsSuperAdmin 当前主体是否超级管理员
func IsSuperAdmin(ctx context.Context) bool {
	p, _ := FromContext(ctx)
	return p.Role == RoleSuperAdmin
}
