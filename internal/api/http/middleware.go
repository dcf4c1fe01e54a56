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

package http

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/jwt"

	"note-platform/pkg/auth"
)

const identityKey = "principal"

// authMiddleware HS256 JWT 校验。claims 里的 accountId/name/role 映射
// 为 Principal，principalMW 再把它塞进请求 context，下游 handler 与
// agent 工具统一走 auth.AccountID。token 由部署侧签发，这里只验。
func (s *Server) authMiddleware() (app.HandlerFunc, app.HandlerFunc, error) {
	timeout := 24 * time.Hour
	if d, err := time.ParseDuration(s.cfg.JWT.Timeout); err == nil && d > 0 {
		timeout = d
	}

	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "note-platform",
		Key:         []byte(s.cfg.JWT.Secret),
		Timeout:     timeout,
		IdentityKey: identityKey,
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			p := auth.Principal{}
			if v, ok := claims["accountId"].(float64); ok {
				p.AccountID = int64(v)
			}
			if v, ok := claims["name"].(string); ok {
				p.Name = v
			}
			if v, ok := claims["role"].(string); ok {
				p.Role = auth.Role(v)
			}
			return p
		},
		Authorizator: func(data interface{}, _ context.Context, _ *app.RequestContext) bool {
			p, ok := data.(auth.Principal)
			return ok && p.AccountID > 0
		},
		Unauthorized: func(_ context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, errorBody(message))
			c.Abort()
		},
	})
	if err != nil {
		return nil, nil, err
	}

	principalMW := func(ctx context.Context, c *app.RequestContext) {
		if v, exists := c.Get(identityKey); exists {
			if p, ok := v.(auth.Principal); ok {
				ctx = auth.WithPrincipal(ctx, p)
			}
		}
		c.Next(ctx)
	}
	return mw.MiddlewareFunc(), principalMW, nil
}

// requireAccount handler 侧的兜底；中间件掉线时不放行
func requireAccount(ctx context.Context, c *app.RequestContext) (int64, bool) {
	id, err := auth.AccountID(ctx)
	if err != nil {
		c.JSON(consts.StatusUnauthorized, errorBody("authentication required"))
		return 0, false
	}
	return id, true
}
