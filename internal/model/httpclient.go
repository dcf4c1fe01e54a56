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

package model

import (
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// outboundFactory 进程级共享的 AI 出站 HTTP 客户端。
// 所有供应商请求走同一个实例，出站代理在首次取用时惰性生效。
type outboundFactory struct {
	mu     sync.Mutex
	proxy  string
	client *resty.Client
}

var outbound outboundFactory

// SetEgressProxy 配置全局出站代理；变更会使已创建的客户端重建
func SetEgressProxy(proxyURL string) {
	outbound.mu.Lock()
	defer outbound.mu.Unlock()
	if outbound.proxy == proxyURL {
		return
	}
	outbound.proxy = proxyURL
	outbound.client = nil
}

// HTTPClient 返回共享的 resty 客户端。需要更紧超时的调用
// 自行带 context deadline，而不是另起客户端。
func HTTPClient() *resty.Client {
	outbound.mu.Lock()
	defer outbound.mu.Unlock()
	if outbound.client == nil {
		c := resty.New()
		c.SetTimeout(30 * time.Second)
		c.SetRetryCount(1)
		c.SetRetryWaitTime(1 * time.Second)
		c.SetRetryMaxWaitTime(5 * time.Second)
		if outbound.proxy != "" {
			c.SetProxy(outbound.proxy)
		}
		outbound.client = c
	}
	return outbound.client
}
