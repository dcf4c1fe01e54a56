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

package vision

import (
	"context"
)

// NotSupported 供应商不支持图像输入时返回的哨兵描述
const NotSupported = "not support image"

// Client 视觉模型接口
type Client interface {
	// Describe 描述一张 base64 编码的图像，prompt 为空时由实现给默认提示词
	Describe(ctx context.Context, imageBase64, mimeType, prompt string) (string, error)
	// Name 返回模型名称
	Name() string
}

// UnsupportedClient 供应商没有视觉能力时的替身，Describe 固定返回哨兵值
type UnsupportedClient struct {
	Provider string
}

// Describe 返回哨兵描述，调用方据此记录跳过
func (u *UnsupportedClient) Describe(ctx context.Context, imageBase64, mimeType, prompt string) (string, error) {
	return NotSupported, nil
}

// Name 返回供应商名称
func (u *UnsupportedClient) Name() string {
	return u.Provider
}
