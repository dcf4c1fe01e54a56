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

package secrets

import (
	"context"
	"os"
	"sort"
	"strings"

	"note-platform/pkg/errors"
)

// envStore 进程环境变量后端；provider 的 api_key_secret_ref 直接当
// 变量名解析。Set/Delete 只影响当前进程。
type envStore struct{}

// NewEnvStore 创建环境变量 secret store
func NewEnvStore() Store {
	return &envStore{}
}

func (e *envStore) Get(_ context.Context, key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", errors.Wrapf(errors.ErrNotFound, "environment variable %s not set", key)
	}
	return value, nil
}

func (e *envStore) Set(_ context.Context, key, value string) error {
	return os.Setenv(key, value)
}

func (e *envStore) Delete(_ context.Context, key string) error {
	return os.Unsetenv(key)
}

func (e *envStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, env := range os.Environ() {
		name, _, found := strings.Cut(env, "=")
		if found && strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
