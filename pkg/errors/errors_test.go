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

package errors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrap(err, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err, msg) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrapf(err, "id=%s", "a")
	if wrapped == nil {
		t.Fatal("Wrapf(err, ...) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestWithKind(t *testing.T) {
	base := errors.New("dial tcp: timeout")
	err := WithKind(ErrUpstreamTransient, base)
	if !errors.Is(err, ErrUpstreamTransient) {
		t.Error("WithKind should attach the sentinel")
	}
	if !errors.Is(err, base) {
		t.Error("WithKind should keep the original chain")
	}
	if WithKind(ErrQueue, nil) == nil {
		t.Error("WithKind(kind, nil) should return the kind itself")
	}
}

func TestConfigMissingf(t *testing.T) {
	err := ConfigMissingf("no embeddings model config")
	if !errors.Is(err, ErrConfigMissing) {
		t.Error("ConfigMissingf should be Is ErrConfigMissing")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(WithKind(ErrUpstreamTransient, errors.New("502"))) {
		t.Error("transient upstream errors should be retryable")
	}
	if IsRetryable(Validationf("bad cron")) {
		t.Error("validation errors should not be retryable")
	}
}
