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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	if d := p.Delay(3); d != time.Second {
		t.Errorf("fixed delay: got %v", d)
	}
	p.Backoff = BackoffLinear
	if d := p.Delay(3); d != 3*time.Second {
		t.Errorf("linear delay: got %v", d)
	}
	p.Backoff = BackoffExponential
	if d := p.Delay(3); d != 4*time.Second {
		t.Errorf("exponential delay: got %v", d)
	}
	if d := p.Delay(1); d != time.Second {
		t.Errorf("exponential first delay: got %v", d)
	}
}

func TestPolicy_DoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 3, BaseDelay: time.Millisecond}
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d", calls)
	}
}

func TestPolicy_DoExhausts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	p := Policy{Attempts: 2, BaseDelay: time.Millisecond}
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Do should return the last error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d", calls)
	}
}

func TestPolicy_DoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{Attempts: 3, BaseDelay: time.Hour}
	err := p.Do(ctx, func(ctx context.Context) error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do with cancelled ctx: got %v", err)
	}
}
