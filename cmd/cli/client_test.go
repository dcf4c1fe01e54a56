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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCallUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"status": "queued"},
		})
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "tok")
	data, err := c.call(context.Background(), http.MethodPost, "/api/v1/ai/rebuild/start", map[string]bool{"force": true})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(string(data), "queued") {
		t.Fatalf("data = %s", data)
	}
}

func TestCallSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "ids is required"})
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "")
	_, err := c.call(context.Background(), http.MethodPost, "/api/v1/notes/trash-many", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "ids is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestAskStreamsChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: notes\ndata: []\n\n")
		fmt.Fprint(w, "event: chunk\ndata: {\"content\":\"Hello \"}\n\n")
		fmt.Fprint(w, "event: chunk\ndata: {\"content\":\"world\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"done\":true}\n\n")
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "")
	var got strings.Builder
	if err := c.ask(context.Background(), "hi", true, false, func(chunk string) {
		got.WriteString(chunk)
	}); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if got.String() != "Hello world" {
		t.Fatalf("answer = %q", got.String())
	}
}

func TestAskSurfacesStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: error\ndata: {\"error\":\"no main model config\"}\n\n")
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "")
	err := c.ask(context.Background(), "hi", false, false, func(string) {})
	if err == nil || !strings.Contains(err.Error(), "no main model config") {
		t.Fatalf("err = %v", err)
	}
}
