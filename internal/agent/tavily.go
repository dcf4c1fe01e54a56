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

package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"note-platform/pkg/errors"
)

const (
	tavilyBaseURL = "https://api.tavily.com"
	// noTavilyKey 未配置 key 时返回给模型的提示，不作为错误抛出
	noTavilyKey = "No tavily api key found, please set it in settings"
)

var (
	tavilyOnce   sync.Once
	tavilyClient *resty.Client
)

// tavilyHTTP 共享的 Tavily 客户端，10s 封顶
func tavilyHTTP() *resty.Client {
	tavilyOnce.Do(func() {
		tavilyClient = resty.New().
			SetBaseURL(tavilyBaseURL).
			SetTimeout(10 * time.Second)
	})
	return tavilyClient
}

type webSearchInput struct {
	Query string `json:"query" jsonschema:"description=search query"`
}

type webSearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type webSearchOutput struct {
	Answer  string         `json:"answer,omitempty"`
	Results []webSearchHit `json:"results,omitempty"`
	Message string         `json:"message,omitempty"`
}

func (s *Service) webSearchTool(ctx context.Context, in *webSearchInput) (*webSearchOutput, error) {
	apiKey := s.cfg.AI.Tavily.APIKey
	if apiKey == "" {
		return &webSearchOutput{Message: noTavilyKey}, nil
	}
	maxResults := s.cfg.AI.Tavily.MaxResult
	if maxResults <= 0 {
		maxResults = 5
	}

	var body struct {
		Answer  string         `json:"answer"`
		Results []webSearchHit `json:"results"`
	}
	resp, err := tavilyHTTP().R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"api_key":        apiKey,
			"query":          in.Query,
			"max_results":    maxResults,
			"include_answer": true,
		}).
		Post("/search")
	if err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrUpstreamTransient, err), "tavily search")
	}
	if resp.IsError() {
		return nil, errors.Wrapf(errors.ErrUpstreamPermanent, "tavily search: status %d", resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errors.Wrap(err, "tavily search response")
	}
	return &webSearchOutput{Answer: body.Answer, Results: body.Results}, nil
}

type webExtractInput struct {
	URLs []string `json:"urls" jsonschema:"description=urls to extract readable content from"`
}

type webExtractPage struct {
	URL     string `json:"url"`
	Content string `json:"raw_content"`
}

type webExtractOutput struct {
	Pages   []webExtractPage `json:"pages,omitempty"`
	Message string           `json:"message,omitempty"`
}

func (s *Service) webExtractTool(ctx context.Context, in *webExtractInput) (*webExtractOutput, error) {
	apiKey := s.cfg.AI.Tavily.APIKey
	if apiKey == "" {
		return &webExtractOutput{Message: noTavilyKey}, nil
	}
	if len(in.URLs) == 0 {
		return nil, errors.Validationf("urls is empty")
	}

	var body struct {
		Results []webExtractPage `json:"results"`
	}
	resp, err := tavilyHTTP().R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"api_key": apiKey, "urls": in.URLs}).
		Post("/extract")
	if err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrUpstreamTransient, err), "tavily extract")
	}
	if resp.IsError() {
		return nil, errors.Wrapf(errors.ErrUpstreamPermanent, "tavily extract: status %d", resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errors.Wrap(err, "tavily extract response")
	}
	return &webExtractOutput{Pages: body.Results}, nil
}
