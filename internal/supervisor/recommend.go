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

package supervisor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"note-platform/internal/queue"
	"note-platform/internal/storage/cache"
	"note-platform/internal/storage/db"
	"note-platform/pkg/log"
)

// TaskRecommend 推荐拉取任务名
const TaskRecommend = "recommend"

// recommendConcurrency 单轮并发上限；每站点 10s 超时
const recommendConcurrency = 5

// FeedItem 关注站点公开 feed 的一条笔记
type FeedItem struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	SiteURL   string    `json:"siteUrl,omitempty"`
	SiteName  string    `json:"siteName,omitempty"`
}

// RecommendFeed 单账号的聚合推荐，带拉取时间
type RecommendFeed struct {
	FetchedAt time.Time  `json:"fetchedAt"`
	Items     []FeedItem `json:"items"`
	Errors    []string   `json:"errors,omitempty"`
}

// RecommendJob 拉取各账号关注站点的公开 feed 并缓存；只有存在关注
// 记录时才会被 Registry 初始化
type RecommendJob struct {
	follows db.FollowStore
	cache   cache.Store
	client  *resty.Client
	log     *log.Logger
}

func NewRecommendJob(follows db.FollowStore, progress cache.Store, logger *log.Logger) *RecommendJob {
	if logger == nil {
		logger = log.Nop()
	}
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(1)
	return &RecommendJob{
		follows: follows,
		cache:   progress,
		client:  client,
		log:     logger.Named("recommend"),
	}
}

func (j *RecommendJob) Name() string         { return TaskRecommend }
func (j *RecommendJob) DefaultCron() string  { return "0 */6 * * *" }
func (j *RecommendJob) SchedulePayload() any { return queue.RecommendTick{} }

func (j *RecommendJob) Run(ctx context.Context, _ *queue.Job) error {
	follows, err := j.follows.ListAll(ctx)
	if err != nil {
		return err
	}
	byAccount := make(map[int64][]*db.Follow)
	for _, f := range follows {
		byAccount[f.AccountID] = append(byAccount[f.AccountID], f)
	}
	for accountID, sites := range byAccount {
		feed := j.fetchAccount(ctx, sites)
		key := fmt.Sprintf("%s%d", cache.KeyRecommendFeedPrefix, accountID)
		if err := j.cache.Set(ctx, key, feed, 0); err != nil {
			j.log.Warn("cache recommend feed failed", "account", accountID, "error", err)
		}
	}
	j.log.Info("recommend feeds refreshed", "accounts", len(byAccount), "sites", len(follows))
	return nil
}

// fetchAccount 批量拉取一个账号的关注站点；单站失败不拖垮整批
func (j *RecommendJob) fetchAccount(ctx context.Context, sites []*db.Follow) RecommendFeed {
	feed := RecommendFeed{FetchedAt: time.Now()}
	var mu sync.Mutex
	limiter := make(chan struct{}, recommendConcurrency)
	var wg sync.WaitGroup
	for _, site := range sites {
		wg.Add(1)
		limiter <- struct{}{}
		go func(f *db.Follow) {
			defer wg.Done()
			defer func() { <-limiter }()
			items, err := j.fetchSite(ctx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				feed.Errors = append(feed.Errors, fmt.Sprintf("%s: %v", f.SiteURL, err))
				return
			}
			feed.Items = append(feed.Items, items...)
		}(site)
	}
	wg.Wait()
	return feed
}

func (j *RecommendJob) fetchSite(ctx context.Context, f *db.Follow) ([]FeedItem, error) {
	url := strings.TrimRight(f.SiteURL, "/") + "/api/share/feed"
	var items []FeedItem
	resp, err := j.client.R().
		SetContext(ctx).
		SetResult(&items).
		Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode())
	}
	for i := range items {
		items[i].SiteURL = f.SiteURL
		if items[i].SiteName == "" {
			items[i].SiteName = f.SiteName
		}
	}
	return items, nil
}
