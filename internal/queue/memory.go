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

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"note-platform/pkg/errors"
)

// Memory 内存队列：语义与 Manager 一致（singleton 去重、重试退避、
// 折叠触发），供测试与无库场景使用
type Memory struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	jobs      map[string]*Job
	order     []string // 入队顺序，认领按此序
	schedules map[string]*Schedule
	workers   map[string]*memWorker
	started   bool
	runCtx    context.Context
	cancel    context.CancelFunc
}

type memWorker struct {
	queue    string
	opts     WorkOptions
	handler  Handler
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	limiter  chan struct{}
}

// NewMemory 创建内存队列
func NewMemory(cfg Config) *Memory {
	cfg.normalize()
	return &Memory{
		cfg:       cfg,
		now:       time.Now,
		jobs:      make(map[string]*Job),
		schedules: make(map[string]*Schedule),
		workers:   make(map[string]*memWorker),
	}
}

// SetNow 注入时钟，测试用
func (m *Memory) SetNow(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) CreateQueue(_ context.Context, name string) error {
	if name == "" {
		return errors.Validationf("queue name is empty")
	}
	return nil
}

func (m *Memory) Send(_ context.Context, queue string, payload any, opts SendOptions) (string, error) {
	if queue == "" {
		return "", errors.Validationf("queue name is empty")
	}
	data, err := MarshalPayload(payload)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.SingletonKey != "" {
		for _, j := range m.jobs {
			if j.Queue == queue && j.SingletonKey == opts.SingletonKey && !j.State.Terminal() {
				return "", nil
			}
		}
	}
	retryLimit := opts.RetryLimit
	if retryLimit <= 0 {
		retryLimit = m.cfg.RetryLimit
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = m.cfg.RetryDelay
	}
	retryBackoff := opts.RetryBackoff ||
		(opts.RetryLimit <= 0 && opts.RetryDelay <= 0 && m.cfg.RetryBackoff)
	startAfter := opts.StartAfter
	if startAfter.IsZero() {
		startAfter = m.now()
	}
	j := &Job{
		ID:           uuid.New().String(),
		Queue:        queue,
		State:        StateCreated,
		Payload:      data,
		RetryLimit:   retryLimit,
		RetryDelay:   retryDelay,
		RetryBackoff: retryBackoff,
		SingletonKey: opts.SingletonKey,
		StartAfter:   startAfter,
		CreatedAt:    m.now(),
	}
	m.jobs[j.ID] = j
	m.order = append(m.order, j.ID)
	return j.ID, nil
}

// claim 认领至多 limit 条可运行任务
func (m *Memory) claim(queue string, limit int) []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []*Job
	for _, id := range m.order {
		if len(out) >= limit {
			break
		}
		j := m.jobs[id]
		if j == nil || j.Queue != queue {
			continue
		}
		if j.State != StateCreated && j.State != StateRetry {
			continue
		}
		if j.StartAfter.After(now) {
			continue
		}
		j.State = StateActive
		j.StartedAt = now
		cp := *j
		out = append(out, &cp)
	}
	return out
}

func (m *Memory) complete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.State != StateActive {
		return
	}
	j.State = StateCompleted
	j.CompletedAt = m.now()
}

func (m *Memory) fail(id string, cause error) JobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.State != StateActive {
		return StateCreated
	}
	if j.RetryCount < j.RetryLimit {
		j.RetryCount++
		j.State = StateRetry
		j.StartAfter = m.now().Add(retryDelayFor(j.RetryDelay, j.RetryBackoff, j.RetryCount))
		j.StartedAt = time.Time{}
		return StateRetry
	}
	j.RetryCount++
	j.State = StateFailed
	j.CompletedAt = m.now()
	if cause != nil {
		j.Output, _ = MarshalPayload(map[string]string{"error": cause.Error()})
	}
	return StateFailed
}

// GetJob 查询任务快照
func (m *Memory) GetJob(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// Jobs 按队列列出任务快照，测试断言用
func (m *Memory) Jobs(queue string) []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Job
	for _, id := range m.order {
		j := m.jobs[id]
		if j != nil && (queue == "" || j.Queue == queue) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out
}

func (m *Memory) Schedule(_ context.Context, name, spec string, payload any, opts ScheduleOptions) error {
	if name == "" {
		return errors.Validationf("schedule name is empty")
	}
	sched, loc, err := parseCron(spec, opts.TZ)
	if err != nil {
		return err
	}
	data, err := MarshalPayload(payload)
	if err != nil {
		return err
	}
	tz := opts.TZ
	if tz == "" {
		tz = "UTC"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s, ok := m.schedules[name]
	if !ok {
		s = &Schedule{Name: name, CreatedAt: now}
		m.schedules[name] = s
	}
	s.Cron = spec
	s.TZ = tz
	s.Payload = data
	s.NextRunAt = sched.Next(now.In(loc))
	s.UpdatedAt = now
	return nil
}

func (m *Memory) Unschedule(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.schedules, name)
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetSchedules(_ context.Context) ([]*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetSchedule(_ context.Context, name string) (*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[name]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// FireDue 触发到期计划并推进 next_run_at；返回触发数。测试可直接调用
func (m *Memory) FireDue(ctx context.Context) int {
	m.mu.Lock()
	type due struct {
		name    string
		payload []byte
		key     string
	}
	now := m.now()
	var dues []due
	for _, s := range m.schedules {
		if s.NextRunAt.After(now) {
			continue
		}
		sched, loc, err := parseCron(s.Cron, s.TZ)
		if err != nil {
			s.NextRunAt = now.Add(time.Hour)
			continue
		}
		dues = append(dues, due{
			name:    s.Name,
			payload: s.Payload,
			key:     "sched:" + s.Name + ":" + strconv.FormatInt(s.NextRunAt.Unix(), 10),
		})
		s.NextRunAt = sched.Next(now.In(loc))
		s.UpdatedAt = now
	}
	m.mu.Unlock()

	fired := 0
	for _, d := range dues {
		payload := json.RawMessage(d.payload)
		if len(payload) == 0 {
			payload = json.RawMessage("{}")
		}
		id, err := m.Send(ctx, d.name, payload, SendOptions{SingletonKey: d.key})
		if err == nil && id != "" {
			fired++
		}
	}
	return fired
}

// ReclaimExpired 可见性超时回收；返回回收数。monitor 与测试共用
func (m *Memory) ReclaimExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.cfg.VisibilityTimeout)
	n := 0
	for _, j := range m.jobs {
		if j.State == StateActive && !j.StartedAt.IsZero() && j.StartedAt.Before(cutoff) {
			j.State = StateCreated
			j.StartedAt = time.Time{}
			n++
		}
	}
	return n
}

func (m *Memory) Work(queue string, opts WorkOptions, handler Handler) error {
	if queue == "" {
		return errors.Validationf("queue name is empty")
	}
	if handler == nil {
		return errors.Validationf("handler is nil")
	}
	opts.normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[queue]; exists {
		return errors.Validationf("worker for queue %q already registered", queue)
	}
	w := &memWorker{
		queue:   queue,
		opts:    opts,
		handler: handler,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		limiter: make(chan struct{}, opts.Concurrency),
	}
	m.workers[queue] = w
	if m.started {
		go m.runWorker(m.runCtx, w)
	}
	return nil
}

func (m *Memory) OffWork(queue string) error {
	m.mu.Lock()
	w, ok := m.workers[queue]
	if ok {
		delete(m.workers, queue)
	}
	started := m.started
	m.mu.Unlock()
	if ok && started {
		w.stopOnce.Do(func() { close(w.stopCh) })
		<-w.doneCh
	}
	return nil
}

func (m *Memory) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.runCtx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	workers := make([]*memWorker, 0, len(m.workers))
	for _, w := range m.workers {
		// Stop 后重启：停机通道重建
		w.stopOnce = sync.Once{}
		w.stopCh = make(chan struct{})
		w.doneCh = make(chan struct{})
		workers = append(workers, w)
	}
	runCtx := m.runCtx
	m.mu.Unlock()
	for _, w := range workers {
		go m.runWorker(runCtx, w)
	}
	return nil
}

func (m *Memory) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	workers := make([]*memWorker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()
	for _, w := range workers {
		w.stopOnce.Do(func() { close(w.stopCh) })
	}
	done := make(chan struct{})
	go func() {
		for _, w := range workers {
			<-w.doneCh
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.cfg.ShutdownTimeout):
		m.cancel()
		<-done
	case <-ctx.Done():
		m.cancel()
		<-done
	}
	m.cancel()
	return nil
}

func (m *Memory) runWorker(ctx context.Context, w *memWorker) {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			m.drainWorker(w)
			return
		case <-ctx.Done():
			m.drainWorker(w)
			return
		default:
		}
		jobs := m.claim(w.queue, w.opts.BatchSize)
		if len(jobs) == 0 {
			select {
			case <-time.After(w.opts.PollInterval):
			case <-w.stopCh:
			case <-ctx.Done():
			}
			continue
		}
		for _, j := range jobs {
			select {
			case w.limiter <- struct{}{}:
			case <-ctx.Done():
				m.drainWorker(w)
				return
			}
			go func(job *Job) {
				defer func() { <-w.limiter }()
				var err error
				func() {
					defer func() {
						if r := recover(); r != nil {
							err = fmt.Errorf("handler panic: %v", r)
						}
					}()
					err = w.handler(ctx, job)
				}()
				if err != nil {
					m.fail(job.ID, err)
				} else {
					m.complete(job.ID)
				}
			}(j)
		}
	}
}

func (m *Memory) drainWorker(w *memWorker) {
	for i := 0; i < w.opts.Concurrency; i++ {
		w.limiter <- struct{}{}
	}
	for i := 0; i < w.opts.Concurrency; i++ {
		<-w.limiter
	}
}
