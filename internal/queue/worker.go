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
	"fmt"
	"sync"
	"time"

	"note-platform/pkg/errors"
	"note-platform/pkg/log"
	"note-platform/pkg/metrics"
)

// worker 单队列轮询执行器；limiter 信号量限制并发
type worker struct {
	queue    string
	opts     WorkOptions
	handler  Handler
	m        *Manager
	log      *log.Logger
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	limiter  chan struct{}
}

func (w *worker) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// reset 重建停机通道；仅在 Manager.Start 持锁重启时调用
func (w *worker) reset() {
	w.stopOnce = sync.Once{}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
}

func (o *WorkOptions) normalize() {
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
}

// Work 注册并启动一个队列 worker；同队列重复注册报错
func (m *Manager) Work(queue string, opts WorkOptions, handler Handler) error {
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
	w := &worker{
		queue:   queue,
		opts:    opts,
		handler: handler,
		m:       m,
		log:     &log.Logger{Logger: m.log.With("queue", queue)},
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		limiter: make(chan struct{}, opts.Concurrency),
	}
	m.workers[queue] = w
	m.queues[queue] = struct{}{}
	if m.started {
		go w.run(m.runCtx)
	}
	return nil
}

// OffWork 停止并注销一个队列 worker，等待其在途任务结束
func (m *Manager) OffWork(queue string) error {
	m.mu.Lock()
	w, ok := m.workers[queue]
	if ok {
		delete(m.workers, queue)
	}
	started := m.started
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if started {
		w.stop()
		<-w.doneCh
	}
	return nil
}

// Start 启动全部已注册 worker、定时触发循环与 monitor。
// Stop 之后可再次 Start：停机通道整组重建。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.stopCh = make(chan struct{})
	m.runCtx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		w.reset()
		workers = append(workers, w)
	}
	m.mu.Unlock()

	for _, w := range workers {
		go w.run(m.runCtx)
	}
	m.wg.Add(2)
	go m.scheduleLoop(m.runCtx)
	go m.monitorLoop(m.runCtx)
	m.log.Info("queue started", "workers", len(workers))
	return nil
}

// Stop 优雅退出：停止认领，等待在途任务至 ShutdownTimeout，超时则取消
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	close(m.stopCh)
	for _, w := range workers {
		w.stop()
	}

	done := make(chan struct{})
	go func() {
		for _, w := range workers {
			<-w.doneCh
		}
		m.wg.Wait()
		close(done)
	}()

	timeout := m.cfg.ShutdownTimeout
	select {
	case <-done:
	case <-time.After(timeout):
		m.log.Warn("queue stop timed out, cancelling in-flight jobs", "timeout", timeout)
		m.cancel()
		<-done
	case <-ctx.Done():
		m.cancel()
		<-done
	}
	m.cancel()
	m.log.Info("queue stopped")
	return nil
}

// run 轮询循环：认领一批、信号量内并发执行，空轮询按 PollInterval 退避
func (w *worker) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			w.drain()
			return
		case <-ctx.Done():
			w.drain()
			return
		default:
		}
		jobs, err := w.m.claimJobs(ctx, w.queue, w.opts.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				w.drain()
				return
			}
			w.log.Warn("claim failed", "error", err)
			w.sleep(ctx)
			continue
		}
		if len(jobs) == 0 {
			w.sleep(ctx)
			continue
		}
		for _, j := range jobs {
			select {
			case w.limiter <- struct{}{}:
			case <-ctx.Done():
				w.drain()
				return
			}
			metrics.WorkerBusy.WithLabelValues(w.queue).Inc()
			go func(job *Job) {
				defer func() {
					<-w.limiter
					metrics.WorkerBusy.WithLabelValues(w.queue).Dec()
				}()
				w.dispatch(ctx, job)
			}(j)
		}
	}
}

// drain 等待在途任务归还全部信号量槽位
func (w *worker) drain() {
	for i := 0; i < w.opts.Concurrency; i++ {
		w.limiter <- struct{}{}
	}
	for i := 0; i < w.opts.Concurrency; i++ {
		<-w.limiter
	}
}

func (w *worker) sleep(ctx context.Context) {
	select {
	case <-time.After(w.opts.PollInterval):
	case <-w.stopCh:
	case <-ctx.Done():
	}
}

// dispatch 执行单条任务并提交终态；panic 按失败处理进入重试状态机
func (w *worker) dispatch(ctx context.Context, job *Job) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		err = w.handler(ctx, job)
	}()
	metrics.JobDuration.WithLabelValues(w.queue).Observe(time.Since(start).Seconds())

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err != nil {
		state, ferr := w.m.failJob(commitCtx, job.ID, err)
		if ferr != nil {
			w.log.Error("commit failure state failed", "job", job.ID, "error", ferr)
			return
		}
		metrics.JobTotal.WithLabelValues(w.queue, state.String()).Inc()
		w.log.Warn("job failed", "job", job.ID, "state", state.String(), "retry", job.RetryCount, "error", err)
		return
	}
	if cerr := w.m.completeJob(commitCtx, job.ID, nil); cerr != nil {
		w.log.Error("commit completed state failed", "job", job.ID, "error", cerr)
		return
	}
	metrics.JobTotal.WithLabelValues(w.queue, StateCompleted.String()).Inc()
	w.log.Debug("job completed", "job", job.ID, "duration", time.Since(start))
}
