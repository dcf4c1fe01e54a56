package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		QueueJobStates, JobDuration, JobTotal,
		EmbeddingOps, EmbeddingChunks, RebuildNotesProcessed,
		ProviderRequestDuration, ToolDuration,
		ScheduleFireTotal, WorkerBusy,
	)
}

// QueueJobStates 队列中各状态任务数，由 monitor 周期刷新
var QueueJobStates = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "blinko_queue_job_states",
		Help: "队列中各状态任务数",
	},
	[]string{"queue", "state"}, // created | active | completed | failed | cancelled | retry
)

// JobDuration 任务处理耗时（秒）
var JobDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blinko_job_duration_seconds",
		Help:    "任务处理耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"queue"},
)

// JobTotal 任务处理总数（按队列与结果）
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blinko_job_total",
		Help: "任务处理总数",
	},
	[]string{"queue", "result"}, // completed | failed | retry
)

// EmbeddingOps 向量写入/删除/查询操作数
var EmbeddingOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blinko_embedding_ops_total",
		Help: "向量操作总数",
	},
	[]string{"op", "result"}, // upsert | delete | query / ok | error | excluded | skip
)

// EmbeddingChunks 单次 upsert 产生的 chunk 数
var EmbeddingChunks = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "blinko_embedding_chunks",
		Help:    "单条笔记切分出的 chunk 数",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	},
)

// RebuildNotesProcessed 重建过程累计处理笔记数
var RebuildNotesProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blinko_rebuild_notes_total",
		Help: "重建处理的笔记总数",
	},
	[]string{"result"}, // success | skip | error
)

// ProviderRequestDuration AI 供应商请求耗时（秒）
var ProviderRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blinko_provider_request_duration_seconds",
		Help:    "AI 供应商请求耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider", "capability"}, // inference | embedding | audio | vision
)

// ToolDuration Agent 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blinko_tool_duration_seconds",
		Help:    "Agent 工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ScheduleFireTotal 定时计划触发次数
var ScheduleFireTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "blinko_schedule_fire_total",
		Help: "定时计划触发次数",
	},
	[]string{"name"},
)

// WorkerBusy 当前正在执行的任务数（每队列）
var WorkerBusy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "blinko_worker_busy",
		Help: "当前正在执行的任务数",
	},
	[]string{"queue"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
