package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "itops_bam_engine"

var (
	// UpdatesTotal 处理的原始更新数，按类型与结果
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_total",
		Help:      "Raw monitoring updates applied to the BA graph by type and result",
	}, []string{"type", "result"})

	// UpdateDuration 单次更新的传播与提交耗时
	UpdateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "update_duration_seconds",
		Help:      "Time spent propagating and committing one raw update",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms ~ 0.8s
	}, []string{"type"})

	// EventsTotal 引擎输出的事件数
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Events emitted by the BA graph by event type",
	}, []string{"event_type"})

	// StreamErrorsTotal 事件写入下游失败次数
	StreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_errors_total",
		Help:      "Failed event writes by sink",
	}, []string{"sink"})

	// GraphNodes 当前计算图节点数
	GraphNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_nodes",
		Help:      "Nodes in the active BA graph by kind",
	}, []string{"kind"})

	// ConfigErrors 最近一次构建计算图的配置错误数
	ConfigErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "config_errors",
		Help:      "Configuration errors reported by the last graph apply",
	})

	// IngestMessagesTotal 消费到的 Kafka 消息数，按处理结果
	IngestMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_messages_total",
		Help:      "Kafka messages consumed from the monitoring updates topic by handler result",
	}, []string{"result"})

	// IngestLagSeconds 消息写入 Kafka 到被处理的延迟
	IngestLagSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_lag_seconds",
		Help:      "Delay between message timestamp and handling",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms ~ 43min
	})
)
