package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 撮合与会话核心业务指标，通过 /metrics 暴露给 Prometheus 抓取
var (
	// matchesTotal 撮合成功总次数
	matchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairserver",
		Subsystem: "match",
		Name:      "matches_total",
		Help:      "撮合成功总次数",
	})

	// matchConflictsTotal 撮合事务冲突次数（状态 CAS 失败后重试）
	matchConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairserver",
		Subsystem: "match",
		Name:      "conflicts_total",
		Help:      "撮合事务状态冲突次数",
	})

	// matchWaitSeconds 从入队到撮合成功的等待时长分布
	matchWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pairserver",
		Subsystem: "match",
		Name:      "wait_seconds",
		Help:      "从入队到撮合成功的等待时长(秒)",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	// queueTimeoutsTotal 排队超时被移出队列的次数
	queueTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pairserver",
		Subsystem: "match",
		Name:      "queue_timeouts_total",
		Help:      "排队超时被移出队列的次数",
	})

	// queueDepthGauge 当前排队人数
	queueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pairserver",
		Subsystem: "match",
		Name:      "queue_depth",
		Help:      "当前排队人数",
	})

	// sessionsEndedTotal 会话结束总次数，按结束原因分桶
	sessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairserver",
		Subsystem: "session",
		Name:      "ended_total",
		Help:      "会话结束总次数(按结束原因)",
	}, []string{"reason"})

	// activeSessionsGauge 进行中的会话数
	activeSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pairserver",
		Subsystem: "session",
		Name:      "active",
		Help:      "进行中的会话数",
	})
)
