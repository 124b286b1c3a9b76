// Package metrics 提供 xpool-signer 的 Prometheus 监控指标
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xpool-finance/xpool-signer/pkg/decimal"
)

const namespace = "xpool_signer"

// 签名指标
var (
	// SignaturesTotal 签名总数
	SignaturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "签名总数",
		},
		[]string{"backend", "normalized"}, // normalized: true 表示 s 被折叠到低半区
	)

	// DigestsTotal 摘要计算次数
	DigestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_total",
			Help:      "EIP-712 摘要计算次数",
		},
		[]string{"status"}, // success, failed
	)
)

// 金额转换指标
var (
	// ConversionsTotal 金额转换次数
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "金额转换次数",
		},
		[]string{"direction", "status"}, // direction: to_base/to_human, status: success/precision/invalid/lookup_failed
	)

	// DecimalsLookupsTotal 代币精度查询次数
	DecimalsLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decimals_lookups_total",
			Help:      "代币精度查询次数",
		},
		[]string{"source", "status"}, // source: native/static/memory/cache/chain
	)

	// DecimalsLookupDuration 链上精度查询耗时
	DecimalsLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decimals_lookup_duration_seconds",
			Help:      "链上 decimals() 调用耗时(秒)",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)

// 熔断器指标
var (
	// CircuitBreakerState 熔断器状态 0=closed 1=open 2=half-open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "熔断器状态 (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)

// 登记表指标
var (
	// RegistryOpsTotal 合约地址登记表操作次数
	RegistryOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_operations_total",
			Help:      "合约地址登记表操作次数",
		},
		[]string{"driver", "op", "status"},
	)
)

// RecordSignature 记录签名
func RecordSignature(backend string, normalized bool) {
	n := "false"
	if normalized {
		n = "true"
	}
	SignaturesTotal.WithLabelValues(backend, n).Inc()
}

// RecordDigest 记录摘要计算
func RecordDigest(err error) {
	DigestsTotal.WithLabelValues(status(err)).Inc()
}

// 金额转换方向
const (
	DirectionToBase  = "to_base"
	DirectionToHuman = "to_human"
)

// ConversionLookupFailed 精度查询失败, 未进入转换
const ConversionLookupFailed = "lookup_failed"

// RecordConversion 记录金额转换
func RecordConversion(direction, status string) {
	ConversionsTotal.WithLabelValues(direction, status).Inc()
}

// ConversionStatus 将转换错误映射为指标状态: success / precision / invalid
func ConversionStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, decimal.ErrPrecision):
		return "precision"
	default:
		return "invalid"
	}
}

// RecordDecimalsLookup 记录精度查询，duration 仅对链上查询有效
func RecordDecimalsLookup(source string, err error, duration time.Duration) {
	DecimalsLookupsTotal.WithLabelValues(source, status(err)).Inc()
	if source == "chain" && duration > 0 {
		DecimalsLookupDuration.Observe(duration.Seconds())
	}
}

// SetBreakerState 更新熔断器状态
func SetBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRegistryOp 记录登记表操作
func RecordRegistryOp(driver, op string, err error) {
	RegistryOpsTotal.WithLabelValues(driver, op, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
