package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perpcore/logger"
)

var (
	// 订单指标
	orderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpcore_order_total",
			Help: "Total number of orders placed",
		},
		[]string{"symbol", "side", "status"},
	)

	orderSuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpcore_order_success_total",
			Help: "Total number of successful orders",
		},
		[]string{"symbol", "side"},
	)

	orderFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpcore_order_failure_total",
			Help: "Total number of failed orders",
		},
		[]string{"symbol", "side", "reason"},
	)

	orderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perpcore_order_duration_seconds",
			Help:    "Order execution duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"symbol", "side"},
	)

	// 账户指标
	equityGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "perpcore_account_equity_usd",
			Help: "Current account total equity in USD",
		},
	)

	drawdownGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "perpcore_drawdown_ratio",
			Help: "Current drawdown from the initial capital baseline",
		},
	)

	// 循环指标
	cycleTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perpcore_cycle_total",
			Help: "Total number of completed decision cycles",
		},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perpcore_cycle_duration_seconds",
			Help:    "Decision cycle duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// 行情流指标
	wsReconnectTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perpcore_ws_reconnect_total",
			Help: "Total number of websocket reconnect attempts",
		},
	)

	stalePriceFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perpcore_stale_price_fallback_total",
			Help: "Times the websocket price was stale and the REST price was used",
		},
		[]string{"symbol"},
	)
)

// RecordOrder 记录下单尝试
func RecordOrder(symbol, side, status string) {
	orderTotal.WithLabelValues(symbol, side, status).Inc()
}

// RecordOrderSuccess 记录下单成功
func RecordOrderSuccess(symbol, side string, duration time.Duration) {
	orderSuccessTotal.WithLabelValues(symbol, side).Inc()
	orderDuration.WithLabelValues(symbol, side).Observe(duration.Seconds())
}

// RecordOrderFailure 记录下单失败
func RecordOrderFailure(symbol, side, reason string) {
	orderFailureTotal.WithLabelValues(symbol, side, reason).Inc()
}

// SetEquity 更新账户权益
func SetEquity(equity float64) {
	equityGauge.Set(equity)
}

// SetDrawdown 更新回撤比例
func SetDrawdown(dd float64) {
	drawdownGauge.Set(dd)
}

// RecordCycle 记录一轮决策循环
func RecordCycle(duration time.Duration) {
	cycleTotal.Inc()
	cycleDuration.Observe(duration.Seconds())
}

// RecordWsReconnect 记录一次行情流重连
func RecordWsReconnect() {
	wsReconnectTotal.Inc()
}

// RecordStalePriceFallback 记录一次行情过期回退 REST 价格
func RecordStalePriceFallback(symbol string) {
	stalePriceFallbackTotal.WithLabelValues(symbol).Inc()
}

// StartServer 启动 Prometheus 指标服务（非阻塞）
func StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("📊 [Metrics] Prometheus 指标服务监听 %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("❌ [Metrics] 指标服务退出: %v", err)
		}
	}()
}
