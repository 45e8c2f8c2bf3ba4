// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	TotalReq = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokenconsole_requests_total",
		Help: "请求总数",
	})
	FailReq = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokenconsole_requests_failed",
		Help: "请求失败数",
	})
	BridgeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenconsole_bridge_runs_total",
		Help: "外部 CLI 调用次数，按结果分类",
	}, []string{"outcome"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokenconsole_http_request_duration_seconds",
		Help:    "HTTP 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(TotalReq, FailReq, BridgeRuns, httpRequestDuration)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// PrometheusMiddleware 记录每个请求的耗时与结果计数。
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		code := c.Writer.Status()

		TotalReq.Inc()
		if code >= 400 {
			FailReq.Inc()
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(code)).
			Observe(time.Since(start).Seconds())
	}
}
