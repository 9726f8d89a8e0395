package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 批量写操作计数（里程碑保存、依赖重建、拨款扇出）
	BatchOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_batch_operation_total",
			Help: "Total number of multi-statement write batches",
		},
		[]string{"operation", "status"}, // status: success, failed
	)

	// 当前打开的编辑会话数
	OpenEditSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_open_edit_sessions",
			Help: "Number of open schedule / funding edit sessions",
		},
		[]string{"kind"}, // kind: schedule, funding
	)

	// 通知邮件发送计数
	NotificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_notification_total",
			Help: "Total number of IPT notification emails",
		},
		[]string{"event", "status"},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordBatch 记录一次批量写操作结果
func RecordBatch(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	BatchOperationCount.WithLabelValues(operation, status).Inc()
}

// SessionOpened 编辑会话打开
func SessionOpened(kind string) {
	OpenEditSessions.WithLabelValues(kind).Inc()
}

// SessionClosed 编辑会话关闭或过期
func SessionClosed(kind string) {
	OpenEditSessions.WithLabelValues(kind).Dec()
}

// RecordNotification 记录通知发送结果
func RecordNotification(event string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	NotificationCount.WithLabelValues(event, status).Inc()
}
