package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector метрики процессов, расчётов, уведомлений и HTTP.
// Все методы безопасны для nil получателя, чтобы сервисы работали без метрик в тестах.
type Collector struct {
	registry *prometheus.Registry

	transitions   *prometheus.CounterVec
	expired       *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	transferSum   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewCollector создаёт коллектор на собственном реестре.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "job_process_transitions_total",
			Help: "Job process status transitions by target status and result",
		}, []string{"status", "result"}),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "job_process_expired_total",
			Help: "Job processes moved by the expiry sweep",
		}, []string{"from", "to"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_transfers_total",
			Help: "Wallet transfers by transaction type and result",
		}, []string{"type", "result"}),
		transferSum: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_transfer_amount_total",
			Help: "Sum of successfully debited amounts",
		}, []string{"type"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notifications by pipeline stage",
		}, []string{"stage"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_sweep_duration_seconds",
			Help:    "Duration of background sweeps",
			Buckets: prometheus.DefBuckets,
		}, []string{"sweep"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.transitions, c.expired, c.transfers, c.transferSum, c.notifications,
		c.sweepDuration, c.httpRequests, c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry возвращает реестр для тестов и экспорта.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler отдаёт метрики в формате Prometheus.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordTransition учитывает попытку смены статуса.
func (c *Collector) RecordTransition(status string, err error) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(status, result(err)).Inc()
}

// RecordExpired учитывает принудительный переход.
func (c *Collector) RecordExpired(from, to string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.expired.WithLabelValues(from, to).Add(float64(n))
}

// RecordTransfer учитывает перевод; сумма учитывается только у успешных.
func (c *Collector) RecordTransfer(txType string, amount float64, err error) {
	if c == nil {
		return
	}
	c.transfers.WithLabelValues(txType, result(err)).Inc()
	if err == nil {
		c.transferSum.WithLabelValues(txType).Add(amount)
	}
}

// RecordNotification учитывает этап доставки: enqueued, stored, live, failed.
func (c *Collector) RecordNotification(stage string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(stage).Inc()
}

// ObserveSweep фиксирует длительность фоновой задачи.
func (c *Collector) ObserveSweep(sweep string, started time.Time) {
	if c == nil {
		return
	}
	c.sweepDuration.WithLabelValues(sweep).Observe(time.Since(started).Seconds())
}

// GinMiddleware считает запросы по шаблону маршрута.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}
		started := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.httpRequests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(started).Seconds())
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
