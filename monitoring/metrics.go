package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Payment orders opened, by record kind and result",
		},
		[]string{"kind", "result"},
	)

	paymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verifications, by record kind and resulting status",
		},
		[]string{"kind", "status"},
	)

	bookingCancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cancellations_total",
			Help: "Admin cancellations, by final status",
		},
		[]string{"status"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		},
		[]string{"operation", "result"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Confirmation side effects, by channel and result",
		},
		[]string{"channel", "result"},
	)

	notificationQueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_queue_length",
			Help: "Pending and dead-lettered confirmation jobs",
		},
		[]string{"queue"},
	)
)

func TrackOrderCreated(kind, result string) {
	ordersCreated.WithLabelValues(kind, result).Inc()
}

func TrackVerification(kind, status string) {
	paymentVerifications.WithLabelValues(kind, status).Inc()
}

func TrackCancellation(status string) {
	bookingCancellations.WithLabelValues(status).Inc()
}

func TrackGatewayCall(operation, result string, d time.Duration) {
	gatewayRequestDuration.WithLabelValues(operation, result).Observe(d.Seconds())
}

func TrackNotification(channel, result string) {
	notifications.WithLabelValues(channel, result).Inc()
}

// Monitor samples redis backed queue depths on an interval.
type Monitor struct {
	redis    redis.Cmdable
	queues   map[string]string
	interval time.Duration
}

// NewMonitor watches the given queues, keyed by metric label.
func NewMonitor(redisClient redis.Cmdable, queues map[string]string) *Monitor {
	return &Monitor{
		redis:    redisClient,
		queues:   queues,
		interval: 30 * time.Second,
	}
}

// Run collects until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collectQueueMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectQueueMetrics(ctx)
		}
	}
}

func (m *Monitor) collectQueueMetrics(ctx context.Context) {
	for label, key := range m.queues {
		length, err := m.redis.LLen(ctx, key).Result()
		if err != nil {
			slog.Warn("m.redis.LLen()", "key", key, "error", err)
			continue
		}
		notificationQueueLength.WithLabelValues(label).Set(float64(length))
	}
}
