package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(paymentVerifications.WithLabelValues("booking", "PAID"))
	TrackVerification("booking", "PAID")
	TrackVerification("booking", "PAID")
	assert.Equal(t, before+2, testutil.ToFloat64(paymentVerifications.WithLabelValues("booking", "PAID")))

	before = testutil.ToFloat64(bookingCancellations.WithLabelValues("REFUNDED"))
	TrackCancellation("REFUNDED")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingCancellations.WithLabelValues("REFUNDED")))

	before = testutil.ToFloat64(ordersCreated.WithLabelValues("exhibitor", "held"))
	TrackOrderCreated("exhibitor", "held")
	assert.Equal(t, before+1, testutil.ToFloat64(ordersCreated.WithLabelValues("exhibitor", "held")))

	TrackGatewayCall("refund", "ok", 120*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(gatewayRequestDuration, "gateway_request_duration_seconds"), 1)
}

func TestMonitor_CollectQueueMetrics(t *testing.T) {
	db, mock := redismock.NewClientMock()

	m := NewMonitor(db, map[string]string{"pending": "notifications:pending"})

	mock.ExpectLLen("notifications:pending").SetVal(7)
	m.collectQueueMetrics(context.Background())
	assert.Equal(t, float64(7), testutil.ToFloat64(notificationQueueLength.WithLabelValues("pending")))

	mock.ExpectLLen("notifications:pending").SetErr(errors.New("connection refused"))
	m.collectQueueMetrics(context.Background())
	assert.Equal(t, float64(7), testutil.ToFloat64(notificationQueueLength.WithLabelValues("pending")))

	assert.NoError(t, mock.ExpectationsWereMet())
}
