package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expo-booking/internal/status"
	"expo-booking/utils"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:         srv.URL,
		KeyID:           "rzp_test_key",
		KeySecret:       "test_secret",
		RefundKeyID:     "rzp_refund_key",
		RefundKeySecret: "refund_secret",
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{KeyID: "only-id"})
	assert.Error(t, err)

	c, err := New(Config{KeyID: "id", KeySecret: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "id", c.KeyID())
	assert.Equal(t, "id", c.refundKeyID)
	assert.Equal(t, defaultBaseURL, c.baseURL)
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "test_secret", pass)

		var req OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(99900), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "bkg_0001", req.Receipt)
		assert.Equal(t, 1, req.PaymentCapture)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Order{
			ID:       "order_ABC",
			Entity:   "order",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
		})
	})

	order, err := c.CreateOrder(context.Background(), OrderRequest{
		Amount:   99900,
		Currency: "INR",
		Receipt:  "bkg_0001",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_ABC", order.ID)
	assert.Equal(t, "created", order.Status)
	assert.Equal(t, int64(99900), order.Amount)
}

func TestCreateOrder_RejectsNonPositiveAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway must not be called")
	})

	_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 0, Currency: "INR"})
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestCreateOrder_GatewayError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00"}}`))
	})

	_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 50, Currency: "INR"})
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrGateway)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
	assert.Equal(t, utils.StateClosed, c.breaker.State())
}

func TestCreateOrder_ServerErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.breaker = utils.NewCircuitBreakerWithSettings("test", utils.BreakerSettings{
		MaxRequests:  2,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
	})

	for i := 0; i < 2; i++ {
		_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
		assert.ErrorIs(t, err, status.ErrGateway)
	}

	_, err := c.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, status.ErrGateway)
	assert.ErrorIs(t, err, utils.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRefund_UsesRefundCredential(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_123/refund", r.URL.Path)

		user, pass, _ := r.BasicAuth()
		assert.Equal(t, "rzp_refund_key", user)
		assert.Equal(t, "refund_secret", pass)

		var req RefundRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "normal", req.Speed)
		assert.Equal(t, "bkg1", req.Notes["booking_id"])

		json.NewEncoder(w).Encode(Refund{ID: "rfnd_1", PaymentID: "pay_123", Status: "processed"})
	})

	refund, err := c.Refund(context.Background(), "pay_123", RefundRequest{
		Notes: map[string]string{"reason": "Admin cancelled booking", "booking_id": "bkg1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", refund.ID)
	assert.Equal(t, "pay_123", refund.PaymentID)
}

func TestRefund_RequiresPaymentID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway must not be called")
	})

	_, err := c.Refund(context.Background(), "", RefundRequest{})
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestVerifySignature(t *testing.T) {
	c, err := New(Config{KeyID: "id", KeySecret: "secret"})
	require.NoError(t, err)

	good := Signature("secret", "order_1", "pay_1")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "order_1", "pay_1", good, true},
		{"tampered payment", "order_1", "pay_2", good, false},
		{"tampered order", "order_2", "pay_1", good, false},
		{"wrong secret", "order_1", "pay_1", Signature("other", "order_1", "pay_1"), false},
		{"empty signature", "order_1", "pay_1", "", false},
		{"uppercase hex", "order_1", "pay_1", "A" + good[1:], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.VerifySignature(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestSignature_KnownVector(t *testing.T) {
	got := Signature("EnLs21M47BllR3X8PSFtjtbd", "order_IEIaMR65cu6nz3", "pay_IH4NVgf4Dreq1l")
	assert.Equal(t, "0d4e745a1838664ad6c9c9902212a32d627d68e917290b0ad5f08ff4561bc50f", got)
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"999", 99900},
		{"499.50", 49950},
		{"0.125", 13},
		{"10.005", 1001},
		{"15000", 1500000},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}
