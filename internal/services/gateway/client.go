package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expo-booking/internal/status"
	"expo-booking/monitoring"
	"expo-booking/utils"

	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://api.razorpay.com"
	defaultTimeout = 10 * time.Second
)

type Config struct {
	BaseURL string

	KeyID     string
	KeySecret string

	// Refunds may run under a separate credential. Empty values fall
	// back to KeyID and KeySecret.
	RefundKeyID     string
	RefundKeySecret string

	Timeout time.Duration
}

type Client struct {
	baseURL string

	keyID     string
	keySecret string

	refundKeyID     string
	refundKeySecret string

	hc      *http.Client
	breaker *utils.CircuitBreaker
}

func New(cfg Config) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("gateway.New: key id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("gateway.New: url.Parse: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RefundKeyID == "" || cfg.RefundKeySecret == "" {
		cfg.RefundKeyID, cfg.RefundKeySecret = cfg.KeyID, cfg.KeySecret
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		keyID:           cfg.KeyID,
		keySecret:       cfg.KeySecret,
		refundKeyID:     cfg.RefundKeyID,
		refundKeySecret: cfg.RefundKeySecret,
		hc:              &http.Client{Timeout: cfg.Timeout},
		breaker:         utils.NewCircuitBreaker("payment-gateway"),
	}, nil
}

// KeyID is the public key handed to the browser checkout.
func (c *Client) KeyID() string {
	return c.keyID
}

type (
	OrderRequest struct {
		Amount         int64             `json:"amount"`
		Currency       string            `json:"currency"`
		Receipt        string            `json:"receipt"`
		PaymentCapture int               `json:"payment_capture"`
		Notes          map[string]string `json:"notes,omitempty"`
	}

	Order struct {
		ID         string `json:"id"`
		Entity     string `json:"entity"`
		Amount     int64  `json:"amount"`
		AmountPaid int64  `json:"amount_paid"`
		AmountDue  int64  `json:"amount_due"`
		Currency   string `json:"currency"`
		Receipt    string `json:"receipt"`
		Status     string `json:"status"`
		Attempts   int    `json:"attempts"`
		CreatedAt  int64  `json:"created_at"`
	}

	RefundRequest struct {
		// Amount in minor units; zero refunds the full payment.
		Amount int64             `json:"amount,omitempty"`
		Speed  string            `json:"speed,omitempty"`
		Notes  map[string]string `json:"notes,omitempty"`
	}

	Refund struct {
		ID        string `json:"id"`
		Entity    string `json:"entity"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		PaymentID string `json:"payment_id"`
		Status    string `json:"status"`
		CreatedAt int64  `json:"created_at"`
	}
)

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("gateway: status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// CreateOrder opens a gateway order for req.Amount minor units.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, status.Errorf(status.ErrValidation, "order amount must be positive")
	}
	if req.PaymentCapture == 0 {
		req.PaymentCapture = 1
	}

	var order Order
	if err := c.call(ctx, "create_order", http.MethodPost, "/v1/orders", c.keyID, c.keySecret, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Refund returns money for a captured payment using the refund credential.
func (c *Client) Refund(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error) {
	if paymentID == "" {
		return nil, status.Errorf(status.ErrValidation, "payment id is required for a refund")
	}
	if req.Speed == "" {
		req.Speed = "normal"
	}

	var refund Refund
	path := "/v1/payments/" + url.PathEscape(paymentID) + "/refund"
	if err := c.call(ctx, "refund", http.MethodPost, path, c.refundKeyID, c.refundKeySecret, req, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *Client) call(ctx context.Context, op, method, path, keyID, secret string, in, out any) error {
	start := time.Now()

	// client errors are the caller's fault and must not trip the breaker
	var clientErr error
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.send(ctx, method, path, keyID, secret, in, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			clientErr = err
			return nil
		}
		return err
	})
	if err == nil {
		err = clientErr
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	monitoring.TrackGatewayCall(op, result, time.Since(start))

	if err != nil {
		return status.Wrap(status.ErrGateway, "gateway "+op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path, keyID, secret string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("gateway.send: json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway.send: http.NewRequestWithContext: %w", err)
	}
	req.SetBasicAuth(keyID, secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("gateway.send: hc.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rbody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var reply struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(rbody, &reply) == nil && reply.Error != nil {
			apiErr.Code = reply.Error.Code
			apiErr.Description = reply.Error.Description
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway.send: json.Decode: %w", err)
	}
	return nil
}

// ToMinorUnits converts a major-unit amount to the integer the gateway
// expects, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
