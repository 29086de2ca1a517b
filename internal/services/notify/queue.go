// Package notify delivers payment confirmations after a booking or stall
// order is paid. Delivery is queued in redis and retried by a worker, so
// a mail or realtime outage never affects the payment outcome.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	KindBooking   = "booking"
	KindExhibitor = "exhibitor"

	DefaultPendingKey = "notifications:pending"
	DefaultDeadKey    = "notifications:dead"
)

type Job struct {
	ID             string            `json:"id"`
	Kind           string            `json:"kind"`
	RecordID       string            `json:"record_id"`
	GatewayOrderID string            `json:"gateway_order_id"`
	Email          string            `json:"email"`
	Name           string            `json:"name"`
	Details        map[string]string `json:"details,omitempty"`
	Attempts       int               `json:"attempts"`
	LastError      string            `json:"last_error,omitempty"`
	EnqueuedAt     time.Time         `json:"enqueued_at"`
}

// Confirmation is what the payment flow hands over once a record is paid.
type Confirmation struct {
	Kind           string
	RecordID       string
	GatewayOrderID string
	Email          string
	Name           string
	Details        map[string]string
}

// Queue stores pending jobs in a redis list. LPUSH on enqueue and BRPOP in
// the worker give FIFO delivery.
type Queue struct {
	redis      redis.Cmdable
	pendingKey string
	deadKey    string

	now   func() time.Time
	newID func() string
}

func NewQueue(rc redis.Cmdable, pendingKey, deadKey string) *Queue {
	if pendingKey == "" {
		pendingKey = DefaultPendingKey
	}
	if deadKey == "" {
		deadKey = DefaultDeadKey
	}
	return &Queue{
		redis:      rc,
		pendingKey: pendingKey,
		deadKey:    deadKey,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (q *Queue) PendingKey() string { return q.pendingKey }
func (q *Queue) DeadKey() string    { return q.deadKey }

// Notify enqueues a confirmation job.
func (q *Queue) Notify(ctx context.Context, c Confirmation) error {
	if c.RecordID == "" || c.Email == "" {
		return errors.New("notify.Notify: record id and email are required")
	}
	job := Job{
		ID:             q.newID(),
		Kind:           c.Kind,
		RecordID:       c.RecordID,
		GatewayOrderID: c.GatewayOrderID,
		Email:          c.Email,
		Name:           c.Name,
		Details:        c.Details,
		EnqueuedAt:     q.now().UTC(),
	}
	return q.push(ctx, q.pendingKey, job)
}

func (q *Queue) push(ctx context.Context, key string, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("notify.push: json.Marshal: %w", err)
	}
	if err := q.redis.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("notify.push: LPush %s: %w", key, err)
	}
	return nil
}

// pop blocks up to timeout for the next job. It returns (nil, nil) when
// the wait expires with an empty queue.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.redis.BRPop(ctx, timeout, q.pendingKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify.pop: BRPop: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("notify.pop: unexpected reply %v", res)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		// an unreadable payload can never succeed; park it for inspection
		if derr := q.redis.LPush(ctx, q.deadKey, res[1]).Err(); derr != nil {
			return nil, fmt.Errorf("notify.pop: LPush dead: %w", derr)
		}
		return nil, fmt.Errorf("notify.pop: json.Unmarshal: %w", err)
	}
	return &job, nil
}

// Stats reports the pending and dead-lettered job counts.
func (q *Queue) Stats(ctx context.Context) (pending, dead int64, err error) {
	if pending, err = q.redis.LLen(ctx, q.pendingKey).Result(); err != nil {
		return 0, 0, fmt.Errorf("notify.Stats: LLen %s: %w", q.pendingKey, err)
	}
	if dead, err = q.redis.LLen(ctx, q.deadKey).Result(); err != nil {
		return 0, 0, fmt.Errorf("notify.Stats: LLen %s: %w", q.deadKey, err)
	}
	return pending, dead, nil
}
