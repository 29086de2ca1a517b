package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"expo-booking/internal/services/gateway"
	"expo-booking/internal/services/notify"
	"expo-booking/internal/status"
	"expo-booking/internal/store"
	"expo-booking/models"
	"expo-booking/monitoring"
)

const (
	refundReasonUnfulfilled = "Order could not be fulfilled"
	refundReasonClosed      = "Payment received after order was closed"
)

type PaymentService struct {
	store         *store.Store
	gateway       PaymentGateway
	notifier      Notifier
	notifyTimeout time.Duration
}

func NewPaymentService(s *store.Store, gw PaymentGateway, n Notifier) *PaymentService {
	return &PaymentService{
		store:         s,
		gateway:       gw,
		notifier:      n,
		notifyTimeout: 2 * time.Second,
	}
}

type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id" alias:"order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" alias:"payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" alias:"signature" validate:"required"`
}

type VerifyResult struct {
	Valid      bool          `json:"valid"`
	Status     models.Status `json:"status"`
	RecordKind string        `json:"record_kind"`
	MatchedID  string        `json:"matched_id"`
}

// unfulfilled is a valid payment whose record cannot be honoured, such as
// a booking whose tickets sold out, a stall someone else paid for, or an
// order that was already closed. The record is CANCELLED with the payment
// attached by the time it is refunded.
type unfulfilled struct {
	kind      string
	recordID  string
	paymentID string
	reason    string
	cause     error
}

// VerifyPayment reconciles a checkout callback with the ledger. The status
// write and its inventory effect commit together, and a record that is
// already PAID is never touched again, so the call is safe to replay.
// A payment that cannot be honoured is claimed in the same transaction and
// refunded after it commits.
func (s *PaymentService) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	valid := s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature)
	result := &VerifyResult{Valid: valid}

	var (
		confirmation *notify.Confirmation
		uf           *unfulfilled
	)
	err := s.store.RunInTransaction(ctx, func(tx *store.Store) error {
		exhibitor, err := tx.FindExhibitorByOrderID(ctx, req.OrderID)
		if err == nil {
			result.RecordKind = notify.KindExhibitor
			result.MatchedID = exhibitor.ID
			confirmation, uf, err = s.applyExhibitor(ctx, tx, exhibitor, req, valid, result)
			return err
		}
		if !errors.Is(err, status.ErrNotFound) {
			return err
		}

		booking, err := tx.FindBookingByOrderID(ctx, req.OrderID)
		if errors.Is(err, status.ErrNotFound) {
			return status.Errorf(status.ErrNotFound, "no booking or exhibitor order matches this payment")
		}
		if err != nil {
			return err
		}
		result.RecordKind = notify.KindBooking
		result.MatchedID = booking.ID
		confirmation, uf, err = s.applyBooking(ctx, tx, booking, req, valid, result)
		return err
	})

	if err != nil {
		return nil, err
	}
	if uf != nil {
		return nil, s.compensate(context.WithoutCancel(ctx), uf)
	}

	monitoring.TrackVerification(result.RecordKind, string(result.Status))

	if confirmation != nil {
		s.notify(ctx, confirmation)
	}
	return result, nil
}

func (s *PaymentService) applyBooking(ctx context.Context, tx *store.Store, b *models.Booking, req VerifyRequest, valid bool, result *VerifyResult) (*notify.Confirmation, *unfulfilled, error) {
	if !valid {
		if b.Status == models.StatusPending || b.Status == models.StatusFailed {
			if _, err := tx.MarkBookingFailed(ctx, b.ID, req.PaymentID, req.Signature); err != nil {
				return nil, nil, err
			}
			result.Status = models.StatusFailed
			return nil, nil, nil
		}
		result.Status = b.Status
		return nil, nil, nil
	}

	if b.Status.Terminal() {
		if b.GatewayPaymentID == req.PaymentID {
			result.Status = b.Status
			return nil, nil, nil
		}
		ok, err := tx.ClaimClosedBookingPayment(ctx, b.ID, b.GatewayPaymentID, req.PaymentID, req.Signature)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, s.currentBookingStatus(ctx, tx, b.ID, result)
		}
		slog.Warn("payment received for closed booking", "booking_id", b.ID, "status", b.Status, "payment_id", req.PaymentID, "previous_payment_id", b.GatewayPaymentID)
		return nil, &unfulfilled{
			kind:      notify.KindBooking,
			recordID:  b.ID,
			paymentID: req.PaymentID,
			reason:    refundReasonClosed,
			cause:     status.Errorf(status.ErrAlreadyTerminal, "booking is already %s", b.Status),
		}, nil
	}
	if b.Status == models.StatusPaid {
		result.Status = b.Status
		return nil, nil, nil
	}

	ok, err := tx.MarkBookingPaid(ctx, b.ID, req.PaymentID, req.Signature)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, s.currentBookingStatus(ctx, tx, b.ID, result)
	}

	if err := tx.DecrementTicket(ctx, b.TicketID, b.Quantity); err != nil {
		if !errors.Is(err, status.ErrOversold) {
			return nil, nil, err
		}
		closed, cerr := tx.CloseUnfulfilledBooking(ctx, b.ID)
		if cerr != nil {
			return nil, nil, cerr
		}
		if !closed {
			return nil, nil, status.Errorf(status.ErrPersistence, "booking %s changed while settling", b.ID)
		}
		return nil, &unfulfilled{
			kind:      notify.KindBooking,
			recordID:  b.ID,
			paymentID: req.PaymentID,
			reason:    refundReasonUnfulfilled,
			cause:     err,
		}, nil
	}

	result.Status = models.StatusPaid
	return &notify.Confirmation{
		Kind:           notify.KindBooking,
		RecordID:       b.ID,
		GatewayOrderID: b.GatewayOrderID,
		Email:          b.BuyerEmail,
		Name:           b.BuyerName,
		Details: map[string]string{
			"quantity":     strconv.Itoa(b.Quantity),
			"total_amount": b.TotalAmount.StringFixed(2),
		},
	}, nil, nil
}

func (s *PaymentService) currentBookingStatus(ctx context.Context, tx *store.Store, id string, result *VerifyResult) error {
	current, err := tx.FindBooking(ctx, id)
	if err != nil {
		return err
	}
	result.Status = current.Status
	return nil
}

func (s *PaymentService) applyExhibitor(ctx context.Context, tx *store.Store, x *models.Exhibitor, req VerifyRequest, valid bool, result *VerifyResult) (*notify.Confirmation, *unfulfilled, error) {
	if !valid {
		if x.Status == models.StatusPending || x.Status == models.StatusFailed {
			if _, err := tx.SetExhibitorStatus(ctx, x.ID, models.StatusFailed, req.PaymentID, req.Signature); err != nil {
				return nil, nil, err
			}
			result.Status = models.StatusFailed
			return nil, nil, nil
		}
		result.Status = x.Status
		return nil, nil, nil
	}

	if x.Status.Terminal() {
		if x.GatewayPaymentID == req.PaymentID {
			result.Status = x.Status
			return nil, nil, nil
		}
		ok, err := tx.ClaimClosedExhibitorPayment(ctx, x.ID, x.GatewayPaymentID, req.PaymentID, req.Signature)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, s.currentExhibitorStatus(ctx, tx, x.ID, result)
		}
		slog.Warn("payment received for closed exhibitor order", "exhibitor_id", x.ID, "status", x.Status, "payment_id", req.PaymentID, "previous_payment_id", x.GatewayPaymentID)
		return nil, &unfulfilled{
			kind:      notify.KindExhibitor,
			recordID:  x.ID,
			paymentID: req.PaymentID,
			reason:    refundReasonClosed,
			cause:     status.Errorf(status.ErrAlreadyTerminal, "exhibitor order is already %s", x.Status),
		}, nil
	}
	if x.Status == models.StatusPaid {
		result.Status = x.Status
		return nil, nil, nil
	}

	ok, err := tx.SetExhibitorStatus(ctx, x.ID, models.StatusPaid, req.PaymentID, req.Signature)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, s.currentExhibitorStatus(ctx, tx, x.ID, result)
	}

	details := map[string]string{
		"company_name": x.CompanyName,
		"amount":       x.Amount.StringFixed(2),
	}

	if x.StallID != "" {
		booked, err := tx.ConfirmStall(ctx, x.StallID, x.ID)
		if err != nil {
			return nil, nil, err
		}
		if !booked {
			closed, err := tx.CloseUnfulfilledExhibitor(ctx, x.ID)
			if err != nil {
				return nil, nil, err
			}
			if !closed {
				return nil, nil, status.Errorf(status.ErrPersistence, "exhibitor order %s changed while settling", x.ID)
			}
			return nil, &unfulfilled{
				kind:      notify.KindExhibitor,
				recordID:  x.ID,
				paymentID: req.PaymentID,
				reason:    refundReasonUnfulfilled,
				cause:     status.Errorf(status.ErrAlreadyBooked, "stall %s is already booked", x.StallID),
			}, nil
		}
		if stall, err := tx.FindStall(ctx, x.StallID); err == nil {
			details["stall_no"] = stall.StallNo
		}
	}

	result.Status = models.StatusPaid
	return &notify.Confirmation{
		Kind:           notify.KindExhibitor,
		RecordID:       x.ID,
		GatewayOrderID: x.GatewayOrderID,
		Email:          x.Email,
		Name:           x.ContactPerson,
		Details:        details,
	}, nil, nil
}

func (s *PaymentService) currentExhibitorStatus(ctx context.Context, tx *store.Store, id string, result *VerifyResult) error {
	current, err := tx.FindExhibitor(ctx, id)
	if err != nil {
		return err
	}
	result.Status = current.Status
	return nil
}

// compensate refunds a captured payment that could not be honoured. The
// record is already CANCELLED and moves to REFUNDED once the refund is
// recorded; it stays CANCELLED when the refund fails.
func (s *PaymentService) compensate(ctx context.Context, uf *unfulfilled) error {
	final := models.StatusCancelled

	refund, err := s.gateway.Refund(ctx, uf.paymentID, gateway.RefundRequest{
		Speed: "normal",
		Notes: map[string]string{
			"reason":        uf.reason,
			uf.kind + "_id": uf.recordID,
		},
	})
	if err != nil {
		slog.Error("s.gateway.Refund()", "kind", uf.kind, "record_id", uf.recordID, "payment_id", uf.paymentID, "error", err)
	} else {
		final = models.StatusRefunded
		var recorded bool
		switch uf.kind {
		case notify.KindBooking:
			recorded, err = s.store.RecordBookingRefund(ctx, uf.recordID, uf.paymentID, refund.ID)
		default:
			recorded, err = s.store.RecordExhibitorRefund(ctx, uf.recordID, uf.paymentID, refund.ID)
		}
		if err != nil || !recorded {
			slog.Error("refund issued but not recorded", "kind", uf.kind, "record_id", uf.recordID, "refund_id", refund.ID, "error", err)
		}
	}

	monitoring.TrackVerification(uf.kind, string(final))

	msg := "order could not be fulfilled; the payment has been refunded"
	if final == models.StatusCancelled {
		msg = "order could not be fulfilled; the refund could not be issued automatically, please contact support"
	}
	return status.Wrap(errorKind(uf.cause), msg, uf.cause)
}

func errorKind(err error) error {
	for _, kind := range []error{status.ErrOversold, status.ErrAlreadyBooked, status.ErrAlreadyTerminal} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return status.ErrPersistence
}

func (s *PaymentService) notify(ctx context.Context, c *notify.Confirmation) {
	if s.notifier == nil {
		return
	}
	if c.Kind == notify.KindBooking {
		if detail, err := s.store.FindBookingDetail(ctx, c.RecordID); err == nil {
			c.Details["event_name"] = detail.EventName
		}
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(nctx, *c); err != nil {
		monitoring.TrackNotification("queue", "error")
		slog.Warn("s.notifier.Notify()", "kind", c.Kind, "record_id", c.RecordID, "error", err)
		return
	}
	monitoring.TrackNotification("queue", "ok")
}
