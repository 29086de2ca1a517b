package store

import (
	"context"

	"github.com/pocketbase/dbx"
)

// ClaimClosedBookingPayment attaches a payment that arrived after the
// booking was closed. The booking drops back to CANCELLED with no refund
// until RecordBookingRefund runs. The swap only succeeds while the booking
// still carries prevPaymentID, so one caller owns the refund.
func (s *Store) ClaimClosedBookingPayment(ctx context.Context, id, prevPaymentID, paymentID, signature string) (bool, error) {
	return s.claimClosedPayment(ctx, TableBookings, id, prevPaymentID, paymentID, signature)
}

func (s *Store) ClaimClosedExhibitorPayment(ctx context.Context, id, prevPaymentID, paymentID, signature string) (bool, error) {
	return s.claimClosedPayment(ctx, TableExhibitor, id, prevPaymentID, paymentID, signature)
}

// RecordBookingRefund marks a closed booking REFUNDED once the refund for
// paymentID went through.
func (s *Store) RecordBookingRefund(ctx context.Context, id, paymentID, refundID string) (bool, error) {
	return s.recordRefund(ctx, TableBookings, id, paymentID, refundID)
}

func (s *Store) RecordExhibitorRefund(ctx context.Context, id, paymentID, refundID string) (bool, error) {
	return s.recordRefund(ctx, TableExhibitor, id, paymentID, refundID)
}

func (s *Store) claimClosedPayment(ctx context.Context, table, id, prevPaymentID, paymentID, signature string) (bool, error) {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE "+table+" SET status = 'CANCELLED', gateway_payment_id = {:pid}, "+
			"gateway_signature = {:sig}, refund_id = '', updated_at = {:now} "+
			"WHERE id = {:id} AND gateway_payment_id = {:prev} "+
			"AND status IN ('CANCELLED', 'REFUNDED')",
	).Bind(dbx.Params{
		"id": id, "prev": prevPaymentID, "pid": paymentID, "sig": signature, "now": now(),
	}))
	if err != nil {
		return false, persistence("claim payment", err)
	}
	return ok, nil
}

func (s *Store) recordRefund(ctx context.Context, table, id, paymentID, refundID string) (bool, error) {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE "+table+" SET status = 'REFUNDED', refund_id = {:refund}, updated_at = {:now} "+
			"WHERE id = {:id} AND gateway_payment_id = {:pid} "+
			"AND status IN ('CANCELLED', 'REFUNDED')",
	).Bind(dbx.Params{"id": id, "pid": paymentID, "refund": refundID, "now": now()}))
	if err != nil {
		return false, persistence("record refund", err)
	}
	return ok, nil
}
