package store

import (
	"context"
	"strings"

	"expo-booking/internal/status"
	"expo-booking/models"

	"github.com/pocketbase/dbx"
)

var bookingColumns = []string{
	"id", "event_id", "ticket_id", "buyer_name", "buyer_email", "buyer_phone",
	"quantity", "total_amount", "gateway_order_id", "gateway_payment_id",
	"gateway_signature", "status", "inventory_applied", "refund_id",
	"cancelled_at", "created_at", "updated_at",
}

const bookingDetailSelect = `SELECT
	b.id, b.event_id, b.ticket_id, b.buyer_name, b.buyer_email, b.buyer_phone,
	b.quantity, b.total_amount, b.gateway_order_id, b.gateway_payment_id,
	b.gateway_signature, b.status, b.inventory_applied, b.refund_id,
	b.cancelled_at, b.created_at, b.updated_at,
	COALESCE(e.name, 'Unknown') AS event_name,
	COALESCE(e.event_date, '') AS event_date,
	COALESCE(e.venue, 'Unknown') AS event_venue,
	COALESCE(t.name, 'Unknown') AS ticket_name,
	COALESCE(t.unit_price, 0) AS ticket_price
FROM event_bookings b
LEFT JOIN events e ON e.id = b.event_id
LEFT JOIN tickets t ON t.id = b.ticket_id`

// InsertBooking persists a new booking. ID and timestamps are filled in
// when empty.
func (s *Store) InsertBooking(ctx context.Context, b *models.Booking) error {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	stamp(&b.CreatedAt, &b.UpdatedAt)

	_, err := s.db.Insert(TableBookings, dbx.Params{
		"id":                 b.ID,
		"event_id":           b.EventID,
		"ticket_id":          b.TicketID,
		"buyer_name":         b.BuyerName,
		"buyer_email":        b.BuyerEmail,
		"buyer_phone":        b.BuyerPhone,
		"quantity":           b.Quantity,
		"total_amount":       b.TotalAmount,
		"gateway_order_id":   b.GatewayOrderID,
		"gateway_payment_id": b.GatewayPaymentID,
		"gateway_signature":  b.GatewaySignature,
		"status":             string(b.Status),
		"inventory_applied":  b.InventoryApplied,
		"refund_id":          b.RefundID,
		"cancelled_at":       b.CancelledAt,
		"created_at":         b.CreatedAt,
		"updated_at":         b.UpdatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		return persistence("insert booking", err)
	}
	return nil
}

func (s *Store) FindBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.findBooking(ctx, dbx.HashExp{"id": id}, id)
}

func (s *Store) FindBookingByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	return s.findBooking(ctx, dbx.HashExp{"gateway_order_id": orderID}, orderID)
}

func (s *Store) findBooking(ctx context.Context, where dbx.Expression, key string) (*models.Booking, error) {
	var b models.Booking
	err := s.db.Select(bookingColumns...).
		From(TableBookings).
		Where(where).
		WithContext(ctx).
		One(&b)
	if err != nil {
		return nil, notFound(err, "booking", key)
	}
	return &b, nil
}

// MarkBookingPaid moves a PENDING or FAILED booking to PAID and flags its
// inventory deduction as applied. It reports false when the booking was
// already paid or is terminal, so the caller must not deduct again.
func (s *Store) MarkBookingPaid(ctx context.Context, id, paymentID, signature string) (bool, error) {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE event_bookings SET status = 'PAID', gateway_payment_id = {:pid}, "+
			"gateway_signature = {:sig}, inventory_applied = TRUE, updated_at = {:now} "+
			"WHERE id = {:id} AND inventory_applied = FALSE AND status IN ('PENDING', 'FAILED')",
	).Bind(dbx.Params{"id": id, "pid": paymentID, "sig": signature, "now": now()}))
	if err != nil {
		return false, persistence("mark booking paid", err)
	}
	return ok, nil
}

// MarkBookingFailed records a rejected signature. PAID and terminal
// bookings are left untouched.
func (s *Store) MarkBookingFailed(ctx context.Context, id, paymentID, signature string) (bool, error) {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE event_bookings SET status = 'FAILED', gateway_payment_id = {:pid}, "+
			"gateway_signature = {:sig}, updated_at = {:now} "+
			"WHERE id = {:id} AND status IN ('PENDING', 'FAILED')",
	).Bind(dbx.Params{"id": id, "pid": paymentID, "sig": signature, "now": now()}))
	if err != nil {
		return false, persistence("mark booking failed", err)
	}
	return ok, nil
}

// CloseUnfulfilledBooking reverts a PAID booking whose stock could not be
// deducted to CANCELLED, keeping the payment reference so the payment can
// be refunded once the transaction commits.
func (s *Store) CloseUnfulfilledBooking(ctx context.Context, id string) (bool, error) {
	ts := now()
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE event_bookings SET status = 'CANCELLED', inventory_applied = FALSE, "+
			"cancelled_at = {:now}, updated_at = {:now} "+
			"WHERE id = {:id} AND status = 'PAID'",
	).Bind(dbx.Params{"id": id, "now": ts}))
	if err != nil {
		return false, persistence("close booking", err)
	}
	return ok, nil
}

// MarkBookingCancelled moves a non-terminal booking to st and clears its
// inventory flag. The write only succeeds while the booking still carries
// the inventoryApplied value the caller read, so at most one concurrent
// cancellation restores stock.
func (s *Store) MarkBookingCancelled(ctx context.Context, id string, st models.Status, inventoryApplied bool, refundID string) (bool, error) {
	if !st.Terminal() {
		return false, status.Errorf(status.ErrValidation, "status %s is not terminal", st)
	}
	ts := now()
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE event_bookings SET status = {:status}, refund_id = {:refund}, "+
			"inventory_applied = FALSE, cancelled_at = {:now}, updated_at = {:now} "+
			"WHERE id = {:id} AND inventory_applied = {:applied} "+
			"AND status NOT IN ('CANCELLED', 'REFUNDED')",
	).Bind(dbx.Params{
		"id": id, "status": string(st), "refund": refundID,
		"applied": inventoryApplied, "now": ts,
	}))
	if err != nil {
		return false, persistence("cancel booking", err)
	}
	return ok, nil
}

func (s *Store) FindBookingDetail(ctx context.Context, id string) (*models.BookingDetail, error) {
	var d models.BookingDetail
	err := s.db.NewQuery(bookingDetailSelect + " WHERE b.id = {:id}").
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&d)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &d, nil
}

// ListBookings returns bookings joined with event and ticket names, newest
// first. Text filters match case-insensitively anywhere in the value.
func (s *Store) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.BookingDetail, error) {
	var (
		where  []string
		params = dbx.Params{}
	)

	if f.Email != "" {
		where = append(where, `b.buyer_email LIKE {:email} ESCAPE '\'`)
		params["email"] = containsPattern(f.Email)
	}
	if f.EventName != "" {
		where = append(where, `COALESCE(e.name, 'Unknown') LIKE {:event_name} ESCAPE '\'`)
		params["event_name"] = containsPattern(f.EventName)
	}
	if f.TicketType != "" {
		where = append(where, `COALESCE(t.name, 'Unknown') LIKE {:ticket_type} ESCAPE '\'`)
		params["ticket_type"] = containsPattern(f.TicketType)
	}
	if f.Status != "" {
		where = append(where, "b.status = {:status}")
		params["status"] = string(f.Status)
	}
	if !f.StartDate.IsZero() {
		where = append(where, "b.created_at >= {:start}")
		params["start"] = f.StartDate.String()
	}
	if !f.EndDate.IsZero() {
		where = append(where, "b.created_at <= {:end}")
		params["end"] = f.EndDate.String()
	}

	query := bookingDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.created_at DESC, b.id DESC"

	bookings := []models.BookingDetail{}
	if err := s.db.NewQuery(query).Bind(params).WithContext(ctx).All(&bookings); err != nil {
		return nil, persistence("list bookings", err)
	}
	return bookings, nil
}

func containsPattern(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(v) + "%"
}
