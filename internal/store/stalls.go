package store

import (
	"context"
	"time"

	"expo-booking/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
)

var stallColumns = []string{
	"id", "stall_no", "stall_type", "price", "is_booked", "booked_by",
	"hold_exhibitor_id", "hold_expires_at",
}

var exhibitorColumns = []string{
	"id", "company_name", "contact_person", "email", "phone", "domain",
	"stall_id", "amount", "gateway_order_id", "gateway_payment_id",
	"gateway_signature", "status", "refund_id", "created_at", "updated_at",
}

func (s *Store) FindStall(ctx context.Context, id string) (*models.Stall, error) {
	var st models.Stall
	err := s.db.Select(stallColumns...).
		From(TableStalls).
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&st)
	if err != nil {
		return nil, notFound(err, "stall", id)
	}
	return &st, nil
}

// ListAvailableStalls returns every stall that is not booked, ordered by
// stall number. Holds are re-checked when an order is placed.
func (s *Store) ListAvailableStalls(ctx context.Context) ([]models.Stall, error) {
	stalls := []models.Stall{}
	err := s.db.Select(stallColumns...).
		From(TableStalls).
		Where(dbx.HashExp{"is_booked": false}).
		OrderBy("stall_no ASC").
		WithContext(ctx).
		All(&stalls)
	if err != nil {
		return nil, persistence("list stalls", err)
	}
	return stalls, nil
}

// AcquireStallHold places a hold for exhibitorID until expiresAt. It reports
// false when the stall is booked or another unexpired hold exists.
func (s *Store) AcquireStallHold(ctx context.Context, stallID, exhibitorID string, at time.Time, expiresAt time.Time) (bool, error) {
	nowDT, err := types.ParseDateTime(at)
	if err != nil {
		return false, persistence("acquire hold", err)
	}
	expDT, err := types.ParseDateTime(expiresAt)
	if err != nil {
		return false, persistence("acquire hold", err)
	}

	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE stalls SET hold_exhibitor_id = {:exh}, hold_expires_at = {:exp} "+
			"WHERE id = {:id} AND is_booked = FALSE "+
			"AND (hold_exhibitor_id = '' OR hold_exhibitor_id IS NULL OR hold_expires_at <= {:now})",
	).Bind(dbx.Params{"id": stallID, "exh": exhibitorID, "exp": expDT.String(), "now": nowDT.String()}))
	if err != nil {
		return false, persistence("acquire hold", err)
	}
	return ok, nil
}

// ConfirmStall marks the stall booked by exhibitorID and clears any hold.
// It succeeds when the stall is free or already booked by the same
// exhibitor, so a replayed confirmation is harmless.
func (s *Store) ConfirmStall(ctx context.Context, stallID, exhibitorID string) (bool, error) {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE stalls SET is_booked = TRUE, booked_by = {:exh}, "+
			"hold_exhibitor_id = '', hold_expires_at = '' "+
			"WHERE id = {:id} AND (is_booked = FALSE OR booked_by = {:exh})",
	).Bind(dbx.Params{"id": stallID, "exh": exhibitorID}))
	if err != nil {
		return false, persistence("confirm stall", err)
	}
	return ok, nil
}

// ReleaseStallHold drops the hold only while exhibitorID still owns it.
func (s *Store) ReleaseStallHold(ctx context.Context, stallID, exhibitorID string) error {
	_, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE stalls SET hold_exhibitor_id = '', hold_expires_at = '' "+
			"WHERE id = {:id} AND hold_exhibitor_id = {:exh} AND is_booked = FALSE",
	).Bind(dbx.Params{"id": stallID, "exh": exhibitorID}))
	if err != nil {
		return persistence("release hold", err)
	}
	return nil
}

// InsertExhibitor persists a new exhibitor order.
func (s *Store) InsertExhibitor(ctx context.Context, x *models.Exhibitor) error {
	if x.ID == "" {
		x.ID = newID()
	}
	if x.Status == "" {
		x.Status = models.StatusPending
	}
	stamp(&x.CreatedAt, &x.UpdatedAt)

	_, err := s.db.Insert(TableExhibitor, dbx.Params{
		"id":                 x.ID,
		"company_name":       x.CompanyName,
		"contact_person":     x.ContactPerson,
		"email":              x.Email,
		"phone":              x.Phone,
		"domain":             x.Domain,
		"stall_id":           x.StallID,
		"amount":             x.Amount,
		"gateway_order_id":   x.GatewayOrderID,
		"gateway_payment_id": x.GatewayPaymentID,
		"gateway_signature":  x.GatewaySignature,
		"status":             string(x.Status),
		"refund_id":          x.RefundID,
		"created_at":         x.CreatedAt,
		"updated_at":         x.UpdatedAt,
	}).WithContext(ctx).Execute()
	if err != nil {
		return persistence("insert exhibitor", err)
	}
	return nil
}

func (s *Store) DeleteExhibitor(ctx context.Context, id string) error {
	_, err := s.db.Delete(TableExhibitor, dbx.HashExp{"id": id}).WithContext(ctx).Execute()
	if err != nil {
		return persistence("delete exhibitor", err)
	}
	return nil
}

func (s *Store) FindExhibitor(ctx context.Context, id string) (*models.Exhibitor, error) {
	return s.findExhibitor(ctx, dbx.HashExp{"id": id}, id)
}

func (s *Store) FindExhibitorByOrderID(ctx context.Context, orderID string) (*models.Exhibitor, error) {
	return s.findExhibitor(ctx, dbx.HashExp{"gateway_order_id": orderID}, orderID)
}

func (s *Store) findExhibitor(ctx context.Context, where dbx.Expression, key string) (*models.Exhibitor, error) {
	var x models.Exhibitor
	err := s.db.Select(exhibitorColumns...).
		From(TableExhibitor).
		Where(where).
		WithContext(ctx).
		One(&x)
	if err != nil {
		return nil, notFound(err, "exhibitor order", key)
	}
	return &x, nil
}

// SetExhibitorStatus moves a PENDING or FAILED exhibitor order to st and
// records the payment reference. PAID and terminal orders are never
// rewritten.
func (s *Store) SetExhibitorStatus(ctx context.Context, id string, st models.Status, paymentID, signature string) (bool, error) {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE exhibitors SET status = {:status}, gateway_payment_id = {:pid}, "+
			"gateway_signature = {:sig}, updated_at = {:now} "+
			"WHERE id = {:id} AND status IN ('PENDING', 'FAILED')",
	).Bind(dbx.Params{"id": id, "status": string(st), "pid": paymentID, "sig": signature, "now": now()}))
	if err != nil {
		return false, persistence("update exhibitor", err)
	}
	return ok, nil
}

// CloseUnfulfilledExhibitor reverts a PAID exhibitor order whose stall went
// to someone else to CANCELLED.
func (s *Store) CloseUnfulfilledExhibitor(ctx context.Context, id string) (bool, error) {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE exhibitors SET status = 'CANCELLED', updated_at = {:now} "+
			"WHERE id = {:id} AND status = 'PAID'",
	).Bind(dbx.Params{"id": id, "now": now()}))
	if err != nil {
		return false, persistence("close exhibitor", err)
	}
	return ok, nil
}
