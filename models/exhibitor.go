package models

import (
	"time"

	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

type Stall struct {
	ID              string          `db:"id" json:"id"`
	StallNo         string          `db:"stall_no" json:"stall_no"`
	StallType       string          `db:"stall_type" json:"stall_type"`
	Price           decimal.Decimal `db:"price" json:"price"`
	IsBooked        bool            `db:"is_booked" json:"is_booked"`
	BookedBy        string          `db:"booked_by" json:"-"`
	HoldExhibitorID string          `db:"hold_exhibitor_id" json:"-"`
	HoldExpiresAt   types.DateTime  `db:"hold_expires_at" json:"-"`
}

// HeldAt reports whether an unexpired hold exists at now.
func (s *Stall) HeldAt(now time.Time) bool {
	if s.HoldExhibitorID == "" || s.HoldExpiresAt.IsZero() {
		return false
	}
	return s.HoldExpiresAt.Time().After(now)
}

type Exhibitor struct {
	ID               string          `db:"id" json:"id"`
	CompanyName      string          `db:"company_name" json:"company_name"`
	ContactPerson    string          `db:"contact_person" json:"contact_person"`
	Email            string          `db:"email" json:"email"`
	Phone            string          `db:"phone" json:"phone"`
	Domain           string          `db:"domain" json:"domain,omitempty"`
	StallID          string          `db:"stall_id" json:"stall_id,omitempty"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	GatewayOrderID   string          `db:"gateway_order_id" json:"gateway_order_id"`
	GatewayPaymentID string          `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `db:"gateway_signature" json:"-"`
	Status           Status          `db:"status" json:"status"`
	RefundID         string          `db:"refund_id" json:"refund_id,omitempty"`
	CreatedAt        types.DateTime  `db:"created_at" json:"created_at"`
	UpdatedAt        types.DateTime  `db:"updated_at" json:"updated_at"`
}
