package models

import (
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state shared by bookings and exhibitor orders.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

type Booking struct {
	ID               string          `db:"id" json:"id"`
	EventID          string          `db:"event_id" json:"event_id"`
	TicketID         string          `db:"ticket_id" json:"ticket_id"`
	BuyerName        string          `db:"buyer_name" json:"buyer_name"`
	BuyerEmail       string          `db:"buyer_email" json:"buyer_email"`
	BuyerPhone       string          `db:"buyer_phone" json:"buyer_phone"`
	Quantity         int             `db:"quantity" json:"quantity"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	GatewayOrderID   string          `db:"gateway_order_id" json:"gateway_order_id"`
	GatewayPaymentID string          `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `db:"gateway_signature" json:"-"`
	Status           Status          `db:"status" json:"status"`
	InventoryApplied bool            `db:"inventory_applied" json:"-"`
	RefundID         string          `db:"refund_id" json:"refund_id,omitempty"`
	CancelledAt      types.DateTime  `db:"cancelled_at" json:"cancelled_at"`
	CreatedAt        types.DateTime  `db:"created_at" json:"created_at"`
	UpdatedAt        types.DateTime  `db:"updated_at" json:"updated_at"`
}

// BookingDetail is a booking joined with its event and ticket, as shown to
// admins and on the confirmation page.
type BookingDetail struct {
	Booking

	EventName   string          `db:"event_name" json:"event_name"`
	EventDate   types.DateTime  `db:"event_date" json:"event_date"`
	EventVenue  string          `db:"event_venue" json:"event_venue"`
	TicketName  string          `db:"ticket_name" json:"ticket_type"`
	TicketPrice decimal.Decimal `db:"ticket_price" json:"ticket_price"`
}

// BookingFilter narrows the admin listing. Empty fields are ignored.
type BookingFilter struct {
	EventName  string
	Email      string
	TicketType string
	Status     Status
	StartDate  types.DateTime
	EndDate    types.DateTime
}
