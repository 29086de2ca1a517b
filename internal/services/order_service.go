package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"expo-booking/internal/services/gateway"
	"expo-booking/internal/status"
	"expo-booking/internal/store"
	"expo-booking/models"
	"expo-booking/monitoring"
	"expo-booking/utils"
)

type OrderService struct {
	store    *store.Store
	gateway  PaymentGateway
	currency string
	holdTTL  time.Duration
	now      func() time.Time
}

func NewOrderService(s *store.Store, gw PaymentGateway, currency string, holdTTL time.Duration) *OrderService {
	if currency == "" {
		currency = "INR"
	}
	if holdTTL <= 0 {
		holdTTL = 10 * time.Minute
	}
	return &OrderService{
		store:    s,
		gateway:  gw,
		currency: currency,
		holdTTL:  holdTTL,
		now:      time.Now,
	}
}

type BookingOrderRequest struct {
	EventID   string `json:"event_id" validate:"required"`
	TicketID  string `json:"ticket_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10"`
	UserName  string `json:"user_name" validate:"required"`
	UserEmail string `json:"user_email" validate:"required,email"`
	UserPhone string `json:"user_phone" validate:"required"`
}

type ExhibitorOrderRequest struct {
	CompanyName   string              `json:"company_name" validate:"required"`
	ContactPerson string              `json:"contact_person" validate:"required"`
	Email         string              `json:"email" validate:"required,email"`
	Phone         string              `json:"phone" validate:"required"`
	Domain        string              `json:"domain"`
	StallID       string              `json:"stall_id"`
	Amount        decimal.NullDecimal `json:"amount"`
}

// OrderResult carries what the browser checkout needs to collect payment.
type OrderResult struct {
	GatewayOrder *gateway.Order `json:"gateway_order"`
	GatewayKey   string         `json:"gateway_key"`
	BookingID    string         `json:"booking_id,omitempty"`
	ExhibitorID  string         `json:"exhibitor_id,omitempty"`
}

// CreateBookingOrder opens a gateway order for quantity tickets and records
// a PENDING booking against it. The stock check here is advisory; stock is
// only deducted when the payment is verified.
func (s *OrderService) CreateBookingOrder(ctx context.Context, req BookingOrderRequest) (*OrderResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	ticket, err := s.store.FindTicket(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket.EventID != req.EventID {
		return nil, status.Errorf(status.ErrValidation, "ticket does not belong to this event")
	}
	if ticket.AvailableQuantity < req.Quantity {
		monitoring.TrackOrderCreated("booking", "insufficient")
		return nil, status.Errorf(status.ErrInsufficientInventory, "only %d tickets available", ticket.AvailableQuantity)
	}

	total := ticket.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
	amount := gateway.ToMinorUnits(total)
	if amount <= 0 {
		return nil, status.Errorf(status.ErrValidation, "ticket price must be positive")
	}

	receipt, err := utils.GenerateReceipt("bkg")
	if err != nil {
		return nil, status.Wrap(status.ErrPersistence, "generate receipt", err)
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"event_id":  req.EventID,
			"ticket_id": req.TicketID,
		},
	})
	if err != nil {
		monitoring.TrackOrderCreated("booking", "gateway_error")
		return nil, asGatewayError("create booking order", err)
	}

	booking := &models.Booking{
		EventID:        req.EventID,
		TicketID:       req.TicketID,
		BuyerName:      req.UserName,
		BuyerEmail:     req.UserEmail,
		BuyerPhone:     req.UserPhone,
		Quantity:       req.Quantity,
		TotalAmount:    total,
		GatewayOrderID: order.ID,
		Status:         models.StatusPending,
	}
	if err := s.store.InsertBooking(ctx, booking); err != nil {
		slog.Error("s.store.InsertBooking()", "gateway_order_id", order.ID, "error", err)
		monitoring.TrackOrderCreated("booking", "error")
		return nil, err
	}

	monitoring.TrackOrderCreated("booking", "ok")
	return &OrderResult{
		GatewayOrder: order,
		GatewayKey:   s.gateway.KeyID(),
		BookingID:    booking.ID,
	}, nil
}

// CreateExhibitorOrder opens a gateway order for a stall (priced from the
// stall) or for a free-form amount, and places a time-boxed hold on the
// stall. Losing the hold race removes the new order row.
func (s *OrderService) CreateExhibitorOrder(ctx context.Context, req ExhibitorOrderRequest) (*OrderResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()

	var amount decimal.Decimal
	if req.StallID != "" {
		stall, err := s.store.FindStall(ctx, req.StallID)
		if err != nil {
			return nil, err
		}
		if stall.IsBooked {
			monitoring.TrackOrderCreated("exhibitor", "booked")
			return nil, status.Errorf(status.ErrAlreadyBooked, "selected stall is already booked")
		}
		if stall.HeldAt(now) {
			monitoring.TrackOrderCreated("exhibitor", "held")
			return nil, status.Errorf(status.ErrHeld, "selected stall is temporarily held, please choose another")
		}
		amount = stall.Price
	} else {
		if !req.Amount.Valid {
			return nil, status.Errorf(status.ErrValidation, "amount is required when no stall is selected")
		}
		amount = req.Amount.Decimal
	}

	minor := gateway.ToMinorUnits(amount)
	if minor <= 0 {
		return nil, status.Errorf(status.ErrValidation, "invalid amount")
	}

	receipt, err := utils.GenerateReceipt("exh")
	if err != nil {
		return nil, status.Wrap(status.ErrPersistence, "generate receipt", err)
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   minor,
		Currency: s.currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"company_name": req.CompanyName,
			"stall_id":     req.StallID,
		},
	})
	if err != nil {
		monitoring.TrackOrderCreated("exhibitor", "gateway_error")
		return nil, asGatewayError("create exhibitor order", err)
	}

	exhibitor := &models.Exhibitor{
		CompanyName:    req.CompanyName,
		ContactPerson:  req.ContactPerson,
		Email:          req.Email,
		Phone:          req.Phone,
		Domain:         req.Domain,
		StallID:        req.StallID,
		Amount:         amount,
		GatewayOrderID: order.ID,
		Status:         models.StatusPending,
	}
	if err := s.store.InsertExhibitor(ctx, exhibitor); err != nil {
		slog.Error("s.store.InsertExhibitor()", "gateway_order_id", order.ID, "error", err)
		monitoring.TrackOrderCreated("exhibitor", "error")
		return nil, err
	}

	if req.StallID != "" {
		held, err := s.store.AcquireStallHold(ctx, req.StallID, exhibitor.ID, now, now.Add(s.holdTTL))
		if err != nil || !held {
			if derr := s.store.DeleteExhibitor(ctx, exhibitor.ID); derr != nil {
				slog.Error("s.store.DeleteExhibitor()", "exhibitor_id", exhibitor.ID, "error", derr)
			}
			if err != nil {
				monitoring.TrackOrderCreated("exhibitor", "error")
				return nil, err
			}
			monitoring.TrackOrderCreated("exhibitor", "held")
			return nil, status.Errorf(status.ErrHeld, "selected stall is temporarily held, please choose another")
		}
	}

	monitoring.TrackOrderCreated("exhibitor", "ok")
	return &OrderResult{
		GatewayOrder: order,
		GatewayKey:   s.gateway.KeyID(),
		ExhibitorID:  exhibitor.ID,
	}, nil
}

func (s *OrderService) ListAvailableStalls(ctx context.Context) ([]models.Stall, error) {
	return s.store.ListAvailableStalls(ctx)
}

func asGatewayError(op string, err error) error {
	if errors.Is(err, status.ErrGateway) || errors.Is(err, status.ErrValidation) {
		return err
	}
	return status.Wrap(status.ErrGateway, op, err)
}
