package services

import (
	"context"

	"expo-booking/internal/status"
	"expo-booking/internal/store"
	"expo-booking/models"
)

type BookingService struct {
	store *store.Store
}

func NewBookingService(s *store.Store) *BookingService {
	return &BookingService{store: s}
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.BookingDetail, error) {
	return s.store.FindBookingDetail(ctx, id)
}

// ListBookings returns bookings matching f, newest first. Only admins may
// list.
func (s *BookingService) ListBookings(ctx context.Context, f models.BookingFilter, actor Actor) ([]models.BookingDetail, error) {
	if !actor.IsAdmin {
		return nil, status.Errorf(status.ErrForbidden, "admin access required")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, status.Errorf(status.ErrValidation, "unknown status %q", f.Status)
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Time().Before(f.StartDate.Time()) {
		return nil, status.Errorf(status.ErrValidation, "end_date is before start_date")
	}
	return s.store.ListBookings(ctx, f)
}
