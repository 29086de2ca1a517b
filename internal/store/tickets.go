package store

import (
	"context"

	"expo-booking/internal/status"
	"expo-booking/models"

	"github.com/pocketbase/dbx"
)

var ticketColumns = []string{"id", "event_id", "name", "unit_price", "available_quantity"}

func (s *Store) FindTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.Select(ticketColumns...).
		From(TableTickets).
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&t)
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	return &t, nil
}

// DecrementTicket deducts qty from the ticket stock only when enough stock
// remains. It fails with ErrOversold otherwise.
func (s *Store) DecrementTicket(ctx context.Context, id string, qty int) error {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE tickets SET available_quantity = available_quantity - {:qty} "+
			"WHERE id = {:id} AND available_quantity >= {:qty}",
	).Bind(dbx.Params{"id": id, "qty": qty}))
	if err != nil {
		return persistence("decrement ticket", err)
	}
	if !ok {
		return status.Errorf(status.ErrOversold, "ticket %s cannot cover %d more", id, qty)
	}
	return nil
}

func (s *Store) IncrementTicket(ctx context.Context, id string, qty int) error {
	ok, err := execAffected(ctx, s.db.NewQuery(
		"UPDATE tickets SET available_quantity = available_quantity + {:qty} WHERE id = {:id}",
	).Bind(dbx.Params{"id": id, "qty": qty}))
	if err != nil {
		return persistence("increment ticket", err)
	}
	if !ok {
		return status.Errorf(status.ErrNotFound, "ticket not found")
	}
	return nil
}
