// Package store is the ledger of tickets, bookings, stalls and exhibitor
// orders. Every inventory or hold mutation is a single conditional UPDATE,
// so correctness never depends on an earlier read.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"expo-booking/internal/status"
	"expo-booking/utils"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

const (
	TableEvents    = "events"
	TableTickets   = "tickets"
	TableBookings  = "event_bookings"
	TableStalls    = "stalls"
	TableExhibitor = "exhibitors"
)

type txRunner func(ctx context.Context, fn func(db dbx.Builder) error) error

type Store struct {
	db  dbx.Builder
	run txRunner
}

// New builds a Store over a plain dbx connection.
func New(db *dbx.DB) *Store {
	return &Store{
		db: db,
		run: func(ctx context.Context, fn func(dbx.Builder) error) error {
			return db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
				return fn(tx)
			})
		},
	}
}

// NewFromApp builds a Store over the pocketbase data database. Transactions
// go through app.RunInTransaction so record hooks see a consistent view.
func NewFromApp(app core.App) *Store {
	return &Store{
		db: app.DB(),
		run: func(ctx context.Context, fn func(dbx.Builder) error) error {
			return app.RunInTransaction(func(txApp core.App) error {
				return fn(txApp.DB())
			})
		},
	}
}

// RunInTransaction executes fn against a transactional Store. Any error
// returned by fn rolls the transaction back and is returned unchanged.
// Nested calls reuse the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.run(ctx, func(db dbx.Builder) error {
		tx := &Store{db: db}
		tx.run = func(_ context.Context, inner func(dbx.Builder) error) error {
			return inner(db)
		}
		return fn(tx)
	})
}

func now() string {
	return types.NowDateTime().String()
}

func newID() string {
	return utils.GenerateRecordID()
}

func stamp(created, updated *types.DateTime) {
	n := types.NowDateTime()
	if created.IsZero() {
		*created = n
	}
	*updated = n
}

func execAffected(ctx context.Context, q *dbx.Query) (bool, error) {
	res, err := q.WithContext(ctx).Execute()
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.Errorf(status.ErrNotFound, "%s not found", what)
	}
	return status.Wrap(status.ErrPersistence, fmt.Sprintf("load %s %s", what, id), err)
}

func persistence(op string, err error) error {
	return status.Wrap(status.ErrPersistence, op, err)
}
