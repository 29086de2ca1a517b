// Package storetest opens an in-memory ledger with the same column layout
// the migrations create, for use in package tests.
package storetest

import (
	"strings"
	"testing"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"expo-booking/internal/store"
	"expo-booking/models"
)

const schema = `
CREATE TABLE events (
	id TEXT PRIMARY KEY NOT NULL,
	name TEXT DEFAULT '' NOT NULL,
	event_date TEXT DEFAULT '' NOT NULL,
	venue TEXT DEFAULT '' NOT NULL
);
CREATE TABLE tickets (
	id TEXT PRIMARY KEY NOT NULL,
	event_id TEXT DEFAULT '' NOT NULL,
	name TEXT DEFAULT '' NOT NULL,
	unit_price NUMERIC DEFAULT 0 NOT NULL,
	available_quantity NUMERIC DEFAULT 0 NOT NULL
);
CREATE TABLE event_bookings (
	id TEXT PRIMARY KEY NOT NULL,
	event_id TEXT DEFAULT '' NOT NULL,
	ticket_id TEXT DEFAULT '' NOT NULL,
	buyer_name TEXT DEFAULT '' NOT NULL,
	buyer_email TEXT DEFAULT '' NOT NULL,
	buyer_phone TEXT DEFAULT '' NOT NULL,
	quantity NUMERIC DEFAULT 0 NOT NULL,
	total_amount NUMERIC DEFAULT 0 NOT NULL,
	gateway_order_id TEXT DEFAULT '' NOT NULL,
	gateway_payment_id TEXT DEFAULT '' NOT NULL,
	gateway_signature TEXT DEFAULT '' NOT NULL,
	status TEXT DEFAULT '' NOT NULL,
	inventory_applied BOOLEAN DEFAULT FALSE NOT NULL,
	refund_id TEXT DEFAULT '' NOT NULL,
	cancelled_at TEXT DEFAULT '' NOT NULL,
	created_at TEXT DEFAULT '' NOT NULL,
	updated_at TEXT DEFAULT '' NOT NULL
);
CREATE UNIQUE INDEX idx_event_bookings_order ON event_bookings (gateway_order_id);
CREATE TABLE stalls (
	id TEXT PRIMARY KEY NOT NULL,
	stall_no TEXT DEFAULT '' NOT NULL,
	stall_type TEXT DEFAULT '' NOT NULL,
	price NUMERIC DEFAULT 0 NOT NULL,
	is_booked BOOLEAN DEFAULT FALSE NOT NULL,
	booked_by TEXT DEFAULT '' NOT NULL,
	hold_exhibitor_id TEXT DEFAULT '' NOT NULL,
	hold_expires_at TEXT DEFAULT '' NOT NULL
);
CREATE TABLE exhibitors (
	id TEXT PRIMARY KEY NOT NULL,
	company_name TEXT DEFAULT '' NOT NULL,
	contact_person TEXT DEFAULT '' NOT NULL,
	email TEXT DEFAULT '' NOT NULL,
	phone TEXT DEFAULT '' NOT NULL,
	domain TEXT DEFAULT '' NOT NULL,
	stall_id TEXT DEFAULT '' NOT NULL,
	amount NUMERIC DEFAULT 0 NOT NULL,
	gateway_order_id TEXT DEFAULT '' NOT NULL,
	gateway_payment_id TEXT DEFAULT '' NOT NULL,
	gateway_signature TEXT DEFAULT '' NOT NULL,
	status TEXT DEFAULT '' NOT NULL,
	refund_id TEXT DEFAULT '' NOT NULL,
	created_at TEXT DEFAULT '' NOT NULL,
	updated_at TEXT DEFAULT '' NOT NULL
);
CREATE UNIQUE INDEX idx_exhibitors_order ON exhibitors (gateway_order_id);
`

// Open returns a Store backed by a fresh in-memory database together with
// the raw handle for fixtures and assertions.
func Open(t testing.TB) (*store.Store, *dbx.DB) {
	t.Helper()

	db, err := dbx.Open("sqlite", ":memory:")
	require.NoError(t, err)

	// a single connection keeps every query on the same in-memory database
	db.DB().SetMaxOpenConns(1)

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err = db.NewQuery(stmt).Execute()
		require.NoError(t, err)
	}

	t.Cleanup(func() { db.Close() })

	return store.New(db), db
}

func AddEvent(t testing.TB, db *dbx.DB, e models.Event) {
	t.Helper()
	_, err := db.Insert(store.TableEvents, dbx.Params{
		"id":         e.ID,
		"name":       e.Name,
		"event_date": e.EventDate,
		"venue":      e.Venue,
	}).Execute()
	require.NoError(t, err)
}

func AddTicket(t testing.TB, db *dbx.DB, tk models.Ticket) {
	t.Helper()
	_, err := db.Insert(store.TableTickets, dbx.Params{
		"id":                 tk.ID,
		"event_id":           tk.EventID,
		"name":               tk.Name,
		"unit_price":         tk.UnitPrice,
		"available_quantity": tk.AvailableQuantity,
	}).Execute()
	require.NoError(t, err)
}

func AddStall(t testing.TB, db *dbx.DB, st models.Stall) {
	t.Helper()
	_, err := db.Insert(store.TableStalls, dbx.Params{
		"id":                st.ID,
		"stall_no":          st.StallNo,
		"stall_type":        st.StallType,
		"price":             st.Price,
		"is_booked":         st.IsBooked,
		"booked_by":         st.BookedBy,
		"hold_exhibitor_id": st.HoldExhibitorID,
		"hold_expires_at":   st.HoldExpiresAt,
	}).Execute()
	require.NoError(t, err)
}

func Available(t testing.TB, db *dbx.DB, ticketID string) int {
	t.Helper()
	var n int
	err := db.NewQuery("SELECT available_quantity FROM tickets WHERE id = {:id}").
		Bind(dbx.Params{"id": ticketID}).
		Row(&n)
	require.NoError(t, err)
	return n
}

func Money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
