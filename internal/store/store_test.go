package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expo-booking/internal/status"
	"expo-booking/internal/store"
	"expo-booking/internal/store/storetest"
	"expo-booking/models"
)

func seedTicket(t *testing.T, qty int) (*store.Store, func() int) {
	s, db := storetest.Open(t)
	storetest.AddEvent(t, db, models.Event{ID: "evt1", Name: "Tech Expo 2025", Venue: "Hall A"})
	storetest.AddTicket(t, db, models.Ticket{
		ID:                "tkt1",
		EventID:           "evt1",
		Name:              "General",
		UnitPrice:         storetest.Money("499.50"),
		AvailableQuantity: qty,
	})
	return s, func() int { return storetest.Available(t, db, "tkt1") }
}

func pendingBooking(id, orderID string, qty int) *models.Booking {
	return &models.Booking{
		ID:             id,
		EventID:        "evt1",
		TicketID:       "tkt1",
		BuyerName:      "Asha",
		BuyerEmail:     "asha@example.com",
		BuyerPhone:     "9999999999",
		Quantity:       qty,
		TotalAmount:    storetest.Money("499.50").Mul(storetest.Money("2")),
		GatewayOrderID: orderID,
	}
}

func TestFindTicket(t *testing.T) {
	s, _ := seedTicket(t, 10)
	ctx := context.Background()

	tk, err := s.FindTicket(ctx, "tkt1")
	require.NoError(t, err)
	assert.Equal(t, "evt1", tk.EventID)
	assert.Equal(t, 10, tk.AvailableQuantity)
	assert.True(t, tk.UnitPrice.Equal(storetest.Money("499.5")))

	_, err = s.FindTicket(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestDecrementTicket_NeverGoesNegative(t *testing.T) {
	s, available := seedTicket(t, 3)
	ctx := context.Background()

	require.NoError(t, s.DecrementTicket(ctx, "tkt1", 2))
	assert.Equal(t, 1, available())

	err := s.DecrementTicket(ctx, "tkt1", 2)
	assert.ErrorIs(t, err, status.ErrOversold)
	assert.Equal(t, 1, available())

	require.NoError(t, s.IncrementTicket(ctx, "tkt1", 2))
	assert.Equal(t, 3, available())
}

func TestDecrementTicket_Concurrent(t *testing.T) {
	s, available := seedTicket(t, 5)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.DecrementTicket(ctx, "tkt1", 1); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, 0, available())
}

func TestBookingLifecycle(t *testing.T) {
	s, _ := seedTicket(t, 10)
	ctx := context.Background()

	b := pendingBooking("", "order_1", 2)
	require.NoError(t, s.InsertBooking(ctx, b))
	require.NotEmpty(t, b.ID)

	got, err := s.FindBookingByOrderID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.False(t, got.InventoryApplied)
	assert.Equal(t, 2, got.Quantity)
	assert.True(t, got.TotalAmount.Equal(storetest.Money("999")))

	ok, err := s.MarkBookingFailed(ctx, b.ID, "pay_1", "bad")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkBookingPaid(ctx, b.ID, "pay_1", "good")
	require.NoError(t, err)
	assert.True(t, ok)

	// a second transition is refused so the caller never deducts twice
	ok, err = s.MarkBookingPaid(ctx, b.ID, "pay_1", "good")
	require.NoError(t, err)
	assert.False(t, ok)

	// PAID is never downgraded
	ok, err = s.MarkBookingFailed(ctx, b.ID, "pay_1", "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	assert.True(t, got.InventoryApplied)
	assert.Equal(t, "good", got.GatewaySignature)

	ok, err = s.MarkBookingCancelled(ctx, b.ID, models.StatusRefunded, true, "rfnd_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkBookingCancelled(ctx, b.ID, models.StatusCancelled, false, "")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, got.Status)
	assert.Equal(t, "rfnd_1", got.RefundID)
	assert.False(t, got.InventoryApplied)
	assert.False(t, got.CancelledAt.IsZero())
}

func TestMarkBookingCancelled_RequiresTerminalStatus(t *testing.T) {
	s, _ := seedTicket(t, 10)

	_, err := s.MarkBookingCancelled(context.Background(), "any", models.StatusPaid, false, "")
	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestCloseUnfulfilledBooking(t *testing.T) {
	s, _ := seedTicket(t, 10)
	ctx := context.Background()

	b := pendingBooking("b_close", "order_close", 2)
	require.NoError(t, s.InsertBooking(ctx, b))

	// only a PAID booking can be closed this way
	ok, err := s.CloseUnfulfilledBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkBookingPaid(ctx, b.ID, "pay_1", "sig")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CloseUnfulfilledBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)
	assert.False(t, got.InventoryApplied)
	assert.False(t, got.CancelledAt.IsZero())

	ok, err = s.RecordBookingRefund(ctx, b.ID, "pay_other", "rfnd_x")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.RecordBookingRefund(ctx, b.ID, "pay_1", "rfnd_1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = s.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, got.Status)
	assert.Equal(t, "rfnd_1", got.RefundID)
}

func TestClaimClosedBookingPayment(t *testing.T) {
	s, _ := seedTicket(t, 10)
	ctx := context.Background()

	b := pendingBooking("b_claim", "order_claim", 1)
	require.NoError(t, s.InsertBooking(ctx, b))

	// open bookings are settled through the regular transitions
	ok, err := s.ClaimClosedBookingPayment(ctx, b.ID, "", "pay_late", "sig")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkBookingCancelled(ctx, b.ID, models.StatusCancelled, false, "")
	require.NoError(t, err)
	require.True(t, ok)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimClosedBookingPayment(ctx, b.ID, "", "pay_late", "sig")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := s.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "pay_late", got.GatewayPaymentID)
	assert.Empty(t, got.RefundID)
}

func TestInsertBooking_DuplicateOrderID(t *testing.T) {
	s, _ := seedTicket(t, 10)
	ctx := context.Background()

	require.NoError(t, s.InsertBooking(ctx, pendingBooking("", "order_dup", 1)))
	err := s.InsertBooking(ctx, pendingBooking("", "order_dup", 1))
	assert.ErrorIs(t, err, status.ErrPersistence)
}

func TestRunInTransaction_RollsBack(t *testing.T) {
	s, available := seedTicket(t, 4)
	ctx := context.Background()

	b := pendingBooking("bkg1", "order_tx", 2)
	require.NoError(t, s.InsertBooking(ctx, b))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx *store.Store) error {
		ok, err := tx.MarkBookingPaid(ctx, b.ID, "pay", "sig")
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.DecrementTicket(ctx, "tkt1", 2))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.False(t, got.InventoryApplied)
	assert.Equal(t, 4, available())
}

func TestStallHold(t *testing.T) {
	s, db := storetest.Open(t)
	storetest.AddStall(t, db, models.Stall{ID: "st1", StallNo: "A1", StallType: "premium", Price: storetest.Money("15000")})
	ctx := context.Background()
	now := time.Now()

	ok, err := s.AcquireStallHold(ctx, "st1", "exh1", now, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireStallHold(ctx, "st1", "exh2", now.Add(time.Minute), now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "an unexpired hold must block other exhibitors")

	later := now.Add(11 * time.Minute)
	ok, err = s.AcquireStallHold(ctx, "st1", "exh2", later, later.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "an expired hold can be taken over")

	st, err := s.FindStall(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, "exh2", st.HoldExhibitorID)
	assert.True(t, st.HeldAt(later.Add(time.Minute)))

	// the previous holder cannot release the new hold
	require.NoError(t, s.ReleaseStallHold(ctx, "st1", "exh1"))
	st, err = s.FindStall(ctx, "st1")
	require.NoError(t, err)
	assert.Equal(t, "exh2", st.HoldExhibitorID)

	ok, err = s.ConfirmStall(ctx, "st1", "exh2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ConfirmStall(ctx, "st1", "exh2")
	require.NoError(t, err)
	assert.True(t, ok, "confirming for the same exhibitor is idempotent")

	ok, err = s.ConfirmStall(ctx, "st1", "exh1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.AcquireStallHold(ctx, "st1", "exh3", later, later.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	st, err = s.FindStall(ctx, "st1")
	require.NoError(t, err)
	assert.True(t, st.IsBooked)
	assert.Equal(t, "exh2", st.BookedBy)
	assert.Empty(t, st.HoldExhibitorID)
}

func TestStallHold_ConcurrentAcquire(t *testing.T) {
	s, db := storetest.Open(t)
	storetest.AddStall(t, db, models.Stall{ID: "st1", StallNo: "A1", Price: storetest.Money("100")})
	ctx := context.Background()
	now := time.Now()

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.AcquireStallHold(ctx, "st1", string(rune('a'+i)), now, now.Add(10*time.Minute))
			if err == nil && ok {
				won.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
}

func TestListAvailableStalls(t *testing.T) {
	s, db := storetest.Open(t)
	storetest.AddStall(t, db, models.Stall{ID: "st2", StallNo: "B1", Price: storetest.Money("100")})
	storetest.AddStall(t, db, models.Stall{ID: "st1", StallNo: "A1", Price: storetest.Money("200")})
	storetest.AddStall(t, db, models.Stall{ID: "st3", StallNo: "C1", Price: storetest.Money("300"), IsBooked: true, BookedBy: "exh"})

	stalls, err := s.ListAvailableStalls(context.Background())
	require.NoError(t, err)
	require.Len(t, stalls, 2)
	assert.Equal(t, "A1", stalls[0].StallNo)
	assert.Equal(t, "B1", stalls[1].StallNo)
}

func TestExhibitorLifecycle(t *testing.T) {
	s, _ := storetest.Open(t)
	ctx := context.Background()

	x := &models.Exhibitor{
		CompanyName:    "Acme",
		ContactPerson:  "Ravi",
		Email:          "ravi@acme.test",
		Phone:          "123",
		StallID:        "st1",
		Amount:         storetest.Money("15000"),
		GatewayOrderID: "order_x",
	}
	require.NoError(t, s.InsertExhibitor(ctx, x))

	got, err := s.FindExhibitorByOrderID(ctx, "order_x")
	require.NoError(t, err)
	assert.Equal(t, x.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)

	ok, err := s.SetExhibitorStatus(ctx, x.ID, models.StatusPaid, "pay_x", "sig")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetExhibitorStatus(ctx, x.ID, models.StatusFailed, "pay_x", "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CloseUnfulfilledExhibitor(ctx, x.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimClosedExhibitorPayment(ctx, x.ID, "pay_stale", "pay_y", "sig")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ClaimClosedExhibitorPayment(ctx, x.ID, "pay_x", "pay_y", "sig")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RecordExhibitorRefund(ctx, x.ID, "pay_y", "rfnd_y")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = s.FindExhibitor(ctx, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, got.Status)
	assert.Equal(t, "pay_y", got.GatewayPaymentID)
	assert.Equal(t, "rfnd_y", got.RefundID)

	require.NoError(t, s.DeleteExhibitor(ctx, x.ID))
	_, err = s.FindExhibitor(ctx, x.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestListBookings_Filters(t *testing.T) {
	s, db := storetest.Open(t)
	ctx := context.Background()

	storetest.AddEvent(t, db, models.Event{ID: "evt1", Name: "Tech Expo", Venue: "Hall A"})
	storetest.AddEvent(t, db, models.Event{ID: "evt2", Name: "Food Fest", Venue: "Lawn"})
	storetest.AddTicket(t, db, models.Ticket{ID: "vip", EventID: "evt1", Name: "VIP Pass", UnitPrice: storetest.Money("1000"), AvailableQuantity: 5})
	storetest.AddTicket(t, db, models.Ticket{ID: "gen", EventID: "evt2", Name: "General", UnitPrice: storetest.Money("100"), AvailableQuantity: 5})

	day := func(d int) types.DateTime {
		dt, err := types.ParseDateTime(time.Date(2025, 3, d, 10, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		return dt
	}

	rows := []models.Booking{
		{ID: "b1", EventID: "evt1", TicketID: "vip", BuyerEmail: "asha@example.com", GatewayOrderID: "o1", Quantity: 1, Status: models.StatusPaid, CreatedAt: day(1)},
		{ID: "b2", EventID: "evt2", TicketID: "gen", BuyerEmail: "ben@test.io", GatewayOrderID: "o2", Quantity: 1, Status: models.StatusPending, CreatedAt: day(2)},
		{ID: "b3", EventID: "evt1", TicketID: "vip", BuyerEmail: "Carol@Example.com", GatewayOrderID: "o3", Quantity: 1, Status: models.StatusCancelled, CreatedAt: day(3)},
		{ID: "b4", EventID: "gone", TicketID: "gone", BuyerEmail: "dan_x@example.com", GatewayOrderID: "o4", Quantity: 1, Status: models.StatusPaid, CreatedAt: day(4)},
	}
	for i := range rows {
		require.NoError(t, s.InsertBooking(ctx, &rows[i]))
	}

	ids := func(list []models.BookingDetail) []string {
		out := make([]string, 0, len(list))
		for _, b := range list {
			out = append(out, b.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter models.BookingFilter
		want   []string
	}{
		{"no filter newest first", models.BookingFilter{}, []string{"b4", "b3", "b2", "b1"}},
		{"email case insensitive", models.BookingFilter{Email: "example.COM"}, []string{"b4", "b3", "b1"}},
		{"email underscore is literal", models.BookingFilter{Email: "n_x"}, []string{"b4"}},
		{"event name", models.BookingFilter{EventName: "tech"}, []string{"b3", "b1"}},
		{"unknown event", models.BookingFilter{EventName: "unknown"}, []string{"b4"}},
		{"ticket type", models.BookingFilter{TicketType: "vip"}, []string{"b3", "b1"}},
		{"status", models.BookingFilter{Status: models.StatusPaid}, []string{"b4", "b1"}},
		{"date range", models.BookingFilter{StartDate: day(2), EndDate: day(3)}, []string{"b3", "b2"}},
		{"no match", models.BookingFilter{Email: "nobody"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListBookings(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	detail, err := s.FindBookingDetail(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Tech Expo", detail.EventName)
	assert.Equal(t, "Hall A", detail.EventVenue)
	assert.Equal(t, "VIP Pass", detail.TicketName)
	assert.True(t, detail.TicketPrice.Equal(storetest.Money("1000")))

	orphan, err := s.FindBookingDetail(ctx, "b4")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", orphan.EventName)
	assert.Equal(t, "Unknown", orphan.TicketName)
}
