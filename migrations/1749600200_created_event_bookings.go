package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

var bookingStatuses = []string{"PENDING", "PAID", "FAILED", "CANCELLED", "REFUNDED"}

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		tickets, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		// written only through the API routes; no public rules
		collection := core.NewBaseCollection("event_bookings")

		collection.Fields.Add(
			&core.RelationField{Name: "event_id", CollectionId: events.Id, MaxSelect: 1},
			&core.RelationField{Name: "ticket_id", CollectionId: tickets.Id, MaxSelect: 1},
			&core.TextField{Name: "buyer_name", Max: 200},
			&core.EmailField{Name: "buyer_email"},
			&core.TextField{Name: "buyer_phone", Max: 30},
			&core.NumberField{Name: "quantity", Min: types.Pointer(1.0), Max: types.Pointer(10.0), OnlyInt: true},
			&core.NumberField{Name: "total_amount", Min: types.Pointer(0.0)},
			&core.TextField{Name: "gateway_order_id", Max: 100},
			&core.TextField{Name: "gateway_payment_id", Max: 100},
			&core.TextField{Name: "gateway_signature", Max: 200, Hidden: true},
			&core.SelectField{Name: "status", Values: bookingStatuses, MaxSelect: 1},
			&core.BoolField{Name: "inventory_applied"},
			&core.TextField{Name: "refund_id", Max: 100},
			&core.DateField{Name: "cancelled_at"},
			&core.DateField{Name: "created_at"},
			&core.DateField{Name: "updated_at"},
		)
		collection.AddIndex("idx_event_bookings_order", true, "gateway_order_id", "")
		collection.AddIndex("idx_event_bookings_created", false, "created_at", "")
		collection.AddIndex("idx_event_bookings_email", false, "buyer_email", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("event_bookings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
