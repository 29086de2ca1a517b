package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("exhibitors")

		collection.Fields.Add(
			&core.TextField{Name: "company_name", Required: true, Max: 200},
			&core.TextField{Name: "contact_person", Max: 200},
			&core.EmailField{Name: "email"},
			&core.TextField{Name: "phone", Max: 30},
			&core.TextField{Name: "domain", Max: 100},
			&core.TextField{Name: "stall_id", Max: 15},
			&core.NumberField{Name: "amount", Min: types.Pointer(0.0)},
			&core.TextField{Name: "gateway_order_id", Max: 100},
			&core.TextField{Name: "gateway_payment_id", Max: 100},
			&core.TextField{Name: "gateway_signature", Max: 200, Hidden: true},
			&core.SelectField{Name: "status", Values: bookingStatuses, MaxSelect: 1},
			&core.TextField{Name: "refund_id", Max: 100},
			&core.DateField{Name: "created_at"},
			&core.DateField{Name: "updated_at"},
		)
		collection.AddIndex("idx_exhibitors_order", true, "gateway_order_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("exhibitors")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
