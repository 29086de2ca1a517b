package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("stalls")
		collection.ListRule = ptr("")
		collection.ViewRule = ptr("")

		collection.Fields.Add(
			&core.TextField{Name: "stall_no", Required: true, Max: 20},
			&core.TextField{Name: "stall_type", Max: 50},
			&core.NumberField{Name: "price", Min: types.Pointer(0.0)},
			&core.BoolField{Name: "is_booked"},
			&core.TextField{Name: "booked_by", Max: 15, Hidden: true},
			&core.TextField{Name: "hold_exhibitor_id", Max: 15, Hidden: true},
			&core.DateField{Name: "hold_expires_at", Hidden: true},
		)
		collection.AddIndex("idx_stalls_stall_no", true, "stall_no", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("stalls")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
