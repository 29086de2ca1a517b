package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("events")
		collection.ListRule = ptr("")
		collection.ViewRule = ptr("")

		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true, Max: 200},
			&core.DateField{Name: "event_date"},
			&core.TextField{Name: "venue", Max: 300},
			&core.EditorField{Name: "description"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}

func ptr(s string) *string {
	return &s
}
