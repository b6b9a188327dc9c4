package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("events")

		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true},
			&core.DateField{Name: "date"},
			&core.TextField{Name: "location"},
			&core.TextField{Name: "description"},
			&core.SelectField{
				Name:      "status",
				MaxSelect: 1,
				Values:    []string{"active", "archived"},
			},
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
