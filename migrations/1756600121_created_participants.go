package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("participants")

		collection.Fields.Add(
			&core.RelationField{
				Name:          "event",
				Required:      true,
				CollectionId:  events.Id,
				CascadeDelete: true,
				MaxSelect:     1,
			},
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "last_name", Required: true},
			&core.TextField{Name: "national_id", Required: true},
			&core.TextField{Name: "entry_code", Required: true},
			&core.TextField{Name: "reissued_entry_code"},
			&core.TextField{Name: "phone"},
			&core.EmailField{Name: "email"},
			&core.TextField{Name: "payment_method"},
			&core.TextField{Name: "cancellation_payment_method"},
			&core.TextField{Name: "category"},
			// decimal values stored as text to keep exact amounts
			&core.TextField{Name: "price_owed"},
			&core.TextField{Name: "amount_paid"},
			&core.BoolField{Name: "accredited"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_participants_event_national_id", true, "event, national_id", "")
		collection.AddIndex("idx_participants_event_entry_code", true, "event, entry_code", "")
		collection.AddIndex("idx_participants_event_reissued_code", true, "event, reissued_entry_code", "reissued_entry_code != ''")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("participants")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
