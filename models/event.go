package models

import "github.com/pocketbase/pocketbase/tools/types"

type Event struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	EventDate types.DateTime `db:"event_date" json:"event_date"`
	Venue     string         `db:"venue" json:"venue"`
}
