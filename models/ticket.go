package models

import "github.com/shopspring/decimal"

type Ticket struct {
	ID                string          `db:"id" json:"id"`
	EventID           string          `db:"event_id" json:"event_id"`
	Name              string          `db:"name" json:"name"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	AvailableQuantity int             `db:"available_quantity" json:"available_quantity"`
}
