package models

import "time"

// Movement types recorded for every stock change.
const (
	MovementTypeReservation = "reservation"
	MovementTypeRelease     = "release"
	MovementTypeAdjustment  = "adjustment"
)

// InventoryMovement represents a change in stock for a menu item
type InventoryMovement struct {
	ID              int64     `json:"id" db:"id"`
	MenuItemID      int64     `json:"menu_item_id" db:"menu_item_id"`
	OrderID         *int64    `json:"order_id,omitempty" db:"order_id"`
	MovementType    string    `json:"movement_type" db:"movement_type"`
	QuantityChanged int       `json:"quantity_changed" db:"quantity_changed"`
	Reason          *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// NewNullString is a helper for string pointers, returning nil if string is empty.
func NewNullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
