package models

import "time"

// Change-propagation table scopes.
const (
	ChangeTableOrder   = "order"
	ChangeTableClass   = "class"
	ChangeTableStudent = "student"
)

// ChangeEvent tells viewers of an order that rows changed. The payload is a
// refetch hint only; subscribers re-read the store rather than applying it.
type ChangeEvent struct {
	OrderID    string    `json:"order_id"`
	Table      string    `json:"table"`
	EntityID   string    `json:"entity_id,omitempty"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}
