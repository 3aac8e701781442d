package order

import (
	"time"

	"github.com/Additional-Code/orderservice/internal/entity"
)

// Event types published on every order mutation.
const (
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// Event is the JSON envelope published to the message bus. Deleted events
// carry only the order ID.
type Event struct {
	Type       string       `json:"type"`
	Order      entity.Order `json:"order"`
	OccurredAt time.Time    `json:"occurred_at"`
}
