package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// StatusNew is the status every order starts with.
const StatusNew = "New"

// PriceScale is the number of fractional digits the price column keeps.
const PriceScale = 2

// Order represents one customer purchase transaction.
//
// Fields are plain values with no validation: any quantity, price or status
// string is accepted. Status is free-form text, not an enumeration.
type Order struct {
	bun.BaseModel `bun:"table:orders" json:"-"`

	ID           int64           `bun:",pk,autoincrement" json:"id"`
	CustomerName string          `bun:"customer_name,notnull" json:"customer_name"`
	ProductName  string          `bun:"product_name,notnull" json:"product_name"`
	Quantity     int             `bun:"quantity,notnull" json:"quantity"`
	Price        decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price"`
	OrderDate    time.Time       `bun:"order_date,notnull" json:"order_date"`
	Status       string          `bun:"status,notnull" json:"status"`
}

// NewOrder returns an order with default values and OrderDate set to now (UTC).
func NewOrder() *Order {
	return NewOrderAt(time.Now())
}

// NewOrderAt returns an order with default values and OrderDate set to t in UTC.
func NewOrderAt(t time.Time) *Order {
	return &Order{
		Price:     decimal.Zero,
		OrderDate: t.UTC(),
		Status:    StatusNew,
	}
}
