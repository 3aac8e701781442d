package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/orderservice/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID           int64     `json:"id"`
	CustomerName string    `json:"customer_name"`
	ProductName  string    `json:"product_name"`
	Quantity     int       `json:"quantity"`
	Price        string    `json:"price"`
	OrderDate    time.Time `json:"order_date"`
	Status       string    `json:"status"`
}

// OrderRequest is the create/replace payload. Price accepts a JSON number or
// string; OrderDate and Status fall back to creation time and "New".
type OrderRequest struct {
	CustomerName string          `json:"customer_name"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	OrderDate    *time.Time      `json:"order_date,omitempty"`
	Status       string          `json:"status"`
}

// StatusRequest changes only the order status.
type StatusRequest struct {
	Status string `json:"status"`
}

// ToEntity maps the payload onto a new order record.
func (r OrderRequest) ToEntity() *entity.Order {
	order := &entity.Order{
		CustomerName: r.CustomerName,
		ProductName:  r.ProductName,
		Quantity:     r.Quantity,
		Price:        r.Price,
		Status:       r.Status,
	}
	if r.OrderDate != nil {
		order.OrderDate = r.OrderDate.UTC()
	}
	return order
}

// FromOrder renders an order for transport. Price keeps two decimal places.
func FromOrder(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:           order.ID,
		CustomerName: order.CustomerName,
		ProductName:  order.ProductName,
		Quantity:     order.Quantity,
		Price:        order.Price.StringFixed(2),
		OrderDate:    order.OrderDate,
		Status:       order.Status,
	}
}

// FromOrders renders a slice of orders.
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromOrder(&orders[i]))
	}
	return out
}
