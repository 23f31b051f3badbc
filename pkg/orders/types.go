package orders

import "time"

// OrderStatus represents the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// Valid reports whether the status is one of the enumerated states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Order is a customer order scoped to an operation. Amounts are stored
// in minor units to avoid float arithmetic on money.
type Order struct {
	ID            int64       `json:"id"`
	OperationID   int64       `json:"operation_id"`
	Reference     string      `json:"reference"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Status        OrderStatus `json:"status"`
	TotalCents    int64       `json:"total_cents"`
	Currency      string      `json:"currency"`
	Notes         string      `json:"notes,omitempty"`
	CreatedBy     *int64      `json:"created_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TicketStatus represents the state of a support ticket.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket is a support ticket attached to an order.
type Ticket struct {
	ID          int64        `json:"id"`
	OrderID     int64        `json:"order_id"`
	OperationID int64        `json:"operation_id"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body,omitempty"`
	Status      TicketStatus `json:"status"`
	CreatedBy   *int64       `json:"created_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CreateOrderRequest is the payload for creating an order.
type CreateOrderRequest struct {
	Reference     string `json:"reference"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email,omitempty"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
	Notes         string `json:"notes,omitempty"`
}

// UpdateOrderRequest is the payload for updating an order. Nil fields
// are left unchanged.
type UpdateOrderRequest struct {
	CustomerName  *string      `json:"customer_name,omitempty"`
	CustomerEmail *string      `json:"customer_email,omitempty"`
	Status        *OrderStatus `json:"status,omitempty"`
	TotalCents    *int64       `json:"total_cents,omitempty"`
	Notes         *string      `json:"notes,omitempty"`
}

// ListOrdersFilter narrows ListOrders results.
type ListOrdersFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}

// CreateTicketRequest is the payload for opening a support ticket.
type CreateTicketRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}
