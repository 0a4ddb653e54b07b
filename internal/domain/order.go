package domain

import "time"

// OrderStatus is the backend-owned order state. The client never
// computes transitions; it only requests them (admin) or observes them.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status the backend can report.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a member of the known status set.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Shippable reports whether tracking data may exist for this status.
func (s OrderStatus) Shippable() bool {
	return s == OrderStatusShipped || s == OrderStatusDelivered
}

// Address is a shipping or billing address attached to an order.
type Address struct {
	ContactName string `json:"contact_name" validate:"required"`
	Address     string `json:"address" validate:"required"`
	City        string `json:"city" validate:"required"`
	Country     string `json:"country" validate:"required"`
	ZipCode     string `json:"zip_code" validate:"required"`
}

// BuyerInfo identifies the purchaser for payment processing.
type BuyerInfo struct {
	Name           string `json:"name" validate:"required"`
	Surname        string `json:"surname" validate:"required"`
	IdentityNumber string `json:"identity_number,omitempty"`
}

// Order is a purchase frozen at creation time. Items and TotalAmount
// are immutable once the order exists; only Status and PaymentID change
// afterwards, and only on the backend.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id,omitempty"`
	Items           []CartLine  `json:"items"`
	TotalAmount     float64     `json:"total_amount"`
	Status          OrderStatus `json:"status"`
	PaymentID       string      `json:"payment_id,omitempty"`
	ShippingAddress Address     `json:"shipping_address"`
	BillingAddress  Address     `json:"billing_address"`
	BuyerInfo       BuyerInfo   `json:"buyer_info"`
	CreatedAt       time.Time   `json:"created_at"`
}

// PaymentResult is the outcome of a payment attempt. Success false is a
// recoverable, visible state: the order stays pending and the user may
// retry with different card details.
type PaymentResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"payment_id,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// ReturnItem names a line of an order included in a return request.
type ReturnItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// Return is a return/refund request for a delivered order.
type Return struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"order_id"`
	UserID      string       `json:"user_id,omitempty"`
	Items       []ReturnItem `json:"items"`
	Reason      string       `json:"reason"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

// Return request statuses.
const (
	ReturnStatusPending   = "pending"
	ReturnStatusApproved  = "approved"
	ReturnStatusRejected  = "rejected"
	ReturnStatusProcessed = "processed"
)
