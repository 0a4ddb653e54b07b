package domain

import "time"

// ShipmentStatus is the carrier-side state of a shipment.
type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "pending"
	ShipmentStatusShipped   ShipmentStatus = "shipped"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
)

// Valid reports whether s is a known shipment status.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentStatusPending, ShipmentStatusShipped, ShipmentStatusInTransit, ShipmentStatusDelivered:
		return true
	}
	return false
}

// TrackingEvent is one entry in a shipment's chronological history.
type TrackingEvent struct {
	Date     time.Time `json:"date"`
	Status   string    `json:"status"`
	Location string    `json:"location"`
}

// Shipment is the tracking record for a shipped order: current status
// plus the ordered event history reported by the carrier.
type Shipment struct {
	TrackingNumber  string          `json:"tracking_number"`
	Carrier         string          `json:"carrier"`
	Status          ShipmentStatus  `json:"status"`
	CurrentLocation string          `json:"current_location,omitempty"`
	Events          []TrackingEvent `json:"events"`
}

// ShipmentInfo is the per-order shipping record kept by the backend.
// It resolves an order to a tracking number; a freshly created order
// has no ShipmentInfo yet, and that absence is an expected state.
type ShipmentInfo struct {
	OrderID           string         `json:"order_id"`
	Carrier           string         `json:"carrier"`
	TrackingNumber    string         `json:"tracking_number"`
	Status            ShipmentStatus `json:"status"`
	EstimatedDelivery *time.Time     `json:"estimated_delivery,omitempty"`
	ShippedAt         *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty"`
}
