package shipping

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"storefront/internal/api"
	"storefront/internal/domain"
	"storefront/internal/session"
	"storefront/internal/validate"
)

// Service resolves orders to tracking records. Absence of tracking for
// an order is an expected state, not a failure: a freshly created order
// has no shipment yet, and callers should render "tracking not yet
// available" when TrackByOrder reports NotFound.
type Service interface {
	TrackByOrder(ctx context.Context, orderID string) (*domain.Shipment, error)
	TrackByNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error)

	// Admin capability.
	CreateShipment(ctx context.Context, orderID, carrier, trackingNumber string) (*domain.ShipmentInfo, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.ShipmentStatus) (*domain.ShipmentInfo, error)
}

type service struct {
	client   *api.Client
	sessions *session.Store
	logger   *zap.Logger
}

// NewService creates a new instance of Service.
func NewService(client *api.Client, sessions *session.Store, logger *zap.Logger) Service {
	return &service{client: client, sessions: sessions, logger: logger}
}

type createShipmentRequest struct {
	OrderID        string `json:"order_id" validate:"required"`
	Carrier        string `json:"carrier" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

// TrackByOrder resolves an order to its tracking record and event
// history: first the per-order shipping record, then the carrier-side
// tracking entry it points at.
func (s *service) TrackByOrder(ctx context.Context, orderID string) (*domain.Shipment, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	var info domain.ShipmentInfo
	if err := s.client.GetAuth(ctx, "/shipping/"+url.PathEscape(orderID), nil, &info); err != nil {
		if api.IsNotFound(err) {
			// No shipment yet. Expected for orders that have not shipped.
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve shipment for order %s: %w", orderID, err)
	}

	return s.TrackByNumber(ctx, info.TrackingNumber)
}

// TrackByNumber fetches the tracking record for a tracking number.
// Public: no session required.
func (s *service) TrackByNumber(ctx context.Context, trackingNumber string) (*domain.Shipment, error) {
	if trackingNumber == "" {
		return nil, &api.ValidationError{Message: "tracking number is required"}
	}

	var shipment domain.Shipment
	if err := s.client.Get(ctx, "/tracking/"+url.PathEscape(trackingNumber), nil, &shipment); err != nil {
		if api.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to track shipment %s: %w", trackingNumber, err)
	}
	return &shipment, nil
}

// CreateShipment registers shipping info for an order and moves the
// order to shipped. Admin only.
func (s *service) CreateShipment(ctx context.Context, orderID, carrier, trackingNumber string) (*domain.ShipmentInfo, error) {
	if err := s.sessions.Require(session.CapabilityAdmin); err != nil {
		return nil, err
	}

	req := createShipmentRequest{OrderID: orderID, Carrier: carrier, TrackingNumber: trackingNumber}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var info domain.ShipmentInfo
	if err := s.client.PostAuth(ctx, "/shipping", req, &info); err != nil {
		return nil, fmt.Errorf("failed to create shipment: %w", err)
	}
	s.logger.Info("Shipment created",
		zap.String("order_id", orderID),
		zap.String("tracking_number", trackingNumber),
	)
	return &info, nil
}

// UpdateStatus moves a shipment to a new status. Admin only. Marking a
// shipment delivered cascades to the order server-side.
func (s *service) UpdateStatus(ctx context.Context, orderID string, status domain.ShipmentStatus) (*domain.ShipmentInfo, error) {
	if err := s.sessions.Require(session.CapabilityAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, &api.ValidationError{Message: fmt.Sprintf("unknown shipment status %q", status)}
	}

	query := url.Values{"status": []string{string(status)}}
	var info domain.ShipmentInfo
	if err := s.client.PutAuth(ctx, "/shipping/"+url.PathEscape(orderID), query, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to update shipment status: %w", err)
	}
	return &info, nil
}
