package order

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

// Card carries the details for one payment attempt. Card data is sent
// to the payment endpoint and never persisted client-side.
type Card struct {
	Number      string `json:"card_number" validate:"required"`
	HolderName  string `json:"card_holder_name" validate:"required"`
	ExpireMonth string `json:"expire_month" validate:"required"`
	ExpireYear  string `json:"expire_year" validate:"required"`
	CVC         string `json:"cvc" validate:"required"`
}

// Service drives the order lifecycle. Orders are created in pending;
// payment is a separate second phase, so a pending order with no
// payment is a legitimate, recoverable state. Status transitions are
// owned by the backend; the admin operations only request them.
type Service interface {
	Create(ctx context.Context, items []domain.CartLine, shipping, billing domain.Address, buyer domain.BuyerInfo) (*domain.Order, error)
	ProcessPayment(ctx context.Context, orderID string, card Card) (*domain.PaymentResult, error)
	List(ctx context.Context) ([]domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)

	RequestReturn(ctx context.Context, orderID string, items []domain.ReturnItem, reason string) (*domain.Return, error)
	ListReturns(ctx context.Context) ([]domain.Return, error)

	// Admin capability.
	ListAll(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	ListAllReturns(ctx context.Context) ([]domain.Return, error)
	UpdateReturnStatus(ctx context.Context, returnID, status string) (*domain.Return, error)
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

type createOrderRequest struct {
	Items           []domain.CartLine `json:"items" validate:"required,min=1"`
	ShippingAddress domain.Address    `json:"shipping_address"`
	BillingAddress  domain.Address    `json:"billing_address"`
	BuyerInfo       domain.BuyerInfo  `json:"buyer_info"`
}

type paymentRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Card
}

type returnRequest struct {
	OrderID string              `json:"order_id" validate:"required"`
	Items   []domain.ReturnItem `json:"items" validate:"required,min=1,dive"`
	Reason  string              `json:"reason" validate:"required"`
}

// Create freezes the given items into a new pending order. Required
// address and buyer fields are checked before the request is made.
func (s *service) Create(ctx context.Context, items []domain.CartLine, shipping, billing domain.Address, buyer domain.BuyerInfo) (*domain.Order, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	req := createOrderRequest{
		Items:           items,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		BuyerInfo:       buyer,
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var order domain.Order
	if err := s.client.PostAuth(ctx, "/orders", req, &order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Float64("total", order.TotalAmount),
	)
	return &order, nil
}

// ProcessPayment attempts to pay an existing order. Only call after
// Create has resolved; the two phases are never overlapped. A declined
// payment is reported through PaymentResult.Success, not as an error.
func (s *service) ProcessPayment(ctx context.Context, orderID string, card Card) (*domain.PaymentResult, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	req := paymentRequest{OrderID: orderID, Card: card}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var result domain.PaymentResult
	if err := s.client.PostAuth(ctx, "/payment/process", req, &result); err != nil {
		return nil, fmt.Errorf("failed to process payment: %w", err)
	}

	if result.Success {
		s.logger.Info("Payment accepted", zap.String("order_id", orderID), zap.String("payment_id", result.PaymentID))
	} else {
		s.logger.Warn("Payment declined",
			zap.String("order_id", orderID),
			zap.String("error_code", result.ErrorCode),
		)
	}
	return &result, nil
}

// List fetches the current user's orders, newest first.
func (s *service) List(ctx context.Context) ([]domain.Order, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	var orders []domain.Order
	if err := s.client.GetAuth(ctx, "/orders", nil, &orders); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Get fetches one of the current user's orders by id.
func (s *service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	var order domain.Order
	if err := s.client.GetAuth(ctx, "/orders/"+url.PathEscape(id), nil, &order); err != nil {
		if api.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &order, nil
}

// RequestReturn files a return request for a delivered order. The
// delivery requirement is enforced server-side and surfaces as a
// ValidationError.
func (s *service) RequestReturn(ctx context.Context, orderID string, items []domain.ReturnItem, reason string) (*domain.Return, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	req := returnRequest{OrderID: orderID, Items: items, Reason: reason}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var ret domain.Return
	if err := s.client.PostAuth(ctx, "/returns", req, &ret); err != nil {
		return nil, fmt.Errorf("failed to request return: %w", err)
	}
	s.logger.Info("Return requested", zap.String("order_id", orderID), zap.String("return_id", ret.ID))
	return &ret, nil
}

// ListReturns fetches the current user's return requests.
func (s *service) ListReturns(ctx context.Context) ([]domain.Return, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	var returns []domain.Return
	if err := s.client.GetAuth(ctx, "/returns", nil, &returns); err != nil {
		return nil, fmt.Errorf("failed to list returns: %w", err)
	}
	return returns, nil
}

// ListAll fetches every order across users. Admin only.
func (s *service) ListAll(ctx context.Context) ([]domain.Order, error) {
	if err := s.sessions.Require(session.CapabilityAdmin); err != nil {
		return nil, err
	}

	var orders []domain.Order
	if err := s.client.GetAuth(ctx, "/admin/orders", nil, &orders); err != nil {
		return nil, fmt.Errorf("failed to list all orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus requests a status change for an order. Admin only. The
// status is checked for membership in the known set before submission;
// whether the transition itself is legal stays the backend's call.
func (s *service) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if err := s.sessions.Require(session.CapabilityAdmin); err != nil {
		return err
	}
	if !status.Valid() {
		return &api.ValidationError{Message: fmt.Sprintf("unknown order status %q", status)}
	}

	query := url.Values{"status": []string{string(status)}}
	if err := s.client.PutAuth(ctx, "/admin/orders/"+url.PathEscape(orderID), query, nil, nil); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	s.logger.Info("Order status updated", zap.String("order_id", orderID), zap.String("status", string(status)))
	return nil
}

// ListAllReturns fetches every return request. Admin only.
func (s *service) ListAllReturns(ctx context.Context) ([]domain.Return, error) {
	if err := s.sessions.Require(session.CapabilityAdmin); err != nil {
		return nil, err
	}

	var returns []domain.Return
	if err := s.client.GetAuth(ctx, "/admin/returns", nil, &returns); err != nil {
		return nil, fmt.Errorf("failed to list all returns: %w", err)
	}
	return returns, nil
}

// UpdateReturnStatus moves a return request to a new status. Admin only.
func (s *service) UpdateReturnStatus(ctx context.Context, returnID, status string) (*domain.Return, error) {
	if err := s.sessions.Require(session.CapabilityAdmin); err != nil {
		return nil, err
	}

	query := url.Values{"status": []string{status}}
	var ret domain.Return
	if err := s.client.PutAuth(ctx, "/admin/returns/"+url.PathEscape(returnID), query, nil, &ret); err != nil {
		return nil, fmt.Errorf("failed to update return status: %w", err)
	}
	return &ret, nil
}
