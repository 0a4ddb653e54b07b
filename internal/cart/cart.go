package cart

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"storefront/internal/api"
	"storefront/internal/domain"
	"storefront/internal/session"
	"storefront/internal/validate"
)

// Synchronizer keeps the client aligned with the server-owned cart.
// Every mutation round-trips and returns the server's post-mutation
// cart; no locally modified copy is ever treated as committed.
type Synchronizer interface {
	Get(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, productID string, quantity int, price float64) (*domain.Cart, error)
	SetQuantity(ctx context.Context, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, productID string) (*domain.Cart, error)
	Clear(ctx context.Context) error
}

type synchronizer struct {
	client   *api.Client
	sessions *session.Store
	logger   *zap.Logger
}

// NewSynchronizer creates a new instance of Synchronizer.
func NewSynchronizer(client *api.Client, sessions *session.Store, logger *zap.Logger) Synchronizer {
	return &synchronizer{client: client, sessions: sessions, logger: logger}
}

type addItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// Get fetches the current session's cart.
func (s *synchronizer) Get(ctx context.Context) (*domain.Cart, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	var cart domain.Cart
	if err := s.client.GetAuth(ctx, "/cart", nil, &cart); err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	return &cart, nil
}

// AddItem upserts a line. Whether an existing line is merged or
// replaced is the server's decision; the returned cart is re-fetched
// after the call rather than assembled from an assumed outcome.
func (s *synchronizer) AddItem(ctx context.Context, productID string, quantity int, price float64) (*domain.Cart, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}

	req := addItemRequest{ProductID: productID, Quantity: quantity, Price: price}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	if err := s.client.PostAuth(ctx, "/cart", req, nil); err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}
	s.logger.Debug("Added cart item", zap.String("product_id", productID), zap.Int("quantity", quantity))

	return s.Get(ctx)
}

// SetQuantity sets a line's quantity. Quantity 0 removes the line;
// negative quantities are rejected before any request is made.
func (s *synchronizer) SetQuantity(ctx context.Context, productID string, quantity int) (*domain.Cart, error) {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, &api.ValidationError{Message: "product id is required"}
	}
	if quantity < 0 {
		return nil, &api.ValidationError{Message: "quantity must not be negative"}
	}

	query := url.Values{"quantity": []string{strconv.Itoa(quantity)}}
	if err := s.client.PutAuth(ctx, "/cart/"+url.PathEscape(productID), query, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	s.logger.Debug("Updated cart item", zap.String("product_id", productID), zap.Int("quantity", quantity))

	return s.Get(ctx)
}

// RemoveItem removes a line. Equivalent to SetQuantity 0.
func (s *synchronizer) RemoveItem(ctx context.Context, productID string) (*domain.Cart, error) {
	return s.SetQuantity(ctx, productID, 0)
}

// Clear empties the cart.
func (s *synchronizer) Clear(ctx context.Context) error {
	if err := s.sessions.Require(session.CapabilityAuthenticated); err != nil {
		return err
	}
	if err := s.client.DeleteAuth(ctx, "/cart", nil); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Total is the exact sum of price x quantity over the cart's lines.
// Pure function; an empty or nil cart totals 0.
func Total(cart *domain.Cart) float64 {
	if cart == nil {
		return 0
	}
	var total float64
	for _, line := range cart.Items {
		total += line.Price * float64(line.Quantity)
	}
	return total
}
