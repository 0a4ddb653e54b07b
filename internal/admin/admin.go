package admin

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

// ProductInput is the payload for product creation and update. Numeric
// fields are validated non-negative before submission.
type ProductInput struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Category    string  `json:"category" validate:"required"`
	ImageURL    string  `json:"image_url"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

// Manager performs privileged catalog CRUD. Every operation requires
// the admin capability and fails with a ForbiddenError without it.
type Manager interface {
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, input ProductInput) error
	DeleteProduct(ctx context.Context, id string) error
}

type manager struct {
	client   *api.Client
	sessions *session.Store
	logger   *zap.Logger
}

// NewManager creates a new instance of Manager.
func NewManager(client *api.Client, sessions *session.Store, logger *zap.Logger) Manager {
	return &manager{client: client, sessions: sessions, logger: logger}
}

// CreateProduct adds a product to the catalog.
func (m *manager) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := m.sessions.Require(session.CapabilityAdmin); err != nil {
		return nil, err
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	var product domain.Product
	if err := m.client.PostAuth(ctx, "/products", input, &product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	m.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return &product, nil
}

// UpdateProduct replaces a product's fields.
func (m *manager) UpdateProduct(ctx context.Context, id string, input ProductInput) error {
	if err := m.sessions.Require(session.CapabilityAdmin); err != nil {
		return err
	}
	if err := validate.Struct(input); err != nil {
		return err
	}

	if err := m.client.PutAuth(ctx, "/products/"+url.PathEscape(id), nil, input, nil); err != nil {
		return fmt.Errorf("failed to update product %s: %w", id, err)
	}
	m.logger.Info("Product updated", zap.String("product_id", id))
	return nil
}

// DeleteProduct removes a product from the catalog.
func (m *manager) DeleteProduct(ctx context.Context, id string) error {
	if err := m.sessions.Require(session.CapabilityAdmin); err != nil {
		return err
	}

	if err := m.client.DeleteAuth(ctx, "/products/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	m.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}
