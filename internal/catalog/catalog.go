package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"storefront/internal/api"
	"storefront/internal/domain"
)

// Filter restricts a product listing. All options are optional and
// independently composable; the zero value returns the full catalog.
type Filter struct {
	// Category restricts to an exact category match.
	Category string
	// Search matches product names and descriptions server-side.
	Search string
	// MinPrice and MaxPrice are inclusive bounds.
	MinPrice *float64
	MaxPrice *float64
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.MinPrice != nil {
		q.Set("min_price", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("max_price", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	return q
}

// Service defines the interface for unauthenticated catalog reads.
// Every call is a fresh fetch, never a cursor over cached results.
type Service interface {
	ListProducts(ctx context.Context, filter Filter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

type service struct {
	client *api.Client
	logger *zap.Logger
}

// NewService creates a new instance of Service.
func NewService(client *api.Client, logger *zap.Logger) Service {
	return &service{client: client, logger: logger}
}

// ListProducts fetches the catalog restricted by filter.
func (s *service) ListProducts(ctx context.Context, filter Filter) ([]domain.Product, error) {
	var products []domain.Product
	if err := s.client.Get(ctx, "/products", filter.query(), &products); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	s.logger.Debug("Listed products", zap.Int("count", len(products)))
	return products, nil
}

// GetProduct fetches a single product by id.
func (s *service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if err := s.client.Get(ctx, "/products/"+url.PathEscape(id), nil, &product); err != nil {
		if api.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &product, nil
}

// ListCategories fetches the set of category labels in the catalog.
func (s *service) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := s.client.Get(ctx, "/categories", nil, &categories); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
