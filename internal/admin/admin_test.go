package admin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/api"
	"storefront/internal/apitest"
	"storefront/internal/catalog"
	"storefront/internal/session"
)

type adminEnv struct {
	backend  *apitest.Server
	sessions *session.Store
	manager  Manager
	catalog  catalog.Service
}

func newAdminEnv(t *testing.T) *adminEnv {
	t.Helper()
	backend := apitest.NewServer(t)
	logger := zap.NewNop()
	client := api.New(backend.URL, 5*time.Second, logger)
	sessions := session.NewStore(filepath.Join(t.TempDir(), "session.json"), client, logger)
	client.AttachSession(sessions)
	return &adminEnv{
		backend:  backend,
		sessions: sessions,
		manager:  NewManager(client, sessions, logger),
		catalog:  catalog.NewService(client, logger),
	}
}

func (e *adminEnv) login(t *testing.T, admin bool) {
	t.Helper()
	email := "ada@example.com"
	if admin {
		email = "admin@example.com"
	}
	e.backend.SeedUser("Ada Lovelace", email, "secret123", admin)
	_, err := e.sessions.Login(context.Background(), email, "secret123")
	require.NoError(t, err)
}

func validInput() ProductInput {
	return ProductInput{
		Name:        "Espresso Beans",
		Description: "Dark roast arabica",
		Price:       12.50,
		Category:    "coffee",
		Stock:       40,
	}
}

func TestCreateProduct(t *testing.T) {
	env := newAdminEnv(t)
	env.login(t, true)

	product, err := env.manager.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.Equal(t, "Espresso Beans", product.Name)

	// Visible through the public catalog immediately.
	fetched, err := env.catalog.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Name, fetched.Name)
}

func TestUpdateProduct(t *testing.T) {
	env := newAdminEnv(t)
	env.login(t, true)

	product, err := env.manager.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)

	update := validInput()
	update.Price = 14.00
	update.Stock = 35
	require.NoError(t, env.manager.UpdateProduct(context.Background(), product.ID, update))

	fetched, err := env.catalog.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 14.00, fetched.Price)
	assert.Equal(t, 35, fetched.Stock)
}

func TestUpdateProductNotFound(t *testing.T) {
	env := newAdminEnv(t)
	env.login(t, true)

	err := env.manager.UpdateProduct(context.Background(), "missing", validInput())
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestDeleteProduct(t *testing.T) {
	env := newAdminEnv(t)
	env.login(t, true)

	product, err := env.manager.CreateProduct(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, env.manager.DeleteProduct(context.Background(), product.ID))

	_, err = env.catalog.GetProduct(context.Background(), product.ID)
	assert.True(t, api.IsNotFound(err))

	err = env.manager.DeleteProduct(context.Background(), product.ID)
	assert.True(t, api.IsNotFound(err))
}

func TestCreateProductRejectsNegativePrice(t *testing.T) {
	env := newAdminEnv(t)
	env.login(t, true)
	before := env.backend.Requests()

	input := validInput()
	input.Price = -1
	_, err := env.manager.CreateProduct(context.Background(), input)
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))

	input = validInput()
	input.Stock = -5
	_, err = env.manager.CreateProduct(context.Background(), input)
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))

	assert.Equal(t, before, env.backend.Requests(), "invalid input must be rejected without any request")
}

func TestManagerRequiresAdmin(t *testing.T) {
	env := newAdminEnv(t)
	env.login(t, false)
	before := env.backend.Requests()

	_, err := env.manager.CreateProduct(context.Background(), validInput())
	assert.True(t, api.IsForbidden(err))
	err = env.manager.UpdateProduct(context.Background(), "p", validInput())
	assert.True(t, api.IsForbidden(err))
	err = env.manager.DeleteProduct(context.Background(), "p")
	assert.True(t, api.IsForbidden(err))

	assert.Equal(t, before, env.backend.Requests())
}

func TestManagerRequiresSession(t *testing.T) {
	env := newAdminEnv(t)

	_, err := env.manager.CreateProduct(context.Background(), validInput())
	assert.True(t, api.IsAuth(err))
}
