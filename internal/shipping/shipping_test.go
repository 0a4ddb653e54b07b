package shipping

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
	"storefront/internal/domain"
	"storefront/internal/order"
	"storefront/internal/session"
)

type shippingEnv struct {
	backend  *apitest.Server
	sessions *session.Store
	orders   order.Service
	shipping Service
}

func newShippingEnv(t *testing.T) *shippingEnv {
	t.Helper()
	backend := apitest.NewServer(t)
	logger := zap.NewNop()
	client := api.New(backend.URL, 5*time.Second, logger)
	sessions := session.NewStore(filepath.Join(t.TempDir(), "session.json"), client, logger)
	client.AttachSession(sessions)
	return &shippingEnv{
		backend:  backend,
		sessions: sessions,
		orders:   order.NewService(client, sessions, logger),
		shipping: NewService(client, sessions, logger),
	}
}

func (e *shippingEnv) loginAdmin(t *testing.T) {
	t.Helper()
	e.backend.SeedUser("Grace Hopper", "admin@example.com", "secret123", true)
	_, err := e.sessions.Login(context.Background(), "admin@example.com", "secret123")
	require.NoError(t, err)
}

func (e *shippingEnv) createOrder(t *testing.T) *domain.Order {
	t.Helper()
	address := domain.Address{
		ContactName: "Grace Hopper",
		Address:     "3 Compiler Court",
		City:        "Arlington",
		Country:     "US",
		ZipCode:     "22201",
	}
	o, err := e.orders.Create(context.Background(),
		[]domain.CartLine{{ProductID: "prod-1", Quantity: 1, Price: 20}},
		address, address, domain.BuyerInfo{Name: "Grace", Surname: "Hopper"})
	require.NoError(t, err)
	return o
}

func TestTrackByOrderBeforeShipment(t *testing.T) {
	env := newShippingEnv(t)
	env.loginAdmin(t)
	o := env.createOrder(t)

	_, err := env.shipping.TrackByOrder(context.Background(), o.ID)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err), "no shipment yet must surface as not found, not a failure")
}

func TestCreateShipmentAndTrack(t *testing.T) {
	env := newShippingEnv(t)
	env.loginAdmin(t)
	o := env.createOrder(t)

	info, err := env.shipping.CreateShipment(context.Background(), o.ID, "DHL", "TRK-100200")
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentStatusShipped, info.Status)
	assert.NotNil(t, info.ShippedAt)

	status, ok := env.backend.OrderStatus(o.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusShipped, status, "creating a shipment moves the order to shipped")

	shipment, err := env.shipping.TrackByOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRK-100200", shipment.TrackingNumber)
	assert.Equal(t, "DHL", shipment.Carrier)
	require.NotEmpty(t, shipment.Events)
	assert.Equal(t, "Shipped", shipment.Events[0].Status)
}

func TestTrackByNumberIsPublic(t *testing.T) {
	env := newShippingEnv(t)
	env.loginAdmin(t)
	o := env.createOrder(t)
	_, err := env.shipping.CreateShipment(context.Background(), o.ID, "DHL", "TRK-100200")
	require.NoError(t, err)

	// Tracking needs no session at all.
	require.NoError(t, env.sessions.Logout())

	shipment, err := env.shipping.TrackByNumber(context.Background(), "TRK-100200")
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentStatusShipped, shipment.Status)
}

func TestTrackByNumberUnknown(t *testing.T) {
	env := newShippingEnv(t)

	_, err := env.shipping.TrackByNumber(context.Background(), "TRK-NOPE")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestTrackByNumberEmptyRejected(t *testing.T) {
	env := newShippingEnv(t)
	before := env.backend.Requests()

	_, err := env.shipping.TrackByNumber(context.Background(), "")
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))
	assert.Equal(t, before, env.backend.Requests())
}

func TestDeliveryCascadesToOrder(t *testing.T) {
	env := newShippingEnv(t)
	env.loginAdmin(t)
	o := env.createOrder(t)
	_, err := env.shipping.CreateShipment(context.Background(), o.ID, "DHL", "TRK-100200")
	require.NoError(t, err)

	info, err := env.shipping.UpdateStatus(context.Background(), o.ID, domain.ShipmentStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentStatusDelivered, info.Status)
	assert.NotNil(t, info.DeliveredAt)

	status, ok := env.backend.OrderStatus(o.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusDelivered, status)

	shipment, err := env.shipping.TrackByNumber(context.Background(), "TRK-100200")
	require.NoError(t, err)
	require.Len(t, shipment.Events, 2)
	assert.Equal(t, "Delivered", shipment.Events[1].Status)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	env := newShippingEnv(t)
	env.loginAdmin(t)
	before := env.backend.Requests()

	_, err := env.shipping.UpdateStatus(context.Background(), "order", "vanished")
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))
	assert.Equal(t, before, env.backend.Requests())
}

func TestAdminShippingOperationsRequireAdmin(t *testing.T) {
	env := newShippingEnv(t)
	env.backend.SeedUser("Ada Lovelace", "ada@example.com", "secret123", false)
	_, err := env.sessions.Login(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	before := env.backend.Requests()

	_, err = env.shipping.CreateShipment(context.Background(), "order", "DHL", "TRK-1")
	assert.True(t, api.IsForbidden(err))
	_, err = env.shipping.UpdateStatus(context.Background(), "order", domain.ShipmentStatusInTransit)
	assert.True(t, api.IsForbidden(err))

	assert.Equal(t, before, env.backend.Requests())
}

func TestCreateShipmentValidatesInput(t *testing.T) {
	env := newShippingEnv(t)
	env.loginAdmin(t)
	before := env.backend.Requests()

	_, err := env.shipping.CreateShipment(context.Background(), "order", "", "TRK-1")
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))
	assert.Equal(t, before, env.backend.Requests())
}
