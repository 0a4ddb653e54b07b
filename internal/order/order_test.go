package order

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
	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/session"
)

var (
	testAddress = domain.Address{
		ContactName: "Ada Lovelace",
		Address:     "12 Analytical Way",
		City:        "London",
		Country:     "UK",
		ZipCode:     "N1 9GU",
	}
	testBuyer = domain.BuyerInfo{Name: "Ada", Surname: "Lovelace"}
	testCard  = Card{
		Number:      "4111 1111 1111 1111",
		HolderName:  "Ada Lovelace",
		ExpireMonth: "12",
		ExpireYear:  "2030",
		CVC:         "123",
	}
	declinedCard = Card{
		Number:      "4111 1111 1111 0002",
		HolderName:  "Ada Lovelace",
		ExpireMonth: "12",
		ExpireYear:  "2030",
		CVC:         "123",
	}
)

type orderEnv struct {
	backend  *apitest.Server
	sessions *session.Store
	carts    cart.Synchronizer
	orders   Service
}

func newOrderEnv(t *testing.T) *orderEnv {
	t.Helper()
	backend := apitest.NewServer(t)
	logger := zap.NewNop()
	client := api.New(backend.URL, 5*time.Second, logger)
	sessions := session.NewStore(filepath.Join(t.TempDir(), "session.json"), client, logger)
	client.AttachSession(sessions)
	return &orderEnv{
		backend:  backend,
		sessions: sessions,
		carts:    cart.NewSynchronizer(client, sessions, logger),
		orders:   NewService(client, sessions, logger),
	}
}

func (e *orderEnv) login(t *testing.T, admin bool) {
	t.Helper()
	email := "ada@example.com"
	if admin {
		email = "admin@example.com"
	}
	e.backend.SeedUser("Ada Lovelace", email, "secret123", admin)
	_, err := e.sessions.Login(context.Background(), email, "secret123")
	require.NoError(t, err)
}

func testItems() []domain.CartLine {
	return []domain.CartLine{
		{ProductID: "prod-1", Quantity: 2, Price: 12.50},
		{ProductID: "prod-2", Quantity: 1, Price: 8.00},
	}
}

func TestCreateOrder(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)

	order, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, 33.00, order.TotalAmount)
	assert.Empty(t, order.PaymentID, "an unpaid order carries no payment id")
}

func TestCreateOrderValidatesBeforeNetwork(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)
	before := env.backend.Requests()

	missingCity := testAddress
	missingCity.City = ""
	_, err := env.orders.Create(context.Background(), testItems(), missingCity, testAddress, testBuyer)
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))

	_, err = env.orders.Create(context.Background(), nil, testAddress, testAddress, testBuyer)
	require.Error(t, err)
	assert.True(t, api.IsValidation(err), "an order needs at least one item")

	assert.Equal(t, before, env.backend.Requests())
}

func TestProcessPaymentSuccess(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)

	order, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	require.NoError(t, err)

	result, err := env.orders.ProcessPayment(context.Background(), order.ID, testCard)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.PaymentID)

	paid, err := env.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, paid.Status)
	assert.Equal(t, result.PaymentID, paid.PaymentID)
}

func TestProcessPaymentDeclined(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)

	order, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	require.NoError(t, err)

	result, err := env.orders.ProcessPayment(context.Background(), order.ID, declinedCard)
	require.NoError(t, err, "a declined payment is a result, not an error")
	assert.False(t, result.Success)
	assert.Equal(t, "card_declined", result.ErrorCode)

	// The order survives the decline and stays payable.
	pending, err := env.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, pending.Status)

	retry, err := env.orders.ProcessPayment(context.Background(), order.ID, testCard)
	require.NoError(t, err)
	assert.True(t, retry.Success)
}

func TestProcessPaymentRejectsIncompleteCard(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)
	before := env.backend.Requests()

	noCVC := testCard
	noCVC.CVC = ""
	_, err := env.orders.ProcessPayment(context.Background(), "some-order", noCVC)
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))
	assert.Equal(t, before, env.backend.Requests())
}

func TestListOrdersNewestFirst(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)

	first, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	require.NoError(t, err)
	second, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	require.NoError(t, err)

	orders, err := env.orders.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestGetOrderNotFound(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)

	_, err := env.orders.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestOrdersRequireSession(t *testing.T) {
	env := newOrderEnv(t)
	before := env.backend.Requests()

	_, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	assert.True(t, api.IsAuth(err))
	_, err = env.orders.List(context.Background())
	assert.True(t, api.IsAuth(err))
	_, err = env.orders.ProcessPayment(context.Background(), "o", testCard)
	assert.True(t, api.IsAuth(err))

	assert.Equal(t, before, env.backend.Requests())
}

func TestUpdateStatusAsAdmin(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, true)

	order, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	require.NoError(t, err)

	require.NoError(t, env.orders.UpdateStatus(context.Background(), order.ID, domain.OrderStatusProcessing))

	status, ok := env.backend.OrderStatus(order.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusProcessing, status)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, true)
	before := env.backend.Requests()

	err := env.orders.UpdateStatus(context.Background(), "order", "teleported")
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))
	assert.Equal(t, before, env.backend.Requests(), "an unknown status must never be submitted")
}

func TestAdminOperationsForbiddenForRegularUser(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)
	before := env.backend.Requests()

	_, err := env.orders.ListAll(context.Background())
	assert.True(t, api.IsForbidden(err))
	err = env.orders.UpdateStatus(context.Background(), "order", domain.OrderStatusShipped)
	assert.True(t, api.IsForbidden(err))
	_, err = env.orders.ListAllReturns(context.Background())
	assert.True(t, api.IsForbidden(err))

	assert.Equal(t, before, env.backend.Requests(), "forbidden calls must fail before any request")
}

func TestReturnRequiresDeliveredOrder(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)

	order, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	require.NoError(t, err)

	items := []domain.ReturnItem{{ProductID: "prod-1", Quantity: 1}}
	_, err = env.orders.RequestReturn(context.Background(), order.ID, items, "damaged on arrival")
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))

	env.backend.SetOrderStatus(order.ID, domain.OrderStatusDelivered)

	ret, err := env.orders.RequestReturn(context.Background(), order.ID, items, "damaged on arrival")
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusPending, ret.Status)
	assert.Equal(t, order.ID, ret.OrderID)

	returns, err := env.orders.ListReturns(context.Background())
	require.NoError(t, err)
	require.Len(t, returns, 1)
	assert.Equal(t, ret.ID, returns[0].ID)
}

func TestReturnValidatesInput(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)
	before := env.backend.Requests()

	_, err := env.orders.RequestReturn(context.Background(), "order", nil, "reason")
	assert.True(t, api.IsValidation(err))
	_, err = env.orders.RequestReturn(context.Background(), "order", []domain.ReturnItem{{ProductID: "p", Quantity: 1}}, "")
	assert.True(t, api.IsValidation(err))
	_, err = env.orders.RequestReturn(context.Background(), "order", []domain.ReturnItem{{ProductID: "p", Quantity: 0}}, "reason")
	assert.True(t, api.IsValidation(err))

	assert.Equal(t, before, env.backend.Requests())
}

func TestUpdateReturnStatusAsAdmin(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, true)

	order, err := env.orders.Create(context.Background(), testItems(), testAddress, testAddress, testBuyer)
	require.NoError(t, err)
	env.backend.SetOrderStatus(order.ID, domain.OrderStatusDelivered)

	ret, err := env.orders.RequestReturn(context.Background(), order.ID,
		[]domain.ReturnItem{{ProductID: "prod-1", Quantity: 1}}, "wrong size")
	require.NoError(t, err)

	updated, err := env.orders.UpdateReturnStatus(context.Background(), ret.ID, domain.ReturnStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusApproved, updated.Status)

	all, err := env.orders.ListAllReturns(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.ReturnStatusApproved, all[0].Status)
}

// The full purchase flow as a user drives it: sign in, fill the cart,
// freeze it into an order, pay, and verify the cart was consumed.
func TestCheckoutFlow(t *testing.T) {
	env := newOrderEnv(t)
	env.login(t, false)
	beans := env.backend.SeedProduct(domain.Product{Name: "Espresso Beans", Price: 12.50, Category: "coffee", Stock: 40})
	tea := env.backend.SeedProduct(domain.Product{Name: "Green Tea", Price: 8.00, Category: "tea", Stock: 30})

	ctx := context.Background()

	_, err := env.carts.AddItem(ctx, beans.ID, 2, beans.Price)
	require.NoError(t, err)
	current, err := env.carts.AddItem(ctx, tea.ID, 1, tea.Price)
	require.NoError(t, err)
	require.Len(t, current.Items, 2)
	assert.Equal(t, 33.00, cart.Total(current))

	order, err := env.orders.Create(ctx, current.Items, testAddress, testAddress, testBuyer)
	require.NoError(t, err)
	assert.Equal(t, cart.Total(current), order.TotalAmount)

	result, err := env.orders.ProcessPayment(ctx, order.ID, testCard)
	require.NoError(t, err)
	require.True(t, result.Success)

	after, err := env.carts.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, after.Items, "a successful payment consumes the cart")

	orders, err := env.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusPaid, orders[0].Status)
}
