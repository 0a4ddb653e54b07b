// Package apitest provides an in-memory commerce backend for tests. It
// speaks the same REST contract as the production backend: bearer-token
// auth, the /api prefix, and {"detail": ...} error envelopes.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"storefront/internal/domain"
)

// declinedCardSuffix makes payment outcomes controllable from tests:
// any card number ending in it is declined.
const declinedCardSuffix = "0002"

type backendUser struct {
	domain.User
	password string
}

// Server is a fake commerce backend bound to an httptest listener.
type Server struct {
	*httptest.Server
	secret []byte

	mu       sync.Mutex
	users    map[string]*backendUser // by user id
	products []*domain.Product
	carts    map[string]*domain.Cart // by user id
	orders   []*domain.Order
	shipping map[string]*domain.ShipmentInfo // by order id
	returns  []*domain.Return
	requests int
}

// NewServer starts a fake backend and registers its shutdown with t.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		secret:   []byte("apitest-secret"),
		users:    make(map[string]*backendUser),
		carts:    make(map[string]*domain.Cart),
		shipping: make(map[string]*domain.ShipmentInfo),
	}

	r := chi.NewRouter()
	r.Use(s.countRequests)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/me", s.handleMe)

		r.Get("/products", s.handleListProducts)
		r.Get("/products/{id}", s.handleGetProduct)
		r.Post("/products", s.handleCreateProduct)
		r.Put("/products/{id}", s.handleUpdateProduct)
		r.Delete("/products/{id}", s.handleDeleteProduct)
		r.Get("/categories", s.handleCategories)

		r.Get("/cart", s.handleGetCart)
		r.Post("/cart", s.handleAddToCart)
		r.Put("/cart/{productID}", s.handleUpdateCartItem)
		r.Delete("/cart", s.handleClearCart)

		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders", s.handleListOrders)
		r.Get("/orders/{id}", s.handleGetOrder)
		r.Get("/admin/orders", s.handleListAllOrders)
		r.Put("/admin/orders/{id}", s.handleUpdateOrderStatus)

		r.Post("/payment/process", s.handlePayment)

		r.Post("/shipping", s.handleCreateShipping)
		r.Get("/shipping/{orderID}", s.handleGetShipping)
		r.Put("/shipping/{orderID}", s.handleUpdateShipping)
		r.Get("/tracking/{trackingNumber}", s.handleTracking)

		r.Post("/returns", s.handleCreateReturn)
		r.Get("/returns", s.handleListReturns)
		r.Get("/admin/returns", s.handleListAllReturns)
		r.Put("/admin/returns/{id}", s.handleUpdateReturn)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Requests returns how many HTTP requests the backend has received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// SeedUser registers a user directly and returns the profile.
func (s *Server) SeedUser(name, email, password string, admin bool) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &backendUser{
		User:     domain.User{ID: uuid.NewString(), Name: name, Email: email, IsAdmin: admin},
		password: password,
	}
	s.users[u.ID] = u
	return u.User
}

// SeedProduct inserts a product, assigning an id if absent.
func (s *Server) SeedProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	stored := p
	s.products = append(s.products, &stored)
	return p
}

// SetOrderStatus forces an order's status, standing in for backend-side
// transitions the client only observes.
func (s *Server) SetOrderStatus(orderID string, status domain.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == orderID {
			o.Status = status
		}
	}
}

// OrderStatus reports an order's current backend-side status.
func (s *Server) OrderStatus(orderID string) (domain.OrderStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == orderID {
			return o.Status, true
		}
	}
	return "", false
}

// TokenFor issues a token the backend will accept for the given user.
// ttl <= 0 produces an already-expired token.
func (s *Server) TokenFor(userID string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return token
}

func (s *Server) issueToken(userID string) string {
	return s.TokenFor(userID, 7*24*time.Hour)
}

func (s *Server) authenticate(r *http.Request) (*backendUser, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}
	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	sub, _ := claims["sub"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[sub]
	return u, ok
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (*backendUser, bool) {
	u, ok := s.authenticate(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid authentication credentials")
		return nil, false
	}
	return u, true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (*backendUser, bool) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return nil, false
	}
	if !u.IsAdmin {
		writeDetail(w, http.StatusForbidden, "Admin access required")
		return nil, false
	}
	return u, true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.Email == req.Email {
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	u := &backendUser{
		User:     domain.User{ID: uuid.NewString(), Name: req.Name, Email: req.Email},
		password: req.Password,
	}
	s.users[u.ID] = u
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"token": s.issueToken(u.ID), "user": u.User})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	var found *backendUser
	for _, u := range s.users {
		if u.Email == req.Email && u.password == req.Password {
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": s.issueToken(found.ID), "user": found.User})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u.User)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	search := strings.ToLower(q.Get("search"))

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && p.Category != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if v := q.Get("min_price"); v != "" {
			min, err := strconv.ParseFloat(v, 64)
			if err == nil && p.Price < min {
				continue
			}
		}
		if v := q.Get("max_price"); v != "" {
			max, err := strconv.ParseFloat(v, 64)
			if err == nil && p.Price > max {
				continue
			}
		}
		result = append(result, *p)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) findProduct(id string) *domain.Product {
	for _, p := range s.products {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findProduct(chi.URLParam(r, "id"))
	if p == nil {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, *p)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	stored := p
	s.products = append(s.products, &stored)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var update domain.Product
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	p := s.findProduct(chi.URLParam(r, "id"))
	if p == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	p.Name = update.Name
	p.Description = update.Description
	p.Price = update.Price
	p.Category = update.Category
	p.ImageURL = update.ImageURL
	p.Stock = update.Stock
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Product updated successfully"})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	kept := s.products[:0]
	found := false
	for _, p := range s.products {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	s.products = kept
	s.mu.Unlock()

	if !found {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	categories := []string{}
	for _, p := range s.products {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[u.ID]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"items": []domain.CartLine{}})
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var item domain.CartLine
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	cart, ok := s.carts[u.ID]
	if !ok {
		cart = &domain.Cart{ID: uuid.NewString(), UserID: u.ID, Items: []domain.CartLine{}}
		s.carts[u.ID] = cart
	}
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			// Merge semantics: quantities add up.
			cart.Items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, item)
	}
	cart.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Item added to cart"})
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "quantity must be an integer")
		return
	}

	s.mu.Lock()
	cart, ok := s.carts[u.ID]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Cart not found")
		return
	}
	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Item not found in cart")
		return
	}
	if quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		cart.Items[idx].Quantity = quantity
	}
	cart.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart updated"})
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.carts, u.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Items           []domain.CartLine `json:"items"`
		ShippingAddress domain.Address    `json:"shipping_address"`
		BillingAddress  domain.Address    `json:"billing_address"`
		BuyerInfo       domain.BuyerInfo  `json:"buyer_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	var total float64
	for _, item := range req.Items {
		total += item.Price * float64(item.Quantity)
	}

	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          u.ID,
		Items:           req.Items,
		TotalAmount:     total,
		Status:          domain.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		BuyerInfo:       req.BuyerInfo,
		CreatedAt:       time.Now().UTC(),
	}

	s.mu.Lock()
	s.orders = append(s.orders, order)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.Order{}
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].UserID == u.ID {
			result = append(result, *s.orders[i])
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) findOrder(id string) *domain.Order {
	for _, o := range s.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.findOrder(chi.URLParam(r, "id"))
	if o == nil || o.UserID != u.ID {
		writeDetail(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, *o)
}

func (s *Server) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.Order{}
	for i := len(s.orders) - 1; i >= 0; i-- {
		result = append(result, *s.orders[i])
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	s.mu.Lock()
	o := s.findOrder(chi.URLParam(r, "id"))
	if o == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Order not found")
		return
	}
	o.Status = domain.OrderStatus(r.URL.Query().Get("status"))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order status updated"})
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		OrderID    string `json:"order_id"`
		CardNumber string `json:"card_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	o := s.findOrder(req.OrderID)
	if o == nil || o.UserID != u.ID {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Order not found")
		return
	}
	if strings.HasSuffix(strings.ReplaceAll(req.CardNumber, " ", ""), declinedCardSuffix) {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, domain.PaymentResult{
			Success:   false,
			Message:   "Payment failed",
			ErrorCode: "card_declined",
		})
		return
	}
	o.Status = domain.OrderStatusPaid
	o.PaymentID = "pay-" + uuid.NewString()
	delete(s.carts, u.ID)
	paymentID := o.PaymentID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.PaymentResult{
		Success:   true,
		PaymentID: paymentID,
		Message:   "Payment processed successfully",
	})
}

func (s *Server) handleCreateShipping(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var req struct {
		OrderID        string `json:"order_id"`
		Carrier        string `json:"carrier"`
		TrackingNumber string `json:"tracking_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	o := s.findOrder(req.OrderID)
	if o == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Order not found")
		return
	}
	now := time.Now().UTC()
	info := &domain.ShipmentInfo{
		OrderID:        req.OrderID,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		Status:         domain.ShipmentStatusShipped,
		ShippedAt:      &now,
	}
	s.shipping[req.OrderID] = info
	o.Status = domain.OrderStatusShipped
	result := *info
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetShipping(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "orderID")

	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.findOrder(orderID)
	if o == nil {
		writeDetail(w, http.StatusNotFound, "Order not found")
		return
	}
	if o.UserID != u.ID && !u.IsAdmin {
		writeDetail(w, http.StatusForbidden, "Access denied")
		return
	}
	info, ok := s.shipping[orderID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Shipping info not found")
		return
	}
	writeJSON(w, http.StatusOK, *info)
}

func (s *Server) handleUpdateShipping(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	orderID := chi.URLParam(r, "orderID")

	s.mu.Lock()
	info, ok := s.shipping[orderID]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Shipping info not found")
		return
	}
	info.Status = domain.ShipmentStatus(r.URL.Query().Get("status"))
	if info.Status == domain.ShipmentStatusDelivered {
		now := time.Now().UTC()
		info.DeliveredAt = &now
		if o := s.findOrder(orderID); o != nil {
			o.Status = domain.OrderStatusDelivered
		}
	}
	result := *info
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	trackingNumber := chi.URLParam(r, "trackingNumber")

	s.mu.Lock()
	defer s.mu.Unlock()
	var info *domain.ShipmentInfo
	for _, candidate := range s.shipping {
		if candidate.TrackingNumber == trackingNumber {
			info = candidate
			break
		}
	}
	if info == nil {
		writeDetail(w, http.StatusNotFound, "Tracking number not found")
		return
	}

	location := "Origin"
	if info.Status == domain.ShipmentStatusInTransit {
		location = "Distribution Center"
	}
	shippedAt := time.Now().UTC()
	if info.ShippedAt != nil {
		shippedAt = *info.ShippedAt
	}
	shipment := domain.Shipment{
		TrackingNumber:  trackingNumber,
		Carrier:         info.Carrier,
		Status:          info.Status,
		CurrentLocation: location,
		Events: []domain.TrackingEvent{
			{Date: shippedAt, Status: "Shipped", Location: "Origin Warehouse"},
		},
	}
	if info.Status == domain.ShipmentStatusDelivered {
		deliveredAt := time.Now().UTC()
		if info.DeliveredAt != nil {
			deliveredAt = *info.DeliveredAt
		}
		shipment.Events = append(shipment.Events, domain.TrackingEvent{
			Date: deliveredAt, Status: "Delivered", Location: "Destination",
		})
	}
	writeJSON(w, http.StatusOK, shipment)
}

func (s *Server) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		OrderID string              `json:"order_id"`
		Items   []domain.ReturnItem `json:"items"`
		Reason  string              `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	o := s.findOrder(req.OrderID)
	if o == nil || o.UserID != u.ID {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Order not found")
		return
	}
	if o.Status != domain.OrderStatusDelivered {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Order must be delivered to request return")
		return
	}
	ret := &domain.Return{
		ID:        uuid.NewString(),
		OrderID:   req.OrderID,
		UserID:    u.ID,
		Items:     req.Items,
		Reason:    req.Reason,
		Status:    domain.ReturnStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.returns = append(s.returns, ret)
	result := *ret
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListReturns(w http.ResponseWriter, r *http.Request) {
	u, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.Return{}
	for i := len(s.returns) - 1; i >= 0; i-- {
		if s.returns[i].UserID == u.ID {
			result = append(result, *s.returns[i])
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListAllReturns(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []domain.Return{}
	for i := len(s.returns) - 1; i >= 0; i-- {
		result = append(result, *s.returns[i])
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateReturn(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	var ret *domain.Return
	for _, candidate := range s.returns {
		if candidate.ID == id {
			ret = candidate
			break
		}
	}
	if ret == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Return request not found")
		return
	}
	ret.Status = r.URL.Query().Get("status")
	if ret.Status == domain.ReturnStatusProcessed {
		now := time.Now().UTC()
		ret.ProcessedAt = &now
	}
	result := *ret
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
