package views

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/credential"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/session"
)

// shop is an in-memory backend with one cart per user. Tokens are "tok-<id>".
type shop struct {
	mu         sync.Mutex
	nextID     int
	users      map[string]*domain.User
	products   []domain.Product
	categories []domain.Category
	carts      map[string][]domain.CartLine
	orders     map[string]*domain.Order
	requests   []string
}

func newShop() *shop {
	s := &shop{
		users:  map[string]*domain.User{},
		carts:  map[string][]domain.CartLine{},
		orders: map[string]*domain.Order{},
		categories: []domain.Category{
			{ID: "c1", Name: "Tools"},
			{ID: "c2", Name: "Toys"},
		},
	}
	s.users["admin"] = &domain.User{ID: "admin", Name: "Root", Email: "root@example.com", Role: domain.RoleAdmin, Status: domain.AccountActive}
	s.users["seller"] = &domain.User{ID: "seller", Name: "Sal", Role: domain.RoleSeller, Status: domain.AccountActive}
	s.products = []domain.Product{
		{ID: "p1", SellerID: "seller", CategoryID: "c1", Name: "Hammer", Price: decimal.RequireFromString("10"), Stock: 3, IsActive: true},
		{ID: "p2", SellerID: "seller", CategoryID: "c2", Name: "Yo-yo", Price: decimal.RequireFromString("2.5"), Stock: 10, IsActive: true},
	}
	return s
}

func (s *shop) addUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *shop) addOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = &o
}

func (s *shop) log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *shop) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("GET /api/auth/me", s.authed(func(w http.ResponseWriter, _ *http.Request, u *domain.User) {
		reply(w, http.StatusOK, u)
	}))
	mux.HandleFunc("GET /api/categories", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, s.categories)
	})
	mux.HandleFunc("GET /api/products", s.listProducts)
	mux.HandleFunc("GET /api/products/my", s.authed(s.myProducts))
	mux.HandleFunc("POST /api/products", s.authed(s.createProduct))
	mux.HandleFunc("DELETE /api/products/{id}", s.authed(s.deleteProduct))
	mux.HandleFunc("POST /api/upload", s.authed(s.upload))
	mux.HandleFunc("GET /api/cart", s.authed(s.getCart))
	mux.HandleFunc("POST /api/cart", s.authed(s.addToCart))
	mux.HandleFunc("GET /api/orders", s.authed(s.listOrders))
	mux.HandleFunc("POST /api/orders", s.authed(s.createOrder))
	mux.HandleFunc("GET /api/orders/{id}", s.authed(s.getOrder))
	mux.HandleFunc("PUT /api/orders/{id}/cancel", s.authed(s.cancelOrder))
	mux.HandleFunc("PUT /api/orders/{id}/status", s.admin(s.setOrderStatus))
	mux.HandleFunc("GET /api/sellers", s.admin(s.listByRole(domain.RoleSeller)))
	mux.HandleFunc("GET /api/sellers/pending", s.admin(s.listByRole(domain.RolePendingSeller)))
	mux.HandleFunc("PUT /api/sellers/{id}/{action}", s.admin(s.sellerAction))
	mux.HandleFunc("GET /api/users", s.admin(s.listUsers))
	mux.HandleFunc("PUT /api/users/{id}/role", s.admin(s.setRole))
	mux.HandleFunc("DELETE /api/users/{id}", s.admin(s.deleteUser))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, u *domain.User)

func (s *shop) authed(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer tok-")
		s.mu.Lock()
		u, ok := s.users[id]
		var cp domain.User
		if ok {
			cp = *u
		}
		s.mu.Unlock()
		if !ok {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
		next(w, r, &cp)
	}
}

func (s *shop) admin(next userHandler) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, u *domain.User) {
		if u.Role != domain.RoleAdmin {
			reply(w, http.StatusForbidden, map[string]string{"error": "Admin access required"})
			return
		}
		next(w, r, u)
	})
}

func (s *shop) register(w http.ResponseWriter, r *http.Request) {
	var body struct{ Name, Email, Password, Role string }
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.nextID++
	u := domain.User{ID: fmt.Sprintf("u%d", s.nextID), Name: body.Name, Email: body.Email, Role: domain.RoleUser, Status: domain.AccountActive}
	msg := "Registration successful"
	if body.Role == "seller" {
		u.Role, u.Status = domain.RolePendingSeller, domain.AccountPending
		msg = "Registration successful. Your seller account is awaiting admin approval."
	}
	s.users[u.ID] = &u
	s.mu.Unlock()

	reply(w, http.StatusCreated, map[string]any{"message": msg, "user": u, "token": "tok-" + u.ID})
}

func (s *shop) listProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Product{}
	search := strings.ToLower(r.URL.Query().Get("search"))
	for _, p := range s.products {
		if c := r.URL.Query().Get("category_id"); c != "" && p.CategoryID != c {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		out = append(out, p)
	}
	reply(w, http.StatusOK, out)
}

func (s *shop) myProducts(w http.ResponseWriter, _ *http.Request, u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Product{}
	for _, p := range s.products {
		if p.SellerID == u.ID {
			out = append(out, p)
		}
	}
	reply(w, http.StatusOK, out)
}

func (s *shop) createProduct(w http.ResponseWriter, r *http.Request, u *domain.User) {
	var body struct {
		CategoryID  string  `json:"category_id"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Stock       int     `json:"stock"`
		Image       string  `json:"image"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.nextID++
	p := domain.Product{
		ID: fmt.Sprintf("p%d", 100+s.nextID), SellerID: u.ID, CategoryID: body.CategoryID, Name: body.Name,
		Description: body.Description, Price: decimal.NewFromFloat(body.Price), Stock: body.Stock, Image: body.Image, IsActive: true,
	}
	s.products = append(s.products, p)
	s.mu.Unlock()
	reply(w, http.StatusCreated, p)
}

func (s *shop) deleteProduct(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.products {
		if p.ID == r.PathValue("id") {
			s.products = append(s.products[:i], s.products[i+1:]...)
			reply(w, http.StatusOK, map[string]string{"message": "Product deleted"})
			return
		}
	}
	reply(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
}

func (s *shop) upload(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	_, hdr, err := r.FormFile("image")
	if err != nil {
		reply(w, http.StatusBadRequest, map[string]string{"error": "No image uploaded"})
		return
	}
	reply(w, http.StatusOK, map[string]string{"url": "/uploads/" + hdr.Filename, "filename": hdr.Filename})
}

func (s *shop) getCart(w http.ResponseWriter, _ *http.Request, u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.Cart{Lines: s.carts[u.ID]}
	for _, l := range c.Lines {
		c.Total = c.Total.Add(l.Subtotal())
	}
	reply(w, http.StatusOK, c)
}

func (s *shop) addToCart(w http.ResponseWriter, r *http.Request, u *domain.User) {
	var body struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == body.ProductID {
			s.nextID++
			s.carts[u.ID] = append(s.carts[u.ID], domain.CartLine{ID: fmt.Sprintf("l%d", s.nextID), ProductID: p.ID, Quantity: body.Quantity, Product: p})
			reply(w, http.StatusCreated, map[string]string{"message": "Added to cart"})
			return
		}
	}
	reply(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
}

func (s *shop) listOrders(w http.ResponseWriter, _ *http.Request, u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Order{}
	for _, o := range s.orders {
		if u.Role == domain.RoleAdmin || o.UserID == u.ID {
			out = append(out, *o)
		}
	}
	reply(w, http.StatusOK, out)
}

func (s *shop) createOrder(w http.ResponseWriter, r *http.Request, u *domain.User) {
	var in api.CheckoutInput
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[u.ID]
	if len(lines) == 0 {
		reply(w, http.StatusBadRequest, map[string]string{"error": "Cart is empty"})
		return
	}
	s.nextID++
	o := &domain.Order{ID: fmt.Sprintf("o%d", s.nextID), UserID: u.ID, Status: domain.OrderStatusPending, Address: in.Address, Phone: in.Phone}
	for _, l := range lines {
		o.Items = append(o.Items, domain.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Product.Price})
		o.Total = o.Total.Add(l.Subtotal())
	}
	s.orders[o.ID] = o
	delete(s.carts, u.ID)
	reply(w, http.StatusCreated, o)
}

func (s *shop) getOrder(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[r.PathValue("id")]
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
		return
	}
	reply(w, http.StatusOK, o)
}

func (s *shop) cancelOrder(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[r.PathValue("id")]
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
		return
	}
	if o.Status != domain.OrderStatusPending {
		reply(w, http.StatusBadRequest, map[string]string{"error": "Only pending orders can be cancelled"})
		return
	}
	o.Status = domain.OrderStatusCancelled
	reply(w, http.StatusOK, map[string]string{"message": "Order cancelled"})
}

func (s *shop) setOrderStatus(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	var body struct {
		Status domain.OrderStatus `json:"status"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[r.PathValue("id")]
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
		return
	}
	o.Status = body.Status
	reply(w, http.StatusOK, o)
}

func (s *shop) listByRole(role domain.Role) userHandler {
	return func(w http.ResponseWriter, _ *http.Request, _ *domain.User) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []domain.User{}
		for _, u := range s.users {
			if u.Role == role {
				out = append(out, *u)
			}
		}
		reply(w, http.StatusOK, out)
	}
}

func (s *shop) sellerAction(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[r.PathValue("id")]
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}
	switch r.PathValue("action") {
	case "approve":
		u.Role, u.Status = domain.RoleSeller, domain.AccountActive
	case "reject", "deactivate":
		u.Role, u.Status = domain.RoleUser, domain.AccountActive
	default:
		reply(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}
	reply(w, http.StatusOK, map[string]any{"message": "Seller updated", "user": u})
}

func (s *shop) listUsers(w http.ResponseWriter, _ *http.Request, _ *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.User{}
	for _, u := range s.users {
		out = append(out, *u)
	}
	reply(w, http.StatusOK, out)
}

func (s *shop) setRole(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	var body struct {
		Role domain.Role `json:"role"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[r.PathValue("id")]
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}
	u.Role = body.Role
	reply(w, http.StatusOK, map[string]string{"message": "Role updated"})
}

func (s *shop) deleteUser(w http.ResponseWriter, r *http.Request, _ *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, r.PathValue("id"))
	reply(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// client is one signed-in (or anonymous) app instance against the shop.
type client struct {
	api     *api.Client
	session *session.Store
	cart    *cart.ViewModel
}

// newClient starts a client whose persisted token belongs to userID; an
// empty userID starts anonymous.
func newClient(t *testing.T, baseURL, userID string) *client {
	t.Helper()
	token := ""
	if userID != "" {
		token = "tok-" + userID
	}
	logger := slog.New(slog.DiscardHandler)
	c := api.NewClient(baseURL + "/api")
	store := session.NewStore(c, credential.NewMemoryStore(token), logger)
	c.SetTokenSource(store)
	c.OnUnauthorized(store.ForceLogout)
	require.NoError(t, store.Refresh(context.Background()))

	vm := cart.NewViewModel(c, store, logger)
	t.Cleanup(vm.Close)
	return &client{api: c, session: store, cart: vm}
}

func startShop(t *testing.T) (*shop, string) {
	t.Helper()
	s := newShop()
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	return s, srv.URL
}
