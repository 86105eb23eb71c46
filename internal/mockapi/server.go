// Package mockapi is a self-contained implementation of the
// storefront's HTTP contract, used by cmd/mockapi for local
// development and by tests that need a real server on the other end
// of the cart client. State is held in memory.
package mockapi

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/pkg/config"
	"github.com/angelmondragon/storefront-client/pkg/logger"
)

// Product is a catalog entry served by the mock backend.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
}

type userRecord struct {
	Email      string
	Password   string
	IsStaff    bool
	FirstName  string
	LastName   string
	DateJoined time.Time
}

type cartLine struct {
	ID        int
	ProductID string
	Quantity  int
}

type orderRecord struct {
	ID            int
	Status        string
	TotalAmount   decimal.Decimal
	TransactionID string
	CreatedAt     time.Time
	Items         []orderLine
}

type orderLine struct {
	ProductID    string
	ProductName  string
	ProductPrice decimal.Decimal
	Quantity     int
}

type ratingRecord struct {
	ID        int
	Score     int
	Review    string
	CreatedAt time.Time
}

type Server struct {
	cfg      config.MockAPIConfig
	logg     *logger.Logger
	validate *validator.Validate
	now      func() time.Time

	mu          sync.Mutex
	users       map[string]userRecord
	products    []Product
	carts       map[string][]cartLine
	orders      map[string][]orderRecord
	ratings     map[string]map[string]ratingRecord
	usedTxRefs  map[string]struct{}
	nextLineID  int
	nextOrder   int
	nextProduct int
	nextRating  int
}

// New builds a mock backend seeded with a small default catalog.
func New(cfg config.MockAPIConfig, logg *logger.Logger) *Server {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})

	return &Server{
		cfg:         cfg,
		logg:        logg,
		validate:    v,
		now:         time.Now,
		users:       map[string]userRecord{},
		products:    defaultCatalog(),
		carts:       map[string][]cartLine{},
		orders:      map[string][]orderRecord{},
		ratings:     map[string]map[string]ratingRecord{},
		usedTxRefs:  map[string]struct{}{},
		nextLineID:  1,
		nextOrder:   1,
		nextProduct: 4,
		nextRating:  1,
	}
}

// SeedProducts replaces the catalog; tests use it for fixed fixtures.
func (s *Server) SeedProducts(products []Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
}

// SeedUser registers an account without going through the endpoint.
func (s *Server) SeedUser(username, password string, isStaff bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = userRecord{Password: password, IsStaff: isStaff, DateJoined: s.now()}
}

// CartLines reports a user's server cart as (productID, quantity)
// pairs, for assertions.
func (s *Server) CartLines(username string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, line := range s.carts[username] {
		out[line.ProductID] += line.Quantity
	}
	return out
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	r.Post("/api/auth/register/", s.handleRegister)
	r.Post("/api/auth/login/", s.handleLogin)

	r.Get("/api/products/", s.handleProductList)
	r.Get("/api/products/{productID}/", s.handleProductDetail)
	r.Get("/api/ratings/{productID}/", s.handleRatingList)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/cart/view/", s.handleCartView)
		r.Post("/api/cart/add/", s.handleCartAdd)
		r.Patch("/api/cart/item/{lineID}/update/", s.handleCartUpdate)
		r.Delete("/api/cart/item/{lineID}/delete/", s.handleCartRemove)
		r.Post("/api/cart/clear/", s.handleCartClear)
		r.Post("/api/cart/merge/", s.handleCartMerge)

		r.Get("/api/orders/", s.handleOrderHistory)
		r.Post("/api/payments/submit/", s.handlePaymentSubmit)

		r.Get("/api/profile/", s.handleProfileView)
		r.Patch("/api/profile/update/", s.handleProfileUpdate)

		r.Get("/api/ratings/{productID}/mine/", s.handleMyRating)
		r.Post("/api/ratings/{productID}/submit/", s.handleRatingSubmit)
		r.Put("/api/ratings/{productID}/submit/", s.handleRatingSubmit)
		r.Delete("/api/ratings/{productID}/delete/", s.handleRatingDelete)

		r.Get("/api/orders/all/", s.handleAllOrders)
		r.Get("/api/payments/all/", s.handleAllPayments)
		r.Post("/api/products/create/", s.handleProductCreate)
		r.Put("/api/products/update/{productID}/", s.handleProductUpdate)
		r.Delete("/api/products/delete/{productID}/", s.handleProductDelete)
	})

	return r
}

func defaultCatalog() []Product {
	return []Product{
		{ID: "1", Title: "Wireless Headphones", Price: decimal.RequireFromString("59.99"), Category: "Electronics"},
		{ID: "2", Title: "Ceramic Mug", Price: decimal.RequireFromString("12.50"), Category: "Home"},
		{ID: "3", Title: "Canvas Backpack", Price: decimal.RequireFromString("39.00"), Category: "Accessories"},
	}
}
