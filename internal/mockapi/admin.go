package mockapi

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// requireStaff resolves the authenticated user and rejects non-staff
// accounts. It returns the username and whether the caller may proceed.
func (s *Server) requireStaff(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := usernameFrom(r)
	s.mu.Lock()
	user, ok := s.users[username]
	s.mu.Unlock()
	if !ok || !user.IsStaff {
		writeError(w, http.StatusForbidden, "Forbidden")
		return username, false
	}
	return username, true
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type row struct {
		username string
		order    orderRecord
	}
	rows := make([]row, 0)
	for username, records := range s.orders {
		for _, order := range records {
			rows = append(rows, row{username: username, order: order})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].order.ID > rows[j].order.ID
	})

	out := make([]map[string]any, 0, len(rows))
	for _, rec := range rows {
		count := 0
		for _, item := range rec.order.Items {
			count += item.Quantity
		}
		out = append(out, map[string]any{
			"id":             rec.order.ID,
			"username":       rec.username,
			"total_amount":   rec.order.TotalAmount,
			"status":         rec.order.Status,
			"transaction_id": rec.order.TransactionID,
			"item_count":     count,
			"created_at":     rec.order.CreatedAt.Format("Jan 02, 2006 at 03:04 PM"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAllPayments(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type row struct {
		username string
		order    orderRecord
	}
	rows := make([]row, 0)
	for username, records := range s.orders {
		for _, order := range records {
			rows = append(rows, row{username: username, order: order})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].order.ID > rows[j].order.ID
	})

	out := make([]map[string]any, 0, len(rows))
	for _, rec := range rows {
		out = append(out, map[string]any{
			"id":             rec.order.ID,
			"username":       rec.username,
			"transaction_id": rec.order.TransactionID,
			"total_amount":   rec.order.TotalAmount,
			"status":         rec.order.Status,
			"created_at":     rec.order.CreatedAt.Format("Jan 02, 2006 at 03:04 PM"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type productInput struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
}

func (s *Server) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	var req productInput
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, http.StatusBadRequest, "price: must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Seeded catalogs pick their own ids; skip past any collision.
	var id string
	for {
		id = strconv.Itoa(s.nextProduct)
		s.nextProduct++
		if _, taken := s.productByID(id); !taken {
			break
		}
	}
	product := Product{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Category:    req.Category,
	}
	s.products = append(s.products, product)
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	id := chi.URLParam(r, "productID")
	var req productInput
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, http.StatusBadRequest, "price: must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i] = Product{
				ID:          id,
				Title:       req.Title,
				Description: req.Description,
				Price:       req.Price,
				Image:       req.Image,
				Category:    req.Category,
			}
			writeJSON(w, http.StatusOK, s.products[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Product not found")
}

func (s *Server) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	id := chi.URLParam(r, "productID")

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.products {
		if s.products[i].ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Product not found")
}
