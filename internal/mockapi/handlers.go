package mockapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		writeError(w, http.StatusBadRequest, "username: already exists")
		return
	}
	s.users[req.Username] = userRecord{Email: req.Email, Password: req.Password, DateJoined: s.now()}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Account created successfully!"})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	user, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || user.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}

	token, err := s.mintToken(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access":   token,
		"is_staff": user.IsStaff,
	})
}

func (s *Server) handleProductList(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) {
			continue
		}
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		matched = append(matched, p)
	}
	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) handleProductDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Product not found")
}

func (s *Server) productByID(id string) (Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (s *Server) cartCountLocked(username string) int {
	total := 0
	for _, line := range s.carts[username] {
		total += line.Quantity
	}
	return total
}

func (s *Server) handleCartView(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]map[string]any, 0)
	grand := decimal.Zero
	for _, line := range s.carts[username] {
		product, ok := s.productByID(line.ProductID)
		if !ok {
			continue
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		grand = grand.Add(lineTotal)
		items = append(items, map[string]any{
			"id":            line.ID,
			"product_id":    line.ProductID,
			"product_name":  product.Title,
			"product_price": product.Price,
			"product_image": product.Image,
			"quantity":      line.Quantity,
			"item_total":    lineTotal,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"grand_total": grand,
		"cart_count":  s.cartCountLocked(username),
	})
}

type cartAddRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	var req cartAddRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productByID(req.ProductID); !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	s.addToCartLocked(username, req.ProductID, req.Quantity)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Added to cart!",
		"cart_count": s.cartCountLocked(username),
	})
}

// addToCartLocked consolidates by product: an existing line grows
// instead of duplicating.
func (s *Server) addToCartLocked(username, productID string, qty int) {
	lines := s.carts[username]
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += qty
			s.carts[username] = lines
			return
		}
	}
	s.carts[username] = append(lines, cartLine{
		ID:        s.nextLineID,
		ProductID: productID,
		Quantity:  qty,
	})
	s.nextLineID++
}

type cartUpdateRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

func (s *Server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	lineID, err := strconv.Atoi(chi.URLParam(r, "lineID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req cartUpdateRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[username]
	for i := range lines {
		if lines[i].ID == lineID {
			lines[i].Quantity = req.Quantity
			s.carts[username] = lines
			writeJSON(w, http.StatusOK, map[string]any{
				"quantity":   req.Quantity,
				"cart_count": s.cartCountLocked(username),
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Item not found")
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	lineID, err := strconv.Atoi(chi.URLParam(r, "lineID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[username]
	for i := range lines {
		if lines[i].ID == lineID {
			s.carts[username] = append(lines[:i], lines[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"cart_count": s.cartCountLocked(username)})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Item not found")
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

type mergeRequest struct {
	Items []mergeItem `json:"items" validate:"required,min=1,dive"`
}

type mergeItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) handleCartMerge(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	var req mergeRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var invalid error
	for i, item := range req.Items {
		if item.Quantity < 1 {
			invalid = multierr.Append(invalid, fmt.Errorf("items[%d]: quantity must be at least 1", i))
		}
	}
	if invalid != nil {
		writeError(w, http.StatusBadRequest, invalid.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Unknown products are skipped rather than failing the merge;
	// the guest snapshot may reference items withdrawn from the
	// catalog since they were added.
	for _, item := range req.Items {
		if _, ok := s.productByID(item.ProductID); !ok {
			continue
		}
		s.addToCartLocked(username, item.ProductID, item.Quantity)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart merged"})
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0)
	records := s.orders[username]
	for i := len(records) - 1; i >= 0; i-- {
		order := records[i]
		items := make([]map[string]any, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, map[string]any{
				"product_name":  item.ProductName,
				"product_price": item.ProductPrice,
				"quantity":      item.Quantity,
				"item_total":    item.ProductPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
			})
		}
		out = append(out, map[string]any{
			"id":             order.ID,
			"status":         order.Status,
			"total_amount":   order.TotalAmount,
			"transaction_id": order.TransactionID,
			"created_at":     order.CreatedAt.Format("Jan 02, 2006 at 03:04 PM"),
			"items":          items,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type paymentSubmitRequest struct {
	TransactionID string        `json:"transaction_id" validate:"required"`
	TotalAmount   string        `json:"total_amount" validate:"required"`
	Items         []paymentItem `json:"items" validate:"required,min=1,dive"`
}

type paymentItem struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name" validate:"required"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity" validate:"gte=1"`
}

func (s *Server) handlePaymentSubmit(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	var req paymentSubmitRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil || !total.IsPositive() {
		writeError(w, http.StatusBadRequest, "Invalid total amount.")
		return
	}

	txRef := strings.TrimSpace(req.TransactionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, used := s.usedTxRefs[txRef]; used {
		writeError(w, http.StatusBadRequest, "This Transaction ID has already been submitted.")
		return
	}
	s.usedTxRefs[txRef] = struct{}{}

	items := make([]orderLine, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orderLine{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductPrice: item.ProductPrice,
			Quantity:     item.Quantity,
		})
	}

	s.orders[username] = append(s.orders[username], orderRecord{
		ID:            s.nextOrder,
		Status:        "pending",
		TotalAmount:   total,
		TransactionID: txRef,
		CreatedAt:     s.now(),
		Items:         items,
	})
	s.nextOrder++

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Payment submitted for verification."})
}
