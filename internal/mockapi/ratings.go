package mockapi

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (s *Server) ratingAverageLocked(productID string) float64 {
	entries := s.ratings[productID]
	if len(entries) == 0 {
		return 0
	}
	sum := 0
	for _, entry := range entries {
		sum += entry.Score
	}
	avg := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(entries))))
	return avg.Round(2).InexactFloat64()
}

// hasPurchasedLocked reports whether any of the user's orders contain
// the product. Only buyers may rate.
func (s *Server) hasPurchasedLocked(username, productID string) bool {
	for _, order := range s.orders[username] {
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (s *Server) handleRatingList(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productByID(productID); !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	type entry struct {
		username string
		rating   ratingRecord
	}
	entries := make([]entry, 0, len(s.ratings[productID]))
	for username, rating := range s.ratings[productID] {
		entries = append(entries, entry{username: username, rating: rating})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].rating.ID > entries[j].rating.ID
	})

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":         e.rating.ID,
			"username":   e.username,
			"score":      e.rating.Score,
			"review":     e.rating.Review,
			"created_at": e.rating.CreatedAt.Format("Jan 02, 2006"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"average": s.ratingAverageLocked(productID),
		"count":   len(out),
		"ratings": out,
	})
}

func (s *Server) handleMyRating(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	productID := chi.URLParam(r, "productID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productByID(productID); !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	reply := map[string]any{
		"has_purchased": s.hasPurchasedLocked(username, productID),
		"my_rating":     nil,
	}
	if rating, ok := s.ratings[productID][username]; ok {
		reply["my_rating"] = map[string]any{
			"score":  rating.Score,
			"review": rating.Review,
		}
	}
	writeJSON(w, http.StatusOK, reply)
}

type ratingSubmitRequest struct {
	Score  int    `json:"score"`
	Review string `json:"review"`
}

func (s *Server) handleRatingSubmit(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	productID := chi.URLParam(r, "productID")
	var req ratingSubmitRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productByID(productID); !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if !s.hasPurchasedLocked(username, productID) {
		writeError(w, http.StatusForbidden, "You can only rate products you have purchased.")
		return
	}
	if req.Score < 1 || req.Score > 5 {
		writeError(w, http.StatusBadRequest, "Score must be between 1 and 5.")
		return
	}

	entries := s.ratings[productID]
	if entries == nil {
		entries = map[string]ratingRecord{}
		s.ratings[productID] = entries
	}

	existing, updated := entries[username]
	rating := ratingRecord{ID: existing.ID, Score: req.Score, Review: req.Review, CreatedAt: s.now()}
	if !updated {
		rating.ID = s.nextRating
		s.nextRating++
	}
	entries[username] = rating

	message := "Rating submitted!"
	status := http.StatusCreated
	if updated {
		message = "Rating updated!"
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"message":     message,
		"score":       rating.Score,
		"review":      rating.Review,
		"new_average": s.ratingAverageLocked(productID),
	})
}

func (s *Server) handleRatingDelete(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	productID := chi.URLParam(r, "productID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ratings[productID][username]; !ok {
		writeError(w, http.StatusNotFound, "No rating found.")
		return
	}
	delete(s.ratings[productID], username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Rating removed."})
}
