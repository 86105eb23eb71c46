package mockapi

import "net/http"

func (s *Server) handleProfileView(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)

	s.mu.Lock()
	user, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":    username,
		"email":       user.Email,
		"date_joined": user.DateJoined.Format("January 02, 2006"),
		"first_name":  user.FirstName,
		"last_name":   user.LastName,
	})
}

type profileUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email" validate:"omitempty,email"`
}

// handleProfileUpdate patches only the fields present in the body;
// absent fields keep their current values.
func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r)
	var req profileUpdateRequest
	if err := s.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	user, ok := s.users[username]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	s.users[username] = user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Profile updated successfully.",
		"username":   username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	})
}
