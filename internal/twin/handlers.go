package twin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes(r chi.Router) {
	r.Get("/users", s.ListUsers)
	r.Post("/users", s.CreateUser)
	r.Get("/users/{id}", s.GetUser)
	r.Put("/users/{id}", s.UpdateUser)
	r.Patch("/users/{id}", s.UpdateUser)
	r.Delete("/users/{id}", s.DeleteUser)

	r.Get("/unknown", s.ListColors)
	r.Get("/unknown/{id}", s.GetColor)

	r.Post("/register", s.Register)
	r.Post("/login", s.Login)
	r.Post("/logout", s.Logout)
}

// ListUsers handles GET /api/users.
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	pageNum, perPage := pageParams(r)
	writeJSON(w, http.StatusOK, paginate(s.store.Users(), pageNum, perPage))
}

// GetUser handles GET /api/users/{id}. Unknown ids answer 404 with an
// empty object.
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	u, ok := s.store.User(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": u, "support": defaultSupport})
}

// CreateUser handles POST /api/users. The payload is echoed back with an
// id and creation stamp.
func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	body["id"] = s.newID()
	body["createdAt"] = s.timestamp()
	writeJSON(w, http.StatusCreated, body)
}

// UpdateUser handles PUT and PATCH /api/users/{id}.
func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	body["updatedAt"] = s.timestamp()
	writeJSON(w, http.StatusOK, body)
}

// DeleteUser handles DELETE /api/users/{id}.
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// ListColors handles GET /api/unknown.
func (s *Server) ListColors(w http.ResponseWriter, r *http.Request) {
	pageNum, perPage := pageParams(r)
	writeJSON(w, http.StatusOK, paginate(s.store.Colors(), pageNum, perPage))
}

// GetColor handles GET /api/unknown/{id}.
func (s *Server) GetColor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	c, ok := s.store.Color(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": c, "support": defaultSupport})
}

type credentials struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c credentials) login() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Username
}

// Register handles POST /api/register. Only seeded users may register.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}
	u, found := s.store.UserByEmail(creds.login())
	if !found {
		writeError(w, http.StatusBadRequest, "Note: Only defined users succeed registration")
		return
	}
	token, err := s.tokens.Issue(u, s.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "token": token})
}

// Login handles POST /api/login.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}
	u, found := s.store.UserByEmail(creds.login())
	if !found {
		writeError(w, http.StatusBadRequest, "user not found")
		return
	}
	token, err := s.tokens.Issue(u, s.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

// Logout handles POST /api/logout. A bearer token, when sent, must be one
// this twin issued.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		if _, err := s.tokens.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var creds credentials
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return creds, false
		}
	}
	switch {
	case creds.login() == "":
		writeError(w, http.StatusBadRequest, "Missing email or username")
		return creds, false
	case creds.Password == "":
		writeError(w, http.StatusBadRequest, "Missing password")
		return creds, false
	}
	return creds, true
}

func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body := map[string]any{}
	if r.ContentLength == 0 {
		return body, true
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return body, true
}

func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	pageNum, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		pageNum = 1
	}
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil {
		perPage = DefaultPerPage
	}
	return pageNum, perPage
}
