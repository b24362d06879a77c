package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/slowlime/knotd/internal/acl"
	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/auth"
	"github.com/slowlime/knotd/internal/validate"
)

// handleLogin implements POST /login: an OAuth2-flavored password grant,
// form-encoded per spec.md §4.6.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return apierr.NewValidation([]apierr.FieldError{{Path: "", Message: "invalid form body"}})
	}
	if r.PostForm.Get("grant_type") != "password" {
		return apierr.NewValidation([]apierr.FieldError{{Path: "grant_type", Message: `must be "password"`}})
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		return apierr.NewInvalidCredentials()
	}
	if !acl.IsActive(user) {
		return apierr.NewInvalidCredentials()
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return apierr.NewInvalidCredentials()
	}

	token, err := s.minter.Mint(user.Username)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
	})
	return nil
}

// handleRegister implements POST /user.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	in := validate.UserRegister{Username: payload.Username, Email: payload.Email, Password: payload.Password}
	if err := in.Validate(); err != nil {
		return err
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		return err
	}
	if _, err := s.store.CreateUser(r.Context(), payload.Username, payload.Email, hash); err != nil {
		return err
	}
	writeMessage(w, http.StatusCreated, "user registered")
	return nil
}

// handleGetUser implements GET /user/{username}.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) error {
	viewer, err := requireUser(r)
	if err != nil {
		return err
	}
	username := chi.URLParam(r, "username")
	target, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		return err
	}
	if !acl.CanViewUser(viewer, target) {
		return apierr.NewNoPermission()
	}
	writeJSON(w, http.StatusOK, viewUser(target, viewer.ID == target.ID || acl.IsAdmin(viewer)))
	return nil
}

// handleListPermissions implements GET /permission: the frozen permission
// catalog, spec.md §6.
func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{"permissions": codesToStrings()})
	return nil
}
