// Package api exposes the content service over HTTP. Every protected
// handler authenticates the bearer token itself before touching the
// service layer.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
	"github.com/nmelnikov/contentflow/pkg/contentflow/auth"
)

// AuthHandler handles login, logout and account registration.
type AuthHandler struct {
	service contentflow.Service
	tokens  *auth.TokenService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(service contentflow.Service, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		service: service,
		tokens:  tokens,
	}
}

// Routes returns the routes for authentication.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Get("/logout", h.Logout)
	r.Post("/register", h.Register)

	return r
}

// LoginRequest is the request body for a login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login verifies the credentials and issues a fresh token. An account that
// never rotated its registration-time password is refused a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeMalformedRequest)
		return
	}

	account, err := h.service.VerifyCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !account.PasswordChanged {
		writeDomainError(w, r, contentflow.ErrPasswordNotChanged)
		return
	}

	token, err := h.tokens.Issue(account.ID, account.Role, 0)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, LoginResponse{AccessToken: token})
}

// Logout revokes the presented token. The token must still verify; an
// already dead token cannot be revoked again.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	if err := h.tokens.Revoke(r.Context(), identity.Token); err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "logged out"})
}

// RegisterRequest is the request body for creating an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates a new account. Only administrators may register
// accounts.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	if identity.Role != contentflow.RoleAdmin {
		writeError(w, r, http.StatusForbidden, codeNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeMalformedRequest)
		return
	}

	role := contentflow.Role(req.Role)
	if req.Role == "" {
		role = contentflow.RoleUser
	}

	account, err := h.service.RegisterAccount(r.Context(), contentflow.RegisterAccountRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, account)
}
