package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
	"github.com/nmelnikov/contentflow/pkg/contentflow/auth"
)

// AccountHandler handles HTTP requests for the caller's own account.
type AccountHandler struct {
	service contentflow.Service
	tokens  *auth.TokenService
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(service contentflow.Service, tokens *auth.TokenService) *AccountHandler {
	return &AccountHandler{
		service: service,
		tokens:  tokens,
	}
}

// Routes returns the routes for account management.
func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetAccount)
	r.Put("/", h.ChangePassword)

	return r
}

// GetAccount returns the caller's own account.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	account, err := h.service.GetAccount(r.Context(), identity.AccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, account)
}

// ChangePasswordRequest is the request body for rotating a password.
type ChangePasswordRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword rotates the account password. The request authenticates
// with the current credentials rather than a token, so an account that was
// just registered can rotate its initial password before its first login.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeMalformedRequest)
		return
	}

	err := h.service.ChangePassword(r.Context(), contentflow.ChangePasswordRequest{
		Username:    req.Username,
		Password:    req.Password,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "password changed"})
}
