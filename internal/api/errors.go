package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
	"github.com/nmelnikov/contentflow/pkg/contentflow/auth"
)

// Machine-readable error codes returned in the response envelope.
const (
	codeAuthHeaderNotFound  = "auth_header_not_found"
	codeAccessTokenNotFound = "access_token_not_found"
	codeExpiredSignature    = "expired_signature_error"
	codeAccessTokenRevoked  = "access_token_revoked"
	codeSignatureInvalid    = "signature_invalid"
	codeMalformedRequest    = "malformed_request"
	codeInvalidCredentials  = "invalid_username_or_password"
	codeDefaultPasswordKept = "not_change_default_password"
	codeUsernameExists      = "username_already_exists"
	codeNotAllowed          = "not_allowed"
	codeFileProcessing      = "file_processing"
	codeFileNotUploaded     = "file_not_upload"
	codeNotFound            = "not_found"
	codeInternal            = "internal_error"
)

// ErrorResponse is the envelope every failed request is answered with.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: code})
}

// writeAuthError answers a failed authentication with 401 and the code
// matching the exact failure mode.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	code := codeSignatureInvalid
	switch {
	case errors.Is(err, auth.ErrNoAuthHeader):
		code = codeAuthHeaderNotFound
	case errors.Is(err, auth.ErrTokenMissing):
		code = codeAccessTokenNotFound
	case errors.Is(err, auth.ErrTokenExpired):
		code = codeExpiredSignature
	case errors.Is(err, auth.ErrTokenRevoked):
		code = codeAccessTokenRevoked
	}
	writeError(w, r, http.StatusUnauthorized, code)
}

// writeDomainError maps service errors onto statuses and codes. Unknown
// errors become an opaque 500; the detail goes to the log, not the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, contentflow.ErrValidation),
		errors.Is(err, contentflow.ErrInvalidResult),
		errors.Is(err, contentflow.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, codeMalformedRequest)
	case errors.Is(err, contentflow.ErrInvalidTransition):
		writeError(w, r, http.StatusBadRequest, codeNotAllowed)
	case errors.Is(err, contentflow.ErrContentNotFound),
		errors.Is(err, contentflow.ErrAccountNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound)
	case errors.Is(err, contentflow.ErrAccountExists):
		writeError(w, r, http.StatusBadRequest, codeUsernameExists)
	case errors.Is(err, contentflow.ErrInvalidCredentials):
		writeError(w, r, http.StatusNotFound, codeInvalidCredentials)
	case errors.Is(err, contentflow.ErrPasswordNotChanged):
		writeError(w, r, http.StatusBadRequest, codeDefaultPasswordKept)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, codeInternal)
	}
}
