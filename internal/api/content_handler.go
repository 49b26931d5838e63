package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
	"github.com/nmelnikov/contentflow/pkg/contentflow/auth"
)

// ContentHandler handles HTTP requests for contents and their files.
type ContentHandler struct {
	service contentflow.Service
	tokens  *auth.TokenService
}

// NewContentHandler creates a new content handler.
func NewContentHandler(service contentflow.Service, tokens *auth.TokenService) *ContentHandler {
	return &ContentHandler{
		service: service,
		tokens:  tokens,
	}
}

// Routes returns the routes for contents.
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateContent)
	r.Get("/", h.ListContents)
	r.Put("/", h.ApplyResult)

	r.Get("/{uid}", h.GetContent)
	r.Put("/{uid}", h.UpdateContent)
	r.Delete("/{uid}", h.DeleteContent)

	r.Put("/{uid}/file", h.UploadFile)
	r.Get("/{uid}/file", h.DownloadFile)

	return r
}

// CreateContentRequest is the request body for registering an upload.
type CreateContentRequest struct {
	Filename string `json:"filename"`
}

// CreateContent registers a new content in its uploading state and returns
// it, including the correlation identifier the file must later be uploaded
// under.
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	var req CreateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeMalformedRequest)
		return
	}

	content, err := h.service.CreateContent(r.Context(), contentflow.CreateContentRequest{
		AccountID: identity.AccountID,
		Filename:  req.Filename,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, content)
}

// ListContentsResponse carries the caller's contents together with their
// per-status counts.
type ListContentsResponse struct {
	Contents []*contentflow.Content     `json:"contents"`
	Summary  *contentflow.StatusSummary `json:"summary"`
}

// ListContents returns the caller's contents with a per-status summary.
func (h *ContentHandler) ListContents(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	contents, err := h.service.ListContent(r.Context(), identity.AccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	summary, err := h.service.ContentSummary(r.Context(), identity.AccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, ListContentsResponse{Contents: contents, Summary: summary})
}

// GetContent retrieves one content by its correlation identifier.
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	content, err := h.service.GetContent(r.Context(), identity.AccountID, chi.URLParam(r, "uid"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, content)
}

// UpdateContentRequest is the request body for renaming a content.
type UpdateContentRequest struct {
	Filename string `json:"filename"`
}

// UpdateContent updates the content's display filename.
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeMalformedRequest)
		return
	}

	content, err := h.service.UpdateContent(r.Context(), contentflow.UpdateContentRequest{
		AccountID: identity.AccountID,
		UID:       chi.URLParam(r, "uid"),
		Filename:  req.Filename,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, content)
}

// DeleteContent soft-deletes a content and reclaims its stored file.
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	if err := h.service.DeleteContent(r.Context(), identity.AccountID, chi.URLParam(r, "uid")); err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "deleted"})
}

// UploadFile attaches the request body as the content's file. On success
// the content moves to its processing state and a task is handed to the
// worker queue.
func (h *ContentHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	content, err := h.service.ReceiveFile(r.Context(), identity.AccountID, chi.URLParam(r, "uid"), r.Body)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, content)
}

// DownloadFile streams the stored file back. The bytes are only served
// once processing concluded.
func (h *ContentHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	uid := chi.URLParam(r, "uid")
	content, err := h.service.GetContent(r.Context(), identity.AccountID, uid)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	switch content.Status {
	case contentflow.ContentStatusUploading:
		writeError(w, r, http.StatusBadRequest, codeFileNotUploaded)
		return
	case contentflow.ContentStatusProcessing:
		writeError(w, r, http.StatusBadRequest, codeFileProcessing)
		return
	}

	reader, err := h.service.DownloadFile(r.Context(), identity.AccountID, uid)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+content.Filename+`"`)
	if _, err := io.Copy(w, reader); err != nil {
		// Headers are already out; nothing useful can be sent anymore.
		return
	}
}

// ApplyResultRequest is the request body a worker reports an outcome with.
// The record counts are only present on a success outcome.
type ApplyResultRequest struct {
	AccountID      int64  `json:"account_id"`
	ContentID      int64  `json:"content_id"`
	Status         string `json:"status"`
	TotalRecords   *int   `json:"total_records"`
	SuccessRecords *int   `json:"success_records"`
	ErrorRecords   *int   `json:"error_records"`
}

// ApplyResult applies a processing outcome reported by a worker. Only
// worker-class roles may call it.
func (h *ContentHandler) ApplyResult(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	if !identity.Role.CanReportResults() {
		writeError(w, r, http.StatusForbidden, codeNotAllowed)
		return
	}

	var req ApplyResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeMalformedRequest)
		return
	}

	status := contentflow.ContentStatus(req.Status)
	result := contentflow.ProcessResult{Status: status}
	if status == contentflow.ContentStatusSuccess {
		if req.TotalRecords == nil || req.SuccessRecords == nil || req.ErrorRecords == nil {
			writeError(w, r, http.StatusBadRequest, codeMalformedRequest)
			return
		}
		result.TotalRecords = *req.TotalRecords
		result.SuccessRecords = *req.SuccessRecords
		result.ErrorRecords = *req.ErrorRecords
	}

	err = h.service.ApplyResult(r.Context(), contentflow.ApplyResultRequest{
		AccountID: req.AccountID,
		ContentID: req.ContentID,
		Result:    result,
	})
	if err != nil {
		var contentErr *contentflow.ContentError
		if errors.As(err, &contentErr) && errors.Is(err, contentflow.ErrInvalidTransition) {
			writeError(w, r, http.StatusBadRequest, codeNotAllowed)
			return
		}
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "updated"})
}
