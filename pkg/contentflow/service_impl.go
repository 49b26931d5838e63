package contentflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	queue      TaskQueue
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the storage backend for uploaded file bodies
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithTaskQueue sets the queue tasks are handed to after upload
func WithTaskQueue(queue TaskQueue) Option {
	return func(s *service) {
		s.queue = queue
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}

	return s, nil
}

// Account operations

const (
	minPasswordLen = 8
	maxPasswordLen = 50
)

func validPassword(password string) bool {
	return len(password) >= minPasswordLen && len(password) <= maxPasswordLen
}

func (s *service) RegisterAccount(ctx context.Context, req RegisterAccountRequest) (*Account, error) {
	if req.Username == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrValidation)
	}
	if !validPassword(req.Password) {
		return nil, fmt.Errorf("%w: password must be %d-%d characters", ErrValidation, minPasswordLen, maxPasswordLen)
	}
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repository.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

func (s *service) VerifyCredentials(ctx context.Context, username, password string) (*Account, error) {
	account, err := s.repository.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

func (s *service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if !validPassword(req.NewPassword) {
		return fmt.Errorf("%w: password must be %d-%d characters", ErrValidation, minPasswordLen, maxPasswordLen)
	}

	account, err := s.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	account.PasswordHash = string(hash)
	account.PasswordChanged = true
	account.UpdatedAt = time.Now().UTC()

	return s.repository.UpdateAccount(ctx, account)
}

func (s *service) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return s.repository.GetAccount(ctx, id)
}

// Content operations

func (s *service) CreateContent(ctx context.Context, req CreateContentRequest) (*Content, error) {
	if filepath.Ext(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename must carry an extension", ErrValidation)
	}

	now := time.Now().UTC()
	content := &Content{
		UID:       newContentUID(),
		AccountID: req.AccountID,
		Filename:  filepath.Base(req.Filename),
		Status:    ContentStatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repository.CreateContent(ctx, content); err != nil {
		return nil, err
	}

	return content, nil
}

func (s *service) GetContent(ctx context.Context, accountID int64, uid string) (*Content, error) {
	return s.repository.GetContentByUID(ctx, accountID, uid)
}

func (s *service) ListContent(ctx context.Context, accountID int64) ([]*Content, error) {
	return s.repository.ListContent(ctx, accountID)
}

func (s *service) ContentSummary(ctx context.Context, accountID int64) (*StatusSummary, error) {
	return s.repository.CountContentByStatus(ctx, accountID)
}

func (s *service) UpdateContent(ctx context.Context, req UpdateContentRequest) (*Content, error) {
	if req.Filename == "" {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if filepath.Ext(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename must carry an extension", ErrValidation)
	}

	content, err := s.repository.GetContentByUID(ctx, req.AccountID, req.UID)
	if err != nil {
		return nil, err
	}

	content.Filename = filepath.Base(req.Filename)
	content.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateContent(ctx, content); err != nil {
		return nil, err
	}

	return content, nil
}

func (s *service) DeleteContent(ctx context.Context, accountID int64, uid string) error {
	content, err := s.repository.GetContentByUID(ctx, accountID, uid)
	if err != nil {
		return err
	}

	content.Deleted = true
	content.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateContent(ctx, content); err != nil {
		return err
	}

	// The record is kept as a tombstone but the stored body is reclaimed.
	if content.FileKey != "" && s.blobStore != nil {
		if err := s.blobStore.Delete(ctx, content.FileKey); err != nil {
			return fmt.Errorf("delete stored file %q: %w", content.FileKey, err)
		}
	}
	return nil
}

// File operations

func (s *service) ReceiveFile(ctx context.Context, accountID int64, uid string, reader io.Reader) (*Content, error) {
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if s.queue == nil {
		return nil, fmt.Errorf("task queue is not configured")
	}

	content, err := s.repository.GetContentByUID(ctx, accountID, uid)
	if err != nil {
		return nil, err
	}
	if _, err := canReceiveFile(content.Status); err != nil {
		return nil, &ContentError{UID: uid, Op: "receive file", Err: err}
	}

	fileKey := storedFileKey(content.Filename)
	if err := s.blobStore.Upload(ctx, fileKey, reader); err != nil {
		return nil, &ContentError{UID: uid, Op: "receive file", Err: err}
	}

	// The status write only happens after the task made it onto the queue;
	// an enqueue failure leaves the content in UPLOADING so the upload can
	// be retried against the same item.
	task := Task{
		AccountID:  content.AccountID,
		ContentID:  content.ID,
		ContentUID: content.UID,
		File:       fileKey,
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, &ContentError{UID: uid, Op: "enqueue task", Err: err}
	}

	now := time.Now().UTC()
	content.FileKey = fileKey
	content.Status = ContentStatusProcessing
	content.UploadedAt = &now
	content.UpdatedAt = now
	if err := s.repository.UpdateContent(ctx, content); err != nil {
		return nil, err
	}

	return content, nil
}

func (s *service) DownloadFile(ctx context.Context, accountID int64, uid string) (io.ReadCloser, error) {
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}

	content, err := s.repository.GetContentByUID(ctx, accountID, uid)
	if err != nil {
		return nil, err
	}
	if _, err := canDownloadFile(content.Status); err != nil {
		return nil, err
	}

	return s.blobStore.Download(ctx, content.FileKey)
}

// Worker callback

func (s *service) ApplyResult(ctx context.Context, req ApplyResultRequest) error {
	if err := validateResult(req.Result); err != nil {
		return err
	}

	content, err := s.repository.GetContent(ctx, req.AccountID, req.ContentID)
	if err != nil {
		return err
	}
	if _, err := canApplyResult(content.Status); err != nil {
		return &ContentError{UID: content.UID, Op: "apply result", Err: err}
	}

	content.Status = req.Result.Status
	if req.Result.Status == ContentStatusSuccess {
		total, success, failed := req.Result.TotalRecords, req.Result.SuccessRecords, req.Result.ErrorRecords
		content.TotalRecords = &total
		content.SuccessRecords = &success
		content.ErrorRecords = &failed
	}
	content.UpdatedAt = time.Now().UTC()

	return s.repository.UpdateContent(ctx, content)
}

// newContentUID returns the short correlation identifier exposed to clients
// in place of the internal numeric id.
func newContentUID() string {
	id := uuid.NewString()
	return id[len(id)-10:]
}

// storedFileKey derives the name the uploaded body is stored under. A random
// suffix keeps successive uploads of the same filename apart.
func storedFileKey(filename string) string {
	seq := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	return fmt.Sprintf("%s---%s%s", base, seq, ext)
}
