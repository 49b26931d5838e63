package contentflow

import (
	"context"
	"io"
)

// Service defines the main interface for the contentflow library.
type Service interface {
	// Account operations
	RegisterAccount(ctx context.Context, req RegisterAccountRequest) (*Account, error)
	VerifyCredentials(ctx context.Context, username, password string) (*Account, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error
	GetAccount(ctx context.Context, id int64) (*Account, error)

	// Content operations
	CreateContent(ctx context.Context, req CreateContentRequest) (*Content, error)
	GetContent(ctx context.Context, accountID int64, uid string) (*Content, error)
	ListContent(ctx context.Context, accountID int64) ([]*Content, error)
	ContentSummary(ctx context.Context, accountID int64) (*StatusSummary, error)
	UpdateContent(ctx context.Context, req UpdateContentRequest) (*Content, error)
	DeleteContent(ctx context.Context, accountID int64, uid string) error

	// File operations
	ReceiveFile(ctx context.Context, accountID int64, uid string, reader io.Reader) (*Content, error)
	DownloadFile(ctx context.Context, accountID int64, uid string) (io.ReadCloser, error)

	// Worker callback
	ApplyResult(ctx context.Context, req ApplyResultRequest) error
}
