package contentflow

import (
	"context"
	"io"
	"time"
)

// Repository defines the interface for account, content and revocation
// persistence.
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	UpdateAccount(ctx context.Context, account *Account) error

	// Content operations
	CreateContent(ctx context.Context, content *Content) error
	GetContent(ctx context.Context, accountID, id int64) (*Content, error)
	GetContentByUID(ctx context.Context, accountID int64, uid string) (*Content, error)
	UpdateContent(ctx context.Context, content *Content) error
	ListContent(ctx context.Context, accountID int64) ([]*Content, error)
	CountContentByStatus(ctx context.Context, accountID int64) (*StatusSummary, error)

	// Token revocation operations
	RevokeToken(ctx context.Context, token string, revokedAt time.Time) error
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
}

// BlobStore defines the interface for storing uploaded file bodies.
type BlobStore interface {
	// Upload stores the content read from reader under objectKey.
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download returns a reader over the stored content.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the stored content.
	Delete(ctx context.Context, objectKey string) error
}

// TaskQueue is the durable FIFO hand-off channel between producer and
// worker. Delivery is to exactly one consumer; there is no acknowledgement
// and no requeue once a task has been popped.
type TaskQueue interface {
	// Enqueue appends a task to the tail of the queue.
	Enqueue(ctx context.Context, task Task) error

	// Dequeue blocks up to timeout waiting for a task. It returns
	// (nil, nil) when the wait elapsed with nothing available; callers
	// re-issue the call in a loop.
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)
}
