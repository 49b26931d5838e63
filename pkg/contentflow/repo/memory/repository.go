package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
)

// Repository implements contentflow.Repository using in-memory storage
type Repository struct {
	mu            sync.RWMutex
	accounts      map[int64]*contentflow.Account
	contents      map[int64]*contentflow.Content
	revokedTokens map[string]time.Time
	nextAccountID int64
	nextContentID int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		accounts:      make(map[int64]*contentflow.Account),
		contents:      make(map[int64]*contentflow.Content),
		revokedTokens: make(map[string]time.Time),
		nextAccountID: 1,
		nextContentID: 1,
	}
}

// Account operations

func (r *Repository) CreateAccount(ctx context.Context, account *contentflow.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Username == account.Username && !existing.Deleted {
			return contentflow.ErrAccountExists
		}
	}

	account.ID = r.nextAccountID
	r.nextAccountID++

	accountCopy := *account
	r.accounts[account.ID] = &accountCopy
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (*contentflow.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists || account.Deleted {
		return nil, contentflow.ErrAccountNotFound
	}
	accountCopy := *account
	return &accountCopy, nil
}

func (r *Repository) GetAccountByUsername(ctx context.Context, username string) (*contentflow.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.Username == username && !account.Deleted {
			accountCopy := *account
			return &accountCopy, nil
		}
	}
	return nil, contentflow.ErrAccountNotFound
}

func (r *Repository) UpdateAccount(ctx context.Context, account *contentflow.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; !exists {
		return contentflow.ErrAccountNotFound
	}
	accountCopy := *account
	r.accounts[account.ID] = &accountCopy
	return nil
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *contentflow.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	content.ID = r.nextContentID
	r.nextContentID++

	contentCopy := *content
	r.contents[content.ID] = &contentCopy
	return nil
}

func (r *Repository) GetContent(ctx context.Context, accountID, id int64) (*contentflow.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	content, exists := r.contents[id]
	if !exists || content.Deleted || content.AccountID != accountID {
		return nil, contentflow.ErrContentNotFound
	}
	contentCopy := *content
	return &contentCopy, nil
}

func (r *Repository) GetContentByUID(ctx context.Context, accountID int64, uid string) (*contentflow.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, content := range r.contents {
		if content.UID == uid && content.AccountID == accountID && !content.Deleted {
			contentCopy := *content
			return &contentCopy, nil
		}
	}
	return nil, contentflow.ErrContentNotFound
}

func (r *Repository) UpdateContent(ctx context.Context, content *contentflow.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[content.ID]; !exists {
		return contentflow.ErrContentNotFound
	}
	contentCopy := *content
	r.contents[content.ID] = &contentCopy
	return nil
}

func (r *Repository) ListContent(ctx context.Context, accountID int64) ([]*contentflow.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var contents []*contentflow.Content
	for _, content := range r.contents {
		if content.AccountID == accountID && !content.Deleted {
			contentCopy := *content
			contents = append(contents, &contentCopy)
		}
	}
	return contents, nil
}

func (r *Repository) CountContentByStatus(ctx context.Context, accountID int64) (*contentflow.StatusSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := &contentflow.StatusSummary{}
	for _, content := range r.contents {
		if content.AccountID != accountID || content.Deleted {
			continue
		}
		summary.Total++
		switch content.Status {
		case contentflow.ContentStatusSuccess:
			summary.Success++
		case contentflow.ContentStatusError:
			summary.Error++
		case contentflow.ContentStatusProcessing:
			summary.Processing++
		case contentflow.ContentStatusUploading:
			summary.Uploading++
		}
	}
	return summary, nil
}

// Token revocation operations

func (r *Repository) RevokeToken(ctx context.Context, token string, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.revokedTokens[token]; !exists {
		r.revokedTokens[token] = revokedAt
	}
	return nil
}

func (r *Repository) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, revoked := r.revokedTokens[token]
	return revoked, nil
}
