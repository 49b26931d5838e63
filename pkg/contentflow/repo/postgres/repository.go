package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements contentflow.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the tables the repository relies on.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
CREATE TABLE IF NOT EXISTS account (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	password_changed BOOLEAN NOT NULL DEFAULT FALSE,
	deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS content (
	id BIGSERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	account_id BIGINT NOT NULL REFERENCES account(id),
	filename TEXT NOT NULL,
	file_key TEXT,
	status TEXT NOT NULL,
	total_records INTEGER,
	success_records INTEGER,
	error_records INTEGER,
	deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	uploaded_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS revoked_token (
	token TEXT PRIMARY KEY,
	revoked_at TIMESTAMPTZ NOT NULL
);`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return contentflow.ErrAccountExists
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Account operations

func (r *Repository) CreateAccount(ctx context.Context, account *contentflow.Account) error {
	query := `
		INSERT INTO account (username, email, password_hash, role, password_changed, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		account.Username, account.Email, account.PasswordHash, account.Role,
		account.PasswordChanged, account.Deleted, account.CreatedAt, account.UpdatedAt).
		Scan(&account.ID)
	if err != nil {
		return r.handlePostgresError("create account", err)
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (*contentflow.Account, error) {
	query := `
		SELECT id, username, email, password_hash, role, password_changed, deleted, created_at, updated_at
		FROM account WHERE id = $1 AND NOT deleted`

	return r.scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetAccountByUsername(ctx context.Context, username string) (*contentflow.Account, error) {
	query := `
		SELECT id, username, email, password_hash, role, password_changed, deleted, created_at, updated_at
		FROM account WHERE username = $1 AND NOT deleted`

	return r.scanAccount(r.db.QueryRow(ctx, query, username))
}

func (r *Repository) scanAccount(row pgx.Row) (*contentflow.Account, error) {
	var account contentflow.Account
	err := row.Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.Role, &account.PasswordChanged, &account.Deleted,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contentflow.ErrAccountNotFound
		}
		return nil, r.handlePostgresError("get account", err)
	}
	return &account, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, account *contentflow.Account) error {
	query := `
		UPDATE account SET
			email = $2, password_hash = $3, role = $4, password_changed = $5,
			deleted = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Role,
		account.PasswordChanged, account.Deleted, account.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return contentflow.ErrAccountNotFound
	}
	return nil
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *contentflow.Content) error {
	query := `
		INSERT INTO content (
			uid, account_id, filename, file_key, status,
			total_records, success_records, error_records,
			deleted, created_at, uploaded_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		content.UID, content.AccountID, content.Filename, content.FileKey, content.Status,
		content.TotalRecords, content.SuccessRecords, content.ErrorRecords,
		content.Deleted, content.CreatedAt, content.UploadedAt, content.UpdatedAt).
		Scan(&content.ID)
	if err != nil {
		return r.handlePostgresError("create content", err)
	}
	return nil
}

const contentColumns = `
	id, uid, account_id, filename, file_key, status,
	total_records, success_records, error_records,
	deleted, created_at, uploaded_at, updated_at`

func (r *Repository) GetContent(ctx context.Context, accountID, id int64) (*contentflow.Content, error) {
	query := `SELECT ` + contentColumns + `
		FROM content WHERE id = $1 AND account_id = $2 AND NOT deleted`

	return r.scanContent(r.db.QueryRow(ctx, query, id, accountID))
}

func (r *Repository) GetContentByUID(ctx context.Context, accountID int64, uid string) (*contentflow.Content, error) {
	query := `SELECT ` + contentColumns + `
		FROM content WHERE uid = $1 AND account_id = $2 AND NOT deleted`

	return r.scanContent(r.db.QueryRow(ctx, query, uid, accountID))
}

func (r *Repository) scanContent(row pgx.Row) (*contentflow.Content, error) {
	var content contentflow.Content
	err := row.Scan(
		&content.ID, &content.UID, &content.AccountID, &content.Filename,
		&content.FileKey, &content.Status,
		&content.TotalRecords, &content.SuccessRecords, &content.ErrorRecords,
		&content.Deleted, &content.CreatedAt, &content.UploadedAt, &content.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contentflow.ErrContentNotFound
		}
		return nil, r.handlePostgresError("get content", err)
	}
	return &content, nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *contentflow.Content) error {
	query := `
		UPDATE content SET
			filename = $2, file_key = $3, status = $4,
			total_records = $5, success_records = $6, error_records = $7,
			deleted = $8, uploaded_at = $9, updated_at = $10
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		content.ID, content.Filename, content.FileKey, content.Status,
		content.TotalRecords, content.SuccessRecords, content.ErrorRecords,
		content.Deleted, content.UploadedAt, content.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update content", err)
	}
	if tag.RowsAffected() == 0 {
		return contentflow.ErrContentNotFound
	}
	return nil
}

func (r *Repository) ListContent(ctx context.Context, accountID int64) ([]*contentflow.Content, error) {
	query := `SELECT ` + contentColumns + `
		FROM content WHERE account_id = $1 AND NOT deleted
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	defer rows.Close()

	var contents []*contentflow.Content
	for rows.Next() {
		var content contentflow.Content
		err := rows.Scan(
			&content.ID, &content.UID, &content.AccountID, &content.Filename,
			&content.FileKey, &content.Status,
			&content.TotalRecords, &content.SuccessRecords, &content.ErrorRecords,
			&content.Deleted, &content.CreatedAt, &content.UploadedAt, &content.UpdatedAt)
		if err != nil {
			return nil, r.handlePostgresError("list content", err)
		}
		contents = append(contents, &content)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	return contents, nil
}

func (r *Repository) CountContentByStatus(ctx context.Context, accountID int64) (*contentflow.StatusSummary, error) {
	query := `
		SELECT status, COUNT(*) FROM content
		WHERE account_id = $1 AND NOT deleted
		GROUP BY status`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, r.handlePostgresError("count content", err)
	}
	defer rows.Close()

	summary := &contentflow.StatusSummary{}
	for rows.Next() {
		var status contentflow.ContentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, r.handlePostgresError("count content", err)
		}
		summary.Total += count
		switch status {
		case contentflow.ContentStatusSuccess:
			summary.Success = count
		case contentflow.ContentStatusError:
			summary.Error = count
		case contentflow.ContentStatusProcessing:
			summary.Processing = count
		case contentflow.ContentStatusUploading:
			summary.Uploading = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("count content", err)
	}
	return summary, nil
}

// Token revocation operations

func (r *Repository) RevokeToken(ctx context.Context, token string, revokedAt time.Time) error {
	query := `
		INSERT INTO revoked_token (token, revoked_at)
		VALUES ($1, $2)
		ON CONFLICT (token) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, token, revokedAt); err != nil {
		return r.handlePostgresError("revoke token", err)
	}
	return nil
}

func (r *Repository) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_token WHERE token = $1)`

	var revoked bool
	if err := r.db.QueryRow(ctx, query, token).Scan(&revoked); err != nil {
		return false, r.handlePostgresError("check revoked token", err)
	}
	return revoked, nil
}
