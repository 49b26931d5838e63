package contentflow

import (
	"time"
)

// ContentStatus is the domain type for content lifecycle states.
type ContentStatus string

// Content status constants (typed).
const (
	ContentStatusUploading  ContentStatus = "uploading"
	ContentStatusProcessing ContentStatus = "processing"
	ContentStatusSuccess    ContentStatus = "success"
	ContentStatusError      ContentStatus = "error"
)

// IsValid returns true if the status is a known lifecycle state.
func (s ContentStatus) IsValid() bool {
	switch s {
	case ContentStatusUploading, ContentStatusProcessing, ContentStatusSuccess, ContentStatusError:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no transition out of the status exists.
func (s ContentStatus) IsTerminal() bool {
	switch s {
	case ContentStatusSuccess, ContentStatusError:
		return true
	case ContentStatusUploading, ContentStatusProcessing:
		return false
	default:
		return false
	}
}

// Role is the domain type for account roles carried inside tokens.
type Role string

// Role constants (typed).
const (
	RoleAdmin Role = "admin"
	RoleRobot Role = "robot"
	RoleUser  Role = "user"
)

// IsValid returns true if the role is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleRobot, RoleUser:
		return true
	default:
		return false
	}
}

// CanReportResults returns true for roles allowed to apply processing
// outcomes. Only worker-class callers may conclude a content lifecycle.
func (r Role) CanReportResults() bool {
	switch r {
	case RoleAdmin, RoleRobot:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

// Content represents one uploaded file and its processing outcome.
//
// UID is the externally exposed correlation identifier; ID stays internal.
// Record counts are nil until processing concludes. On success
// TotalRecords = SuccessRecords + ErrorRecords; on error all three may be
// absent.
type Content struct {
	ID             int64         `json:"id"`
	UID            string        `json:"content_id"`
	AccountID      int64         `json:"account_id"`
	Filename       string        `json:"filename"`
	FileKey        string        `json:"file_key,omitempty"`
	Status         ContentStatus `json:"status"`
	TotalRecords   *int          `json:"total_records,omitempty"`
	SuccessRecords *int          `json:"success_records,omitempty"`
	ErrorRecords   *int          `json:"error_records,omitempty"`
	Deleted        bool          `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
	UploadedAt     *time.Time    `json:"upload_at,omitempty"`
	UpdatedAt      time.Time     `json:"modified_at"`
}

// Account represents a service account allowed to log in.
type Account struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Role            Role      `json:"role"`
	PasswordChanged bool      `json:"-"`
	Deleted         bool      `json:"-"`
	CreatedAt       time.Time `json:"create_at"`
	UpdatedAt       time.Time `json:"modified_at"`
}

// Task is the immutable unit of work handed from producer to worker.
// Producer and consumer must agree on exactly these four fields; unknown
// fields are ignored on decode.
type Task struct {
	AccountID  int64  `json:"account_id"`
	ContentID  int64  `json:"content_id"`
	ContentUID string `json:"content_uuid"`
	File       string `json:"file"`
}

// ProcessResult is the summary returned by the external record processor.
// The counts are meaningful only when Status is ContentStatusSuccess.
type ProcessResult struct {
	Status         ContentStatus
	TotalRecords   int
	SuccessRecords int
	ErrorRecords   int
}

// StatusSummary holds per-status content counts for one account.
type StatusSummary struct {
	Total      int `json:"total_contents"`
	Success    int `json:"success_status"`
	Error      int `json:"error_status"`
	Processing int `json:"process_status"`
	Uploading  int `json:"uploading_status"`
}
