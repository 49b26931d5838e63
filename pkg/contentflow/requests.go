package contentflow

// CreateContentRequest contains parameters for registering a new upload.
type CreateContentRequest struct {
	AccountID int64
	Filename  string
}

// UpdateContentRequest contains parameters for updating content metadata.
type UpdateContentRequest struct {
	AccountID int64
	UID       string
	Filename  string
}

// ApplyResultRequest carries a processing outcome reported by a worker.
type ApplyResultRequest struct {
	AccountID int64
	ContentID int64
	Result    ProcessResult
}

// RegisterAccountRequest contains parameters for creating an account.
type RegisterAccountRequest struct {
	Username string
	Email    string
	Password string
	Role     Role
}

// ChangePasswordRequest contains parameters for rotating a password.
type ChangePasswordRequest struct {
	Username    string
	Password    string
	NewPassword string
}
