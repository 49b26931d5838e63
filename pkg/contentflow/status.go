package contentflow

import "fmt"

// canReceiveFile checks if a file body may be attached to content in the
// given status. Only freshly created content accepts a file; every other
// state rejects a re-upload without mutating anything.
func canReceiveFile(status ContentStatus) (bool, error) {
	switch status {
	case ContentStatusUploading:
		return true, nil
	case ContentStatusProcessing:
		return false, fmt.Errorf("%w: file is already being processed (status: %s)", ErrInvalidTransition, status)
	case ContentStatusSuccess, ContentStatusError:
		return false, fmt.Errorf("%w: file was already processed (status: %s)", ErrInvalidTransition, status)
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, status)
	}
}

// canApplyResult checks if a processing outcome may be applied to content in
// the given status. Outcomes land only on content that is actually being
// processed; terminal states absorb nothing.
func canApplyResult(status ContentStatus) (bool, error) {
	switch status {
	case ContentStatusProcessing:
		return true, nil
	case ContentStatusUploading:
		return false, fmt.Errorf("%w: file has not been uploaded yet (status: %s)", ErrInvalidTransition, status)
	case ContentStatusSuccess, ContentStatusError:
		return false, fmt.Errorf("%w: result was already applied (status: %s)", ErrInvalidTransition, status)
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, status)
	}
}

// canDownloadFile checks if the stored file may be served back in the given
// status. The original bytes are only exposed once processing concluded.
func canDownloadFile(status ContentStatus) (bool, error) {
	switch status {
	case ContentStatusSuccess, ContentStatusError:
		return true, nil
	case ContentStatusUploading:
		return false, fmt.Errorf("%w: file has not been uploaded (status: %s)", ErrFileNotReady, status)
	case ContentStatusProcessing:
		return false, fmt.Errorf("%w: file is being processed (status: %s)", ErrFileNotReady, status)
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, status)
	}
}

// validateResult checks the count invariant of a processing outcome before
// it reaches storage. An error outcome carries no counts at all.
func validateResult(result ProcessResult) error {
	switch result.Status {
	case ContentStatusSuccess:
		if result.TotalRecords != result.SuccessRecords+result.ErrorRecords {
			return fmt.Errorf("%w: total %d != success %d + error %d",
				ErrInvalidResult, result.TotalRecords, result.SuccessRecords, result.ErrorRecords)
		}
		return nil
	case ContentStatusError:
		return nil
	case ContentStatusUploading, ContentStatusProcessing:
		return fmt.Errorf("%w: %s is not an outcome status", ErrInvalidResult, result.Status)
	default:
		return fmt.Errorf("%w: unknown status %s", ErrInvalidStatus, result.Status)
	}
}
