package response

var (
	ErrInvalidRequestFormat = ErrorResponse{
		Status:  "error",
		Error:   "invalid_request",
		Details: "Invalid request format",
	}

	ErrAuthenticationRequired = ErrorResponse{
		Status:  "error",
		Error:   "authentication_required",
		Details: "Bearer token required",
	}

	ErrInvalidToken = ErrorResponse{
		Status:  "error",
		Error:   "invalid_token",
		Details: "Token is invalid or expired",
	}

	ErrInvalidID = ErrorResponse{
		Status:  "error",
		Error:   "invalid_id",
		Details: "Invalid identifier format",
	}

	ErrPermissionDenied = ErrorResponse{
		Status:  "error",
		Error:   "permission_denied",
		Details: "Access to the asset source was denied",
	}

	ErrQuotaExceeded = ErrorResponse{
		Status: "error",
		Error:  "quota_exceeded",
	}

	ErrInvalidAsset = ErrorResponse{
		Status: "error",
		Error:  "invalid_asset",
	}

	ErrEmptyPending = ErrorResponse{
		Status:  "error",
		Error:   "empty_pending",
		Details: "There are no pending assets to commit",
	}

	ErrTransferInProgress = ErrorResponse{
		Status:  "error",
		Error:   "transfer_in_progress",
		Details: "A transfer is already running",
	}

	ErrTransferFailed = ErrorResponse{
		Status: "error",
		Error:  "transfer_failed",
	}

	ErrPhotoNotFound = ErrorResponse{
		Status:  "error",
		Error:   "photo_not_found",
		Details: "Photo not found",
	}

	ErrDuplicatePhoto = ErrorResponse{
		Status: "error",
		Error:  "duplicate_photo",
	}

	ErrFileTooLarge = ErrorResponse{
		Status:  "error",
		Error:   "file_too_large",
		Details: "File size exceeds limit",
	}

	ErrInternal = ErrorResponse{
		Status:  "error",
		Error:   "internal_error",
		Details: "Internal server error",
	}
)
