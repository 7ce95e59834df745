package domain

import "errors"

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrRenderFailure    = errors.New("processing failed")
	ErrStorage          = errors.New("storage failure")
)

// PermissionError carries the action-specific denial message. Preview and
// download denials read differently to the caller, so the message is part
// of the contract rather than a log detail.
type PermissionError struct {
	Action  string // "preview" or "download"
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

// Is allows errors.Is() to match against ErrPermissionDenied
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string
	ResourceType string // "document" or "folder"
	ResourceID   int64
}

func (e *ConflictError) Error() string { return e.Message }

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
