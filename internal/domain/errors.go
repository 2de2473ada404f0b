package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrServiceUnavailable matches every collaborator failure via errors.Is.
var ErrServiceUnavailable = errors.New("service unavailable")

// FailureCategory is the normalized taxonomy for collaborator failures.
type FailureCategory string

const (
	FailureTimeout        FailureCategory = "timeout"
	FailureAuthentication FailureCategory = "authentication"
	FailureRateLimited    FailureCategory = "rate_limited"
	FailureOutage         FailureCategory = "provider_outage"
	FailureBadData        FailureCategory = "bad_data"
)

// Collaborator names used in errors, logs and metrics.
const (
	CollaboratorExtraction     = "document_extraction"
	CollaboratorTextGeneration = "text_generation"
)

// CollaboratorError is returned when a configured external service fails.
// It is distinct from a missing configuration, which never produces an error.
type CollaboratorError struct {
	Collaborator string
	Category     FailureCategory
	Message      string
	Underlying   error
}

func (e *CollaboratorError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Collaborator, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Collaborator, e.Category, e.Message)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Underlying
}

// Is makes every CollaboratorError match ErrServiceUnavailable.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

// NewCollaboratorError creates a categorized collaborator failure.
func NewCollaboratorError(collaborator string, category FailureCategory, message string, underlying error) *CollaboratorError {
	return &CollaboratorError{
		Collaborator: collaborator,
		Category:     category,
		Message:      message,
		Underlying:   underlying,
	}
}

// TransportError categorizes a failure that happened before any response arrived.
func TransportError(collaborator string, err error) *CollaboratorError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewCollaboratorError(collaborator, FailureTimeout, "request timed out", err)
	}
	return NewCollaboratorError(collaborator, FailureOutage, "request failed", err)
}

// StatusCategory maps an HTTP status returned by a collaborator to a category.
func StatusCategory(status int) FailureCategory {
	switch {
	case status == 401 || status == 403:
		return FailureAuthentication
	case status == 408:
		return FailureTimeout
	case status == 429:
		return FailureRateLimited
	case status >= 500:
		return FailureOutage
	default:
		return FailureBadData
	}
}

// FailureCategoryOf extracts the category of a collaborator failure.
// The second value is false when err is not a collaborator failure.
func FailureCategoryOf(err error) (FailureCategory, bool) {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.Category, true
	}
	return "", false
}
