package post

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("post not found")
	ErrForbidden       = errors.New("not permitted for this user")
	ErrUnauthenticated = errors.New("sign in required")
	ErrIdentityPending = errors.New("identity not yet resolved")
)

// ValidationError reports a field that failed validation before any
// storage call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err came from the storage boundary rather
// than from validation, authorization or lookup.
func IsTransient(err error) bool {
	if err == nil || IsValidation(err) {
		return false
	}
	for _, known := range []error{ErrNotFound, ErrForbidden, ErrUnauthenticated, ErrIdentityPending} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}

// ValidateDraft checks the fields required to save a draft.
func ValidateDraft(title string) error {
	if isBlank(title) {
		return &ValidationError{Field: "title", Reason: "Please enter a title for your post"}
	}
	return nil
}

// ValidatePublish checks the fields required to publish.
func ValidatePublish(title, content string) error {
	if err := ValidateDraft(title); err != nil {
		return err
	}
	if isBlank(content) {
		return &ValidationError{Field: "content", Reason: "Please enter some content for your post"}
	}
	return nil
}
