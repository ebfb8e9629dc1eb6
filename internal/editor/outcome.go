package editor

import (
	"context"
	"errors"

	"github.com/nmsalvatore/go-blog/internal/post"
)

type OutcomeKind uint8

const (
	Succeeded OutcomeKind = iota
	Failed
	ValidationFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case ValidationFailed:
		return "validation_error"
	}
	return "unknown"
}

// Outcome is what an operator-facing layer shows after an explicit action.
type Outcome struct {
	Kind   OutcomeKind
	Field  string
	Reason string
}

func (o Outcome) OK() bool {
	return o.Kind == Succeeded
}

// OutcomeOf classifies the error returned by a Workflow call.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{Kind: Succeeded}
	}

	var ve *post.ValidationError
	switch {
	case errors.As(err, &ve):
		return Outcome{Kind: ValidationFailed, Field: ve.Field, Reason: ve.Reason}
	case errors.Is(err, post.ErrForbidden):
		return Outcome{Kind: Failed, Reason: "You do not have permission to edit this post"}
	case errors.Is(err, post.ErrNotFound):
		return Outcome{Kind: Failed, Reason: "Post not found"}
	case errors.Is(err, post.ErrUnauthenticated), errors.Is(err, post.ErrIdentityPending):
		return Outcome{Kind: Failed, Reason: "Please sign in again"}
	case errors.Is(err, ErrNotSaved):
		return Outcome{Kind: Failed, Reason: "Please save your draft first"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Outcome{Kind: Failed, Reason: "The request was cancelled"}
	}
	return Outcome{Kind: Failed, Reason: err.Error()}
}
