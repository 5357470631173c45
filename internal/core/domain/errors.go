package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy of the triage engine. Collaborator adapters translate raw
// HTTP outcomes into these so the workflows never inspect status codes.
var (
	// ErrAuthRequired maps any 401 from any collaborator. The operator has
	// to sign in again; nothing retries on its own.
	ErrAuthRequired = errors.New("auth required")

	// ErrAIUnavailable maps a 502 from the draft endpoint. It flips the
	// sticky unavailable flag on the single-draft workflow.
	ErrAIUnavailable = errors.New("ai service unavailable")

	// ErrEmptyReply means the AI answered with nothing usable.
	ErrEmptyReply = errors.New("empty reply generated")

	// ErrNothingToDraft means a bulk job was requested for a persona with
	// zero comments.
	ErrNothingToDraft = errors.New("nothing to draft")
)

// StatusError carries a non-2xx HTTP outcome that is neither 401 nor 502.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}
