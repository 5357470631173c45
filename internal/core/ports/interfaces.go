package ports

import (
	"context"

	"github.com/chani337/selfstar/internal/core/domain"
)

// OverviewFilters narrows what the overview endpoint returns.
type OverviewFilters struct {
	MediaLimit    int
	CommentsLimit int
	ExcludeSeen   bool
}

// DraftContext is the post context handed to the AI alongside the comment.
type DraftContext struct {
	PostImage   string
	PostCaption string
}

type OverviewSource interface {
	FetchOverview(ctx context.Context, f OverviewFilters) ([]domain.PersonaOverview, error)
}

type DraftClient interface {
	// DraftReply returns the AI-generated reply text for one comment.
	DraftReply(ctx context.Context, personaNum int, text string, dc DraftContext) (string, error)
}

type ReplyClient interface {
	Reply(ctx context.Context, personaNum int, commentID, message string) error
	ReplyBulk(ctx context.Context, personaNum int, items []domain.BulkReplyItem) ([]domain.BulkReplyResult, error)
}

type ImageClient interface {
	// GenerateImage fires one generation request for a comment that asked
	// for media. The caller never awaits it from the snapshot pass.
	GenerateImage(ctx context.Context, personaNum int, commentID, text string, dc DraftContext) error
}

// DedupStore remembers which comments already got their image generated.
// MarkDone is permanent and idempotent; there is no eviction.
type DedupStore interface {
	IsDone(ctx context.Context, commentID string) (bool, error)
	MarkDone(ctx context.Context, commentID string) error
	Close() error
}

type UserAction string

const (
	ActionApprove    UserAction = "approve"
	ActionRegenerate UserAction = "regenerate"
	ActionSkip       UserAction = "skip"
)

type Interaction interface {
	Confirm(ctx context.Context, title, body string) (UserAction, error)
}
