package triage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/chani337/selfstar/internal/core/domain"
	"github.com/chani337/selfstar/internal/core/ports"
)

// SingleState is the single-draft workflow state.
type SingleState string

const (
	SingleIdle       SingleState = "idle"
	SingleDrafting   SingleState = "drafting"
	SinglePreviewing SingleState = "previewing"
	SinglePosting    SingleState = "posting"
)

var (
	ErrDraftInProgress = errors.New("draft already in progress")
	ErrNoDraft         = errors.New("no draft to act on")
	ErrPostingInFlight = errors.New("post request in flight")
)

// SingleWorkflow drafts one reply at a time: draft, operator review, then
// confirm or cancel. Only one draft exists at any moment; a cancelled draft's
// late network response is dropped by generation tag.
type SingleWorkflow struct {
	drafts   ports.DraftClient
	replies  ports.ReplyClient
	health   *AIHealth
	onPosted func()
	log      *zap.Logger

	mu    sync.Mutex
	state SingleState
	draft *domain.SingleDraft
	gen   uint64
}

func NewSingleWorkflow(drafts ports.DraftClient, replies ports.ReplyClient, health *AIHealth, onPosted func(), log *zap.Logger) *SingleWorkflow {
	return &SingleWorkflow{
		drafts:   drafts,
		replies:  replies,
		health:   health,
		onPosted: onPosted,
		log:      log,
		state:    SingleIdle,
	}
}

// RequestDraft asks the AI for a reply to one comment. On success the
// workflow holds the draft for review; on any failure it returns to idle.
// While the drafting service is marked unavailable the request is refused
// locally, without a network call.
func (w *SingleWorkflow) RequestDraft(ctx context.Context, personaNum int, commentID, text string, media domain.MediaItem) error {
	w.mu.Lock()
	if w.state != SingleIdle {
		w.mu.Unlock()
		return ErrDraftInProgress
	}
	if !w.health.Available() {
		w.mu.Unlock()
		return domain.ErrAIUnavailable
	}
	w.state = SingleDrafting
	w.gen++
	myGen := w.gen
	w.mu.Unlock()

	dc := ports.DraftContext{PostImage: media.PostImage(), PostCaption: media.Caption}
	reply, err := w.drafts.DraftReply(ctx, personaNum, text, dc)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != myGen {
		// Cancelled while the call was in flight; drop the late response.
		return nil
	}
	if err != nil {
		if errors.Is(err, domain.ErrAIUnavailable) {
			w.health.MarkDown()
		}
		w.state = SingleIdle
		return err
	}
	if strings.TrimSpace(reply) == "" {
		w.state = SingleIdle
		return domain.ErrEmptyReply
	}

	w.health.MarkUp()
	w.state = SinglePreviewing
	w.draft = &domain.SingleDraft{PersonaNum: personaNum, CommentID: commentID, Reply: reply}
	return nil
}

// Confirm posts the held draft. On success the draft is discarded and the
// overview refresh hook fires; on failure the draft stays for retry.
func (w *SingleWorkflow) Confirm(ctx context.Context) error {
	w.mu.Lock()
	if w.state != SinglePreviewing || w.draft == nil {
		w.mu.Unlock()
		return ErrNoDraft
	}
	w.state = SinglePosting
	w.draft.Posting = true
	d := *w.draft
	myGen := w.gen
	w.mu.Unlock()

	err := w.replies.Reply(ctx, d.PersonaNum, d.CommentID, d.Reply)

	w.mu.Lock()
	if w.gen != myGen {
		w.mu.Unlock()
		return nil
	}
	if err != nil {
		w.log.Warn("reply post failed", zap.String("comment_id", d.CommentID), zap.Error(err))
		w.state = SinglePreviewing
		w.draft.Posting = false
		w.mu.Unlock()
		return err
	}
	w.state = SingleIdle
	w.draft = nil
	w.mu.Unlock()

	if w.onPosted != nil {
		w.onPosted()
	}
	return nil
}

// Cancel discards the draft unconditionally. Refused only while a post
// request is in flight; an in-flight draft call is abandoned, not awaited.
func (w *SingleWorkflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == SinglePosting {
		return ErrPostingInFlight
	}
	w.state = SingleIdle
	w.draft = nil
	w.gen++
	return nil
}

func (w *SingleWorkflow) State() SingleState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Draft returns a copy of the held draft, if any.
func (w *SingleWorkflow) Draft() (domain.SingleDraft, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft == nil {
		return domain.SingleDraft{}, false
	}
	return *w.draft, true
}
