package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chani337/selfstar/internal/core/domain"
	"github.com/chani337/selfstar/internal/core/ports"
)

var (
	ErrBulkInProgress = errors.New("bulk job already active")
	ErrNoBulkJob      = errors.New("no bulk job to act on")
	ErrNothingReady   = errors.New("no entries ready to post")
)

// BulkObserver receives every entry status change, so observers see
// incremental progress instead of one final update.
type BulkObserver func(jobID string, index int, entry domain.DraftEntry)

// BulkWorkflow drafts a reply for every comment under one persona, lets the
// operator review the set, then posts the ready entries in one batch and
// reconciles the per-item results.
type BulkWorkflow struct {
	drafts     ports.DraftClient
	replies    ports.ReplyClient
	health     *AIHealth
	onFinished func()
	observer   BulkObserver
	log        *zap.Logger

	mu  sync.Mutex
	job *domain.BulkJob
}

func NewBulkWorkflow(drafts ports.DraftClient, replies ports.ReplyClient, health *AIHealth, onFinished func(), observer BulkObserver, log *zap.Logger) *BulkWorkflow {
	return &BulkWorkflow{
		drafts:     drafts,
		replies:    replies,
		health:     health,
		onFinished: onFinished,
		observer:   observer,
		log:        log,
	}
}

// transition is the single place an entry changes status. Anything outside
// the legal edges is rejected so the sequential and reconciliation
// invariants stay checkable here.
func transition(e *domain.DraftEntry, to domain.EntryStatus, errMsg string) error {
	legal := false
	switch e.Status {
	case domain.EntryDrafting:
		legal = to == domain.EntryReady || to == domain.EntryError
	case domain.EntryReady:
		legal = to == domain.EntryPosting
	case domain.EntryPosting:
		legal = to == domain.EntryDone || to == domain.EntryError
	}
	if !legal {
		return fmt.Errorf("illegal entry transition %s -> %s", e.Status, to)
	}
	e.Status = to
	e.Err = errMsg
	return nil
}

func (b *BulkWorkflow) publish(jobID string, index int, entry domain.DraftEntry) {
	if b.observer != nil {
		b.observer(jobID, index, entry)
	}
}

// StartBulk flattens every comment of the persona into draft entries, in
// snapshot order, then drafts them strictly one at a time. Each entry's
// outcome is published as soon as it is known. Returns the job id.
func (b *BulkWorkflow) StartBulk(ctx context.Context, persona domain.PersonaOverview) (string, error) {
	var entries []domain.DraftEntry
	for _, m := range persona.Items {
		for _, c := range m.Comments {
			entries = append(entries, domain.DraftEntry{
				CommentID: c.ID,
				Text:      c.Text,
				Media:     m,
				Status:    domain.EntryDrafting,
			})
		}
	}
	if len(entries) == 0 {
		return "", domain.ErrNothingToDraft
	}

	b.mu.Lock()
	if b.job != nil {
		b.mu.Unlock()
		return "", ErrBulkInProgress
	}
	if !b.health.Available() {
		b.mu.Unlock()
		return "", domain.ErrAIUnavailable
	}
	job := &domain.BulkJob{
		ID:         uuid.NewString(),
		PersonaNum: persona.PersonaNum,
		Entries:    entries,
	}
	b.job = job
	b.mu.Unlock()

	// Sequential by design: entry i+1 never starts before entry i resolved.
	for i := range entries {
		b.mu.Lock()
		if b.job != job {
			// Job was cancelled mid-draft; stop quietly.
			b.mu.Unlock()
			return job.ID, nil
		}
		e := job.Entries[i]
		b.mu.Unlock()

		dc := ports.DraftContext{PostImage: e.Media.PostImage(), PostCaption: e.Media.Caption}
		reply, err := b.drafts.DraftReply(ctx, persona.PersonaNum, e.Text, dc)

		b.mu.Lock()
		if b.job != job {
			b.mu.Unlock()
			return job.ID, nil
		}
		entry := &job.Entries[i]
		if err != nil {
			if errors.Is(err, domain.ErrAIUnavailable) {
				b.health.MarkDown()
			}
			if terr := transition(entry, domain.EntryError, err.Error()); terr != nil {
				b.log.Warn("bulk entry transition rejected", zap.Error(terr))
			}
		} else if strings.TrimSpace(reply) == "" {
			if terr := transition(entry, domain.EntryError, domain.ErrEmptyReply.Error()); terr != nil {
				b.log.Warn("bulk entry transition rejected", zap.Error(terr))
			}
		} else {
			b.health.MarkUp()
			entry.Reply = reply
			if terr := transition(entry, domain.EntryReady, ""); terr != nil {
				b.log.Warn("bulk entry transition rejected", zap.Error(terr))
			}
		}
		snapshot := *entry
		b.mu.Unlock()

		b.publish(job.ID, i, snapshot)
	}

	return job.ID, nil
}

// ConfirmBulk posts every ready entry in one batch request and maps the
// per-item results back by comment id. Error entries are left untouched.
func (b *BulkWorkflow) ConfirmBulk(ctx context.Context) error {
	b.mu.Lock()
	job := b.job
	if job == nil {
		b.mu.Unlock()
		return ErrNoBulkJob
	}
	if job.Posting {
		b.mu.Unlock()
		return ErrPostingInFlight
	}

	var items []domain.BulkReplyItem
	for i := range job.Entries {
		e := &job.Entries[i]
		if e.Status != domain.EntryReady {
			continue
		}
		if err := transition(e, domain.EntryPosting, ""); err != nil {
			b.log.Warn("bulk entry transition rejected", zap.Error(err))
			continue
		}
		items = append(items, domain.BulkReplyItem{CommentID: e.CommentID, Message: e.Reply})
		b.publish(job.ID, i, *e)
	}
	if len(items) == 0 {
		b.mu.Unlock()
		return ErrNothingReady
	}
	job.Posting = true
	personaNum := job.PersonaNum
	b.mu.Unlock()

	results, err := b.replies.ReplyBulk(ctx, personaNum, items)

	b.mu.Lock()
	if b.job != job {
		// Dismissed while posting; the late response is dropped.
		b.mu.Unlock()
		return nil
	}

	if err != nil {
		// No per-item results exist; nothing may stay stuck in posting.
		for i := range job.Entries {
			e := &job.Entries[i]
			if e.Status != domain.EntryPosting {
				continue
			}
			if terr := transition(e, domain.EntryError, err.Error()); terr != nil {
				b.log.Warn("bulk entry transition rejected", zap.Error(terr))
			}
			b.publish(job.ID, i, *e)
		}
	} else {
		byID := make(map[string]domain.BulkReplyResult, len(results))
		for _, r := range results {
			byID[r.CommentID] = r
		}
		for i := range job.Entries {
			e := &job.Entries[i]
			if e.Status != domain.EntryPosting {
				continue
			}
			res, ok := byID[e.CommentID]
			if !ok {
				// Should not happen under contract; leave unresolved
				// rather than inventing an outcome.
				b.log.Warn("bulk result missing for entry", zap.String("comment_id", e.CommentID))
				continue
			}
			if res.OK {
				if terr := transition(e, domain.EntryDone, ""); terr != nil {
					b.log.Warn("bulk entry transition rejected", zap.Error(terr))
				}
			} else {
				msg := res.Err
				if msg == "" {
					msg = fmt.Sprintf("http %d", res.Status)
				}
				if terr := transition(e, domain.EntryError, msg); terr != nil {
					b.log.Warn("bulk entry transition rejected", zap.Error(terr))
				}
			}
			b.publish(job.ID, i, *e)
		}
	}

	b.job = nil
	b.mu.Unlock()

	if b.onFinished != nil {
		b.onFinished()
	}
	return err
}

// CancelBulk discards the job. A response arriving afterwards is ignored.
func (b *BulkWorkflow) CancelBulk() {
	b.mu.Lock()
	b.job = nil
	b.mu.Unlock()
}

// Job returns a deep copy of the active job, if any.
func (b *BulkWorkflow) Job() (domain.BulkJob, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.job == nil {
		return domain.BulkJob{}, false
	}
	out := *b.job
	out.Entries = make([]domain.DraftEntry, len(b.job.Entries))
	copy(out.Entries, b.job.Entries)
	return out, true
}
