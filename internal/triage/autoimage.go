package triage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/chani337/selfstar/internal/core/domain"
	"github.com/chani337/selfstar/internal/core/ports"
)

// AutoImageConfig controls the trigger's behavior.
//
// RetryFailed decides what happens to a comment whose generation request
// failed: when false the comment stays in the sent set and is never re-fired
// for the rest of the process lifetime; when true it leaves the sent set so
// the next snapshot pass may try again. Failed comments are never written to
// the dedup store either way.
type AutoImageConfig struct {
	Enabled     bool
	RetryFailed bool
}

// AutoImageTrigger scans overview snapshots for comments that ask for
// generated media and fires best-effort generation requests. Requests are
// fire-and-forget: the scan never waits for them and a failing comment never
// stops the rest of the pass.
type AutoImageTrigger struct {
	cfg    AutoImageConfig
	images ports.ImageClient
	store  ports.DedupStore
	log    *zap.Logger

	mu     sync.Mutex
	sent   map[string]struct{}
	status map[string]domain.AutoImageState
	wg     sync.WaitGroup
}

func NewAutoImageTrigger(cfg AutoImageConfig, images ports.ImageClient, store ports.DedupStore, log *zap.Logger) *AutoImageTrigger {
	return &AutoImageTrigger{
		cfg:    cfg,
		images: images,
		store:  store,
		log:    log,
		sent:   make(map[string]struct{}),
		status: make(map[string]domain.AutoImageState),
	}
}

// Scan walks one snapshot in order and fires a generation request for every
// comment that looks like a media request and was not handled before.
func (t *AutoImageTrigger) Scan(ctx context.Context, personas []domain.PersonaOverview) {
	if !t.cfg.Enabled {
		return
	}
	for _, p := range personas {
		for _, m := range p.Items {
			for _, c := range m.Comments {
				t.consider(ctx, p.PersonaNum, m, c)
			}
		}
	}
}

func (t *AutoImageTrigger) consider(ctx context.Context, personaNum int, m domain.MediaItem, c domain.Comment) {
	if c.ID == "" {
		return
	}

	t.mu.Lock()
	_, dup := t.sent[c.ID]
	t.mu.Unlock()
	if dup {
		return
	}
	if !IsMediaRequest(c.Text) {
		return
	}

	done, err := t.store.IsDone(ctx, c.ID)
	if err != nil {
		t.log.Warn("dedup lookup failed", zap.String("comment_id", c.ID), zap.Error(err))
	}
	if done {
		// Generated in a previous run. Reconcile local state, no call.
		t.mu.Lock()
		t.sent[c.ID] = struct{}{}
		t.status[c.ID] = domain.AutoImageDone
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	t.sent[c.ID] = struct{}{}
	t.status[c.ID] = domain.AutoImageLoading
	t.mu.Unlock()

	dc := ports.DraftContext{PostImage: m.PostImage(), PostCaption: m.Caption}
	t.log.Debug("auto image trigger",
		zap.Int("persona", personaNum),
		zap.String("comment_id", c.ID),
		zap.String("text", c.Text))

	t.wg.Add(1)
	go t.fire(ctx, personaNum, c, dc)
}

func (t *AutoImageTrigger) fire(ctx context.Context, personaNum int, c domain.Comment, dc ports.DraftContext) {
	defer t.wg.Done()

	if err := t.images.GenerateImage(ctx, personaNum, c.ID, c.Text, dc); err != nil {
		t.log.Warn("auto image generation failed", zap.String("comment_id", c.ID), zap.Error(err))
		t.mu.Lock()
		t.status[c.ID] = domain.AutoImageFailed
		if t.cfg.RetryFailed {
			delete(t.sent, c.ID)
		}
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	t.status[c.ID] = domain.AutoImageDone
	t.mu.Unlock()

	if err := t.store.MarkDone(ctx, c.ID); err != nil {
		t.log.Warn("dedup mark failed", zap.String("comment_id", c.ID), zap.Error(err))
	}
}

// Status returns the local generation state for one comment.
func (t *AutoImageTrigger) Status(commentID string) (domain.AutoImageState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.status[commentID]
	return s, ok
}

// StatusSnapshot returns a copy of every tracked comment state.
func (t *AutoImageTrigger) StatusSnapshot() map[string]domain.AutoImageState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]domain.AutoImageState, len(t.status))
	for k, v := range t.status {
		out[k] = v
	}
	return out
}

// Wait blocks until every in-flight generation request has resolved.
func (t *AutoImageTrigger) Wait() {
	t.wg.Wait()
}
