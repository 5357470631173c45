package triage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chani337/selfstar/internal/core/domain"
	"github.com/chani337/selfstar/internal/core/ports"
)

type bulkRecorder struct {
	mu   sync.Mutex
	last map[string]domain.DraftEntry
}

func newBulkRecorder() *bulkRecorder {
	return &bulkRecorder{last: make(map[string]domain.DraftEntry)}
}

func (r *bulkRecorder) observe(jobID string, index int, entry domain.DraftEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[entry.CommentID] = entry
}

func (r *bulkRecorder) entry(commentID string) domain.DraftEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[commentID]
}

func bulkPersona(texts ...string) domain.PersonaOverview {
	p := domain.PersonaOverview{PersonaNum: 3, Name: "여행 페르소나"}
	m := domain.MediaItem{ID: "m1", Caption: "제주 바다"}
	for i, text := range texts {
		m.Comments = append(m.Comments, domain.Comment{ID: commentID(i), Text: text})
	}
	p.Items = append(p.Items, m)
	return p
}

func commentID(i int) string {
	return string(rune('a'+i)) + "1"
}

func TestStartBulkWithoutComments(t *testing.T) {
	b := NewBulkWorkflow(&scriptedDrafter{}, &fakeReplyClient{}, NewAIHealth(), nil, nil, zap.NewNop())

	_, err := b.StartBulk(context.Background(), domain.PersonaOverview{PersonaNum: 3})
	assert.ErrorIs(t, err, domain.ErrNothingToDraft)

	_, ok := b.Job()
	assert.False(t, ok, "a failed start must not leave a job behind")
}

func TestStartBulkDraftsSequentiallyInSnapshotOrder(t *testing.T) {
	drafts := &orderedDrafter{replies: map[string]string{
		"첫번째": "반가워요", "두번째": "고마워요", "세번째": "또 봐요",
	}}
	b := NewBulkWorkflow(drafts, &fakeReplyClient{}, NewAIHealth(), nil, nil, zap.NewNop())

	_, err := b.StartBulk(context.Background(), bulkPersona("첫번째", "두번째", "세번째"))
	require.NoError(t, err)

	assert.Equal(t, []string{"첫번째", "두번째", "세번째"}, drafts.order)

	job, ok := b.Job()
	require.True(t, ok)
	require.Len(t, job.Entries, 3)
	for _, e := range job.Entries {
		assert.Equal(t, domain.EntryReady, e.Status)
		assert.NotEmpty(t, e.Reply)
	}
}

func TestBulkMiddleEntryFailure(t *testing.T) {
	drafts := &scriptedDrafter{script: []draftResult{
		{reply: "반가워요"},
		{err: &domain.StatusError{Code: 500, Body: "draft blew up"}},
		{reply: "또 봐요"},
	}}
	replies := &fakeReplyClient{bulkResults: []domain.BulkReplyResult{
		{CommentID: "a1", OK: true, Status: 200},
		{CommentID: "c1", OK: true, Status: 200},
	}}
	rec := newBulkRecorder()
	finished := false
	b := NewBulkWorkflow(drafts, replies, NewAIHealth(), func() { finished = true }, rec.observe, zap.NewNop())

	_, err := b.StartBulk(context.Background(), bulkPersona("하나", "둘", "셋"))
	require.NoError(t, err)

	job, ok := b.Job()
	require.True(t, ok)
	assert.Equal(t, domain.EntryReady, job.Entries[0].Status)
	assert.Equal(t, domain.EntryError, job.Entries[1].Status)
	assert.NotEmpty(t, job.Entries[1].Err)
	assert.Equal(t, domain.EntryReady, job.Entries[2].Status)

	require.NoError(t, b.ConfirmBulk(context.Background()))

	// Only the ready entries went out; the errored one was excluded.
	require.Len(t, replies.bulkCalls, 1)
	assert.Equal(t, []domain.BulkReplyItem{
		{CommentID: "a1", Message: "반가워요"},
		{CommentID: "c1", Message: "또 봐요"},
	}, replies.bulkCalls[0])

	assert.Equal(t, domain.EntryDone, rec.entry("a1").Status)
	assert.Equal(t, domain.EntryError, rec.entry("b1").Status)
	assert.Equal(t, domain.EntryDone, rec.entry("c1").Status)
	assert.True(t, finished, "completion must trigger a refresh")

	_, ok = b.Job()
	assert.False(t, ok, "job is discarded after completion")
}

func TestBulkReconciliationLeavesUncoveredEntriesUnresolved(t *testing.T) {
	drafts := &scriptedDrafter{script: []draftResult{{reply: "답글1"}, {reply: "답글2"}}}
	replies := &fakeReplyClient{bulkResults: []domain.BulkReplyResult{
		{CommentID: "a1", OK: true, Status: 200},
		// b1 missing from the response on purpose.
	}}
	rec := newBulkRecorder()
	b := NewBulkWorkflow(drafts, replies, NewAIHealth(), nil, rec.observe, zap.NewNop())

	_, err := b.StartBulk(context.Background(), bulkPersona("하나", "둘"))
	require.NoError(t, err)
	require.NoError(t, b.ConfirmBulk(context.Background()))

	assert.Equal(t, domain.EntryDone, rec.entry("a1").Status)
	assert.Equal(t, domain.EntryPosting, rec.entry("b1").Status,
		"an entry without a matching result must not be invented an outcome")
}

func TestBulkReconciliationMapsFailuresByCommentID(t *testing.T) {
	drafts := &scriptedDrafter{script: []draftResult{{reply: "답글1"}, {reply: "답글2"}}}
	replies := &fakeReplyClient{bulkResults: []domain.BulkReplyResult{
		{CommentID: "a1", OK: true, Status: 200},
		{CommentID: "b1", OK: false, Status: 401, Err: "persona_oauth_required"},
	}}
	rec := newBulkRecorder()
	b := NewBulkWorkflow(drafts, replies, NewAIHealth(), nil, rec.observe, zap.NewNop())

	_, err := b.StartBulk(context.Background(), bulkPersona("하나", "둘"))
	require.NoError(t, err)
	require.NoError(t, b.ConfirmBulk(context.Background()))

	assert.Equal(t, domain.EntryDone, rec.entry("a1").Status)
	failed := rec.entry("b1")
	assert.Equal(t, domain.EntryError, failed.Status)
	assert.Equal(t, "persona_oauth_required", failed.Err)
}

func TestBulkTransportFailureResolvesEveryPostingEntry(t *testing.T) {
	drafts := &scriptedDrafter{script: []draftResult{{reply: "답글1"}, {reply: "답글2"}}}
	replies := &fakeReplyClient{bulkErr: &domain.StatusError{Code: 503, Body: "gateway down"}}
	rec := newBulkRecorder()
	finished := false
	b := NewBulkWorkflow(drafts, replies, NewAIHealth(), func() { finished = true }, rec.observe, zap.NewNop())

	_, err := b.StartBulk(context.Background(), bulkPersona("하나", "둘"))
	require.NoError(t, err)

	err = b.ConfirmBulk(context.Background())
	assert.Error(t, err)

	for _, id := range []string{"a1", "b1"} {
		e := rec.entry(id)
		assert.Equal(t, domain.EntryError, e.Status, "no entry may stay stuck in posting")
		assert.NotEmpty(t, e.Err)
	}
	assert.True(t, finished)
}

func TestConfirmBulkWithNothingReady(t *testing.T) {
	drafts := &scriptedDrafter{script: []draftResult{{err: &domain.StatusError{Code: 500}}}}
	b := NewBulkWorkflow(drafts, &fakeReplyClient{}, NewAIHealth(), nil, nil, zap.NewNop())

	_, err := b.StartBulk(context.Background(), bulkPersona("하나"))
	require.NoError(t, err)

	assert.ErrorIs(t, b.ConfirmBulk(context.Background()), ErrNothingReady)
	_, ok := b.Job()
	assert.True(t, ok, "the job stays for the operator to cancel")

	b.CancelBulk()
	_, ok = b.Job()
	assert.False(t, ok)
}

func TestStartBulkRefusedWhileUnavailable(t *testing.T) {
	health := NewAIHealth()
	health.MarkDown()
	drafts := &scriptedDrafter{}
	b := NewBulkWorkflow(drafts, &fakeReplyClient{}, health, nil, nil, zap.NewNop())

	_, err := b.StartBulk(context.Background(), bulkPersona("하나"))
	assert.ErrorIs(t, err, domain.ErrAIUnavailable)
	assert.Equal(t, 0, drafts.callCount())
}

func TestStartBulkRefusedWhileJobActive(t *testing.T) {
	drafts := &scriptedDrafter{script: []draftResult{{err: &domain.StatusError{Code: 500}}}}
	b := NewBulkWorkflow(drafts, &fakeReplyClient{}, NewAIHealth(), nil, nil, zap.NewNop())

	_, err := b.StartBulk(context.Background(), bulkPersona("하나"))
	require.NoError(t, err)

	_, err = b.StartBulk(context.Background(), bulkPersona("둘"))
	assert.ErrorIs(t, err, ErrBulkInProgress)
}

// orderedDrafter records the order of texts it was asked to draft and fails
// the test if two drafts ever overlap.
type orderedDrafter struct {
	mu       sync.Mutex
	inFlight int
	order    []string
	replies  map[string]string
}

func (d *orderedDrafter) DraftReply(ctx context.Context, personaNum int, text string, dc ports.DraftContext) (string, error) {
	d.mu.Lock()
	d.inFlight++
	overlap := d.inFlight > 1
	d.order = append(d.order, text)
	d.mu.Unlock()

	if overlap {
		panic("concurrent draft calls")
	}

	d.mu.Lock()
	d.inFlight--
	reply := d.replies[text]
	d.mu.Unlock()
	return reply, nil
}
