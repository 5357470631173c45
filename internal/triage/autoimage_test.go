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

type fakeImageClient struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeImageClient) GenerateImage(ctx context.Context, personaNum int, commentID, text string, dc ports.DraftContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, commentID)
	if f.fail[commentID] {
		return &domain.StatusError{Code: 500, Body: "boom"}
	}
	return nil
}

func (f *fakeImageClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memDedupStore struct {
	mu   sync.Mutex
	done map[string]bool
}

func newMemDedupStore() *memDedupStore {
	return &memDedupStore{done: make(map[string]bool)}
}

func (s *memDedupStore) IsDone(ctx context.Context, commentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[commentID], nil
}

func (s *memDedupStore) MarkDone(ctx context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[commentID] = true
	return nil
}

func (s *memDedupStore) Close() error { return nil }

func overviewWith(comments ...domain.Comment) []domain.PersonaOverview {
	return []domain.PersonaOverview{{
		PersonaNum: 1,
		Name:       "테스트 페르소나",
		Items: []domain.MediaItem{{
			ID:           "m1",
			Caption:      "바닷가에서",
			ThumbnailURL: "https://cdn.example.com/t.jpg",
			Comments:     comments,
		}},
	}}
}

func TestAutoImageTriggersForMediaRequest(t *testing.T) {
	images := &fakeImageClient{}
	store := newMemDedupStore()
	trigger := NewAutoImageTrigger(AutoImageConfig{Enabled: true}, images, store, zap.NewNop())

	trigger.Scan(context.Background(), overviewWith(domain.Comment{ID: "c1", Text: "사진 만들어줘"}))
	trigger.Wait()

	st, ok := trigger.Status("c1")
	require.True(t, ok)
	assert.Equal(t, domain.AutoImageDone, st)
	assert.Equal(t, 1, images.callCount())

	done, err := store.IsDone(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestAutoImageSkipsPlainComments(t *testing.T) {
	images := &fakeImageClient{}
	trigger := NewAutoImageTrigger(AutoImageConfig{Enabled: true}, images, newMemDedupStore(), zap.NewNop())

	trigger.Scan(context.Background(), overviewWith(domain.Comment{ID: "c1", Text: "너무 멋져요!"}))
	trigger.Wait()

	_, ok := trigger.Status("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, images.callCount())
}

func TestAutoImageNeverFiresTwicePerProcess(t *testing.T) {
	images := &fakeImageClient{}
	trigger := NewAutoImageTrigger(AutoImageConfig{Enabled: true}, images, newMemDedupStore(), zap.NewNop())
	snapshot := overviewWith(domain.Comment{ID: "c1", Text: "그림 그려줘"})

	// Rescans before and after the request resolves must not re-fire.
	trigger.Scan(context.Background(), snapshot)
	trigger.Scan(context.Background(), snapshot)
	trigger.Wait()
	trigger.Scan(context.Background(), snapshot)
	trigger.Wait()

	assert.Equal(t, 1, images.callCount())
}

func TestAutoImageReconcilesFromDedupStore(t *testing.T) {
	images := &fakeImageClient{}
	store := newMemDedupStore()
	require.NoError(t, store.MarkDone(context.Background(), "c1"))
	trigger := NewAutoImageTrigger(AutoImageConfig{Enabled: true}, images, store, zap.NewNop())

	trigger.Scan(context.Background(), overviewWith(domain.Comment{ID: "c1", Text: "이미지 부탁해"}))
	trigger.Wait()

	st, ok := trigger.Status("c1")
	require.True(t, ok)
	assert.Equal(t, domain.AutoImageDone, st)
	assert.Equal(t, 0, images.callCount(), "previously generated comments must not re-trigger")
}

func TestAutoImageFailureIsNotPersisted(t *testing.T) {
	images := &fakeImageClient{fail: map[string]bool{"c1": true}}
	store := newMemDedupStore()
	trigger := NewAutoImageTrigger(AutoImageConfig{Enabled: true}, images, store, zap.NewNop())
	snapshot := overviewWith(domain.Comment{ID: "c1", Text: "사진 생성해줘"})

	trigger.Scan(context.Background(), snapshot)
	trigger.Wait()

	st, _ := trigger.Status("c1")
	assert.Equal(t, domain.AutoImageFailed, st)
	done, _ := store.IsDone(context.Background(), "c1")
	assert.False(t, done)

	// Default policy: the sent set still blocks re-entry for this process.
	trigger.Scan(context.Background(), snapshot)
	trigger.Wait()
	assert.Equal(t, 1, images.callCount())
}

func TestAutoImageRetryFailedPolicy(t *testing.T) {
	images := &fakeImageClient{fail: map[string]bool{"c1": true}}
	trigger := NewAutoImageTrigger(AutoImageConfig{Enabled: true, RetryFailed: true}, images, newMemDedupStore(), zap.NewNop())
	snapshot := overviewWith(domain.Comment{ID: "c1", Text: "사진 생성해줘"})

	trigger.Scan(context.Background(), snapshot)
	trigger.Wait()
	trigger.Scan(context.Background(), snapshot)
	trigger.Wait()

	assert.Equal(t, 2, images.callCount())
}

func TestAutoImageDisabled(t *testing.T) {
	images := &fakeImageClient{}
	trigger := NewAutoImageTrigger(AutoImageConfig{Enabled: false}, images, newMemDedupStore(), zap.NewNop())

	trigger.Scan(context.Background(), overviewWith(domain.Comment{ID: "c1", Text: "사진 만들어줘"}))
	trigger.Wait()

	assert.Equal(t, 0, images.callCount())
}
