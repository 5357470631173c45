package domain

import "time"

// PersonaOverview is one managed account with its published media and the
// comments waiting for triage. Snapshots are immutable: a refresh replaces
// the whole slice, nothing patches it in place.
type PersonaOverview struct {
	PersonaNum int
	Name       string
	Img        string
	IGUsername string
	Items      []MediaItem
}

// MediaItem is a single published post with its comment thread.
type MediaItem struct {
	ID           string
	Caption      string
	ThumbnailURL string
	MediaURL     string
	Permalink    string
	Timestamp    time.Time
	Comments     []Comment
}

// Comment as received from the platform. Never edited by the engine.
type Comment struct {
	ID        string
	Username  string
	Text      string
	Timestamp time.Time
}

// PostImage returns the best-effort image URL for the post the comment sits
// under: thumbnail first, media URL as fallback.
func (m MediaItem) PostImage() string {
	if m.ThumbnailURL != "" {
		return m.ThumbnailURL
	}
	return m.MediaURL
}

// AutoImageState tracks one comment's generation request.
type AutoImageState string

const (
	AutoImageLoading AutoImageState = "loading"
	AutoImageDone    AutoImageState = "done"
	AutoImageFailed  AutoImageState = "failed"
)

// EntryStatus is the per-entry state inside a bulk job.
type EntryStatus string

const (
	EntryDrafting EntryStatus = "drafting"
	EntryReady    EntryStatus = "ready"
	EntryError    EntryStatus = "error"
	EntryPosting  EntryStatus = "posting"
	EntryDone     EntryStatus = "done"
)

// DraftEntry is one comment inside a bulk job.
type DraftEntry struct {
	CommentID string
	Text      string
	Media     MediaItem
	Reply     string
	Status    EntryStatus
	Err       string
}

// BulkJob holds every draft entry for one persona, in snapshot order.
type BulkJob struct {
	ID         string
	PersonaNum int
	Entries    []DraftEntry
	Posting    bool
}

// SingleDraft is a drafted reply awaiting operator confirmation.
type SingleDraft struct {
	PersonaNum int
	CommentID  string
	Reply      string
	Posting    bool
}

// BulkReplyItem is one {comment, message} pair of a batch reply request.
type BulkReplyItem struct {
	CommentID string
	Message   string
}

// BulkReplyResult is the per-item outcome reported by the batch endpoint.
type BulkReplyResult struct {
	CommentID string
	OK        bool
	Status    int
	Err       string
}
