package instagram

// OverviewResponse is the payload of GET /api/instagram/comments/overview.
type OverviewResponse struct {
	OK       bool         `json:"ok"`
	Personas []ApiPersona `json:"personas"`
}

// ApiPersona represents one linked persona account as returned by the backend.
type ApiPersona struct {
	PersonaNum  int        `json:"persona_num"`
	PersonaName string     `json:"persona_name"`
	PersonaImg  string     `json:"persona_img"`
	IGUsername  string     `json:"ig_username"`
	Items       []ApiMedia `json:"items"`
}

// ApiMedia represents one published media with its comments.
type ApiMedia struct {
	ID           string       `json:"id"`
	Caption      string       `json:"caption"`
	ThumbnailURL string       `json:"thumbnail_url"`
	MediaURL     string       `json:"media_url"`
	Permalink    string       `json:"permalink"`
	Timestamp    string       `json:"timestamp"`
	Comments     []ApiComment `json:"comments"`
}

// ApiComment represents one comment on a media.
type ApiComment struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// AutoDraftRequest asks the AI for a reply draft without posting anything.
type AutoDraftRequest struct {
	PersonaNum int    `json:"persona_num"`
	Text       string `json:"text"`
	PostImg    string `json:"post_img,omitempty"`
	Post       string `json:"post,omitempty"`
}

type AutoDraftResponse struct {
	OK    bool   `json:"ok"`
	Reply string `json:"reply"`
}

// AutoImageRequest triggers image generation for a comment asking for media.
type AutoImageRequest struct {
	PersonaNum int    `json:"persona_num"`
	CommentID  string `json:"comment_id"`
	Text       string `json:"text"`
	PostImg    string `json:"post_img,omitempty"`
	Post       string `json:"post,omitempty"`
}

type ReplyRequest struct {
	PersonaNum int    `json:"persona_num"`
	CommentID  string `json:"comment_id"`
	Message    string `json:"message"`
}

type BulkReplyRequest struct {
	PersonaNum int             `json:"persona_num"`
	Items      []BulkReplyItem `json:"items"`
}

type BulkReplyItem struct {
	CommentID string `json:"comment_id"`
	Message   string `json:"message"`
}

type BulkReplyResponse struct {
	OK      bool             `json:"ok"`
	Results []BulkReplyEntry `json:"results"`
}

// BulkReplyEntry is the backend's per-item verdict, keyed by comment id.
type BulkReplyEntry struct {
	CommentID string `json:"comment_id"`
	OK        bool   `json:"ok"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
}
