package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chani337/selfstar/internal/core/domain"
	"github.com/chani337/selfstar/internal/core/ports"
)

const DefaultBaseURL = "http://localhost:8000"

// Client는 selfstar 백엔드 API를 위한 어댑터입니다.
// 개요 조회, AI 초안/이미지 위임, 답글 등록을 담당하며 세션 쿠키를 그대로
// 전달합니다. HTTP 상태 코드는 여기서 도메인 에러로 변환됩니다.
type Client struct {
	BaseURL    string
	Session    string
	HTTPClient *http.Client
}

func NewClient(baseURL, session string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Session:    session,
		HTTPClient: &http.Client{},
	}
}

var _ ports.OverviewSource = (*Client)(nil)
var _ ports.DraftClient = (*Client)(nil)
var _ ports.ReplyClient = (*Client)(nil)
var _ ports.ImageClient = (*Client)(nil)

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if c.Session != "" {
		req.Header.Set("Cookie", c.Session)
	}
	return c.HTTPClient.Do(req)
}

// statusErr drains the body and maps the response to the engine's error
// taxonomy. 401 means reauthenticate, on every endpoint alike.
func statusErr(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return domain.ErrAuthRequired
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &domain.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	reqBody, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// FetchOverview implements ports.OverviewSource.
func (c *Client) FetchOverview(ctx context.Context, f ports.OverviewFilters) ([]domain.PersonaOverview, error) {
	q := url.Values{}
	q.Set("media_limit", strconv.Itoa(f.MediaLimit))
	q.Set("comments_limit", strconv.Itoa(f.CommentsLimit))
	q.Set("exclude_seen", strconv.FormatBool(f.ExcludeSeen))

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/api/instagram/comments/overview?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(resp)
	}

	var data OverviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	var personas []domain.PersonaOverview
	for _, p := range data.Personas {
		persona := domain.PersonaOverview{
			PersonaNum: p.PersonaNum,
			Name:       p.PersonaName,
			Img:        p.PersonaImg,
			IGUsername: p.IGUsername,
		}
		for _, m := range p.Items {
			item := domain.MediaItem{
				ID:           m.ID,
				Caption:      m.Caption,
				ThumbnailURL: m.ThumbnailURL,
				MediaURL:     m.MediaURL,
				Permalink:    m.Permalink,
				Timestamp:    parseTime(m.Timestamp),
			}
			for _, cm := range m.Comments {
				item.Comments = append(item.Comments, domain.Comment{
					ID:        cm.ID,
					Username:  cm.Username,
					Text:      cm.Text,
					Timestamp: parseTime(cm.Timestamp),
				})
			}
			persona.Items = append(persona.Items, item)
		}
		personas = append(personas, persona)
	}
	return personas, nil
}

// DraftReply implements ports.DraftClient. A 502 from the backend means the
// AI container is down and maps to domain.ErrAIUnavailable.
func (c *Client) DraftReply(ctx context.Context, personaNum int, text string, dc ports.DraftContext) (string, error) {
	resp, err := c.postJSON(ctx, "/api/instagram/comments/auto_draft", AutoDraftRequest{
		PersonaNum: personaNum,
		Text:       text,
		PostImg:    dc.PostImage,
		Post:       dc.PostCaption,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadGateway {
		return "", domain.ErrAIUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusErr(resp)
	}

	var data AutoDraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}

	reply := strings.TrimSpace(data.Reply)
	if reply == "" {
		return "", domain.ErrEmptyReply
	}
	return reply, nil
}

// GenerateImage implements ports.ImageClient.
func (c *Client) GenerateImage(ctx context.Context, personaNum int, commentID, text string, dc ports.DraftContext) error {
	resp, err := c.postJSON(ctx, "/api/instagram/comments/auto_image", AutoImageRequest{
		PersonaNum: personaNum,
		CommentID:  commentID,
		Text:       text,
		PostImg:    dc.PostImage,
		Post:       dc.PostCaption,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusErr(resp)
	}
	return nil
}

// Reply implements ports.ReplyClient for a single comment.
func (c *Client) Reply(ctx context.Context, personaNum int, commentID, message string) error {
	resp, err := c.postJSON(ctx, "/api/instagram/comments/reply", ReplyRequest{
		PersonaNum: personaNum,
		CommentID:  commentID,
		Message:    message,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusErr(resp)
	}
	return nil
}

// ReplyBulk posts a batch of replies and returns the backend's per-item
// verdicts. A non-2xx or decode failure means no per-item results exist.
func (c *Client) ReplyBulk(ctx context.Context, personaNum int, items []domain.BulkReplyItem) ([]domain.BulkReplyResult, error) {
	wire := make([]BulkReplyItem, 0, len(items))
	for _, it := range items {
		wire = append(wire, BulkReplyItem{CommentID: it.CommentID, Message: it.Message})
	}

	resp, err := c.postJSON(ctx, "/api/instagram/comments/reply_bulk", BulkReplyRequest{
		PersonaNum: personaNum,
		Items:      wire,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(resp)
	}

	var data BulkReplyResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if !data.OK {
		return nil, fmt.Errorf("reply_bulk rejected")
	}

	results := make([]domain.BulkReplyResult, 0, len(data.Results))
	for _, r := range data.Results {
		results = append(results, domain.BulkReplyResult{
			CommentID: r.CommentID,
			OK:        r.OK,
			Status:    r.Status,
			Err:       r.Error,
		})
	}
	return results, nil
}

// Logout terminates the backend session.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/instagram/logout", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusErr(resp)
	}
	return nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
