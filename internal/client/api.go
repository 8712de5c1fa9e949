package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"bitboard/internal/feed"
	"bitboard/internal/models"
	"bitboard/internal/normalize"
	"bitboard/internal/search"
)

// Session is the result of signing up or in.
type Session struct {
	Token     string            `json:"token"`
	User      normalize.UserRef `json:"user"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// SignUp registers an account and keeps its session token.
func (c *Client) SignUp(ctx context.Context, email, username, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/auth/signup", nil, map[string]string{
		"email":            email,
		"username":         username,
		"password":         password,
		"confirm_password": password,
	}, &s)
	if err != nil {
		return nil, err
	}
	c.setToken(s.Token)
	return &s, nil
}

// SignIn authenticates and keeps the session token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &s)
	if err != nil {
		return nil, err
	}
	c.setToken(s.Token)
	return &s, nil
}

// SignOut revokes the session server-side and forgets the token locally.
// The local token is dropped even when the request fails.
func (c *Client) SignOut(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.setToken("")
	return err
}

func cursorQuery(cur feed.Cursor) url.Values {
	cur = cur.Normalize()
	q := url.Values{}
	q.Set("page", strconv.Itoa(cur.Page))
	q.Set("limit", strconv.Itoa(cur.Limit))
	return q
}

// Threads lists threads newest first. categoryID 0 lists every category.
func (c *Client) Threads(ctx context.Context, categoryID uint, cur feed.Cursor) (feed.Page[normalize.Thread], error) {
	q := cursorQuery(cur)
	if categoryID != 0 {
		q.Set("category_id", strconv.FormatUint(uint64(categoryID), 10))
	}
	var raw feed.Page[normalize.RawThread]
	if err := c.do(ctx, http.MethodGet, "/threads", q, nil, &raw); err != nil {
		return feed.Page[normalize.Thread]{}, err
	}
	return feed.Page[normalize.Thread]{
		Items:   normalize.Threads(raw.Items),
		HasMore: raw.HasMore,
		Page:    raw.Page,
		Limit:   raw.Limit,
	}, nil
}

// ThreadDetail is a thread with one page of its posts.
type ThreadDetail struct {
	Thread normalize.Thread
	Posts  feed.Page[normalize.Post]
}

// Thread fetches a thread and one page of its posts, oldest first.
func (c *Client) Thread(ctx context.Context, id uint, cur feed.Cursor) (*ThreadDetail, error) {
	var raw struct {
		Thread normalize.RawThread          `json:"thread"`
		Posts  feed.Page[normalize.RawPost] `json:"posts"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/threads/%d", id), cursorQuery(cur), nil, &raw); err != nil {
		return nil, err
	}
	return &ThreadDetail{
		Thread: normalize.NormalizeThread(raw.Thread),
		Posts: feed.Page[normalize.Post]{
			Items:   normalize.Posts(raw.Posts.Items),
			HasMore: raw.Posts.HasMore,
			Page:    raw.Posts.Page,
			Limit:   raw.Posts.Limit,
		},
	}, nil
}

// ThreadInput creates a thread and its first post.
type ThreadInput struct {
	CategoryID  uint   `json:"category_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ImageURL    string `json:"image_url,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// CreateThread creates a thread.
func (c *Client) CreateThread(ctx context.Context, in ThreadInput) (*normalize.Thread, error) {
	var raw normalize.RawThread
	if err := c.do(ctx, http.MethodPost, "/threads", nil, in, &raw); err != nil {
		return nil, err
	}
	t := normalize.NormalizeThread(raw)
	return &t, nil
}

// PostInput creates a reply.
type PostInput struct {
	Content     string `json:"content"`
	ImageURL    string `json:"image_url,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// CreatePost replies in a thread.
func (c *Client) CreatePost(ctx context.Context, threadID uint, in PostInput) (*normalize.Post, error) {
	var raw normalize.RawPost
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/threads/%d/posts", threadID), nil, in, &raw); err != nil {
		return nil, err
	}
	p := normalize.NormalizePost(raw)
	return &p, nil
}

// Comments lists a post's comments, oldest first.
func (c *Client) Comments(ctx context.Context, postID uint) ([]normalize.Comment, error) {
	var raws []normalize.RawComment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/posts/%d/comments", postID), nil, nil, &raws); err != nil {
		return nil, err
	}
	out := make([]normalize.Comment, 0, len(raws))
	for _, r := range raws {
		out = append(out, normalize.NormalizeComment(r))
	}
	return out, nil
}

// CreateComment comments on a post.
func (c *Client) CreateComment(ctx context.Context, postID uint, content string) (*normalize.Comment, error) {
	var raw normalize.RawComment
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/posts/%d/comments", postID), nil, map[string]string{"content": content}, &raw); err != nil {
		return nil, err
	}
	cm := normalize.NormalizeComment(raw)
	return &cm, nil
}

// Target names a post or a comment. Exactly one field is set.
type Target struct {
	PostID    uint
	CommentID uint
}

// ToggleReaction adds, switches or removes the caller's reaction on target.
func (c *Client) ToggleReaction(ctx context.Context, target Target, reaction models.ReactionType) (*models.ReactionSummary, error) {
	var path string
	switch {
	case target.PostID != 0 && target.CommentID == 0:
		path = fmt.Sprintf("/posts/%d/reactions", target.PostID)
	case target.CommentID != 0 && target.PostID == 0:
		path = fmt.Sprintf("/comments/%d/reactions", target.CommentID)
	default:
		return nil, fmt.Errorf("reaction target needs exactly one of post or comment")
	}
	var out models.ReactionSummary
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]models.ReactionType{"reaction_type": reaction}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FollowState is the follow relation after a toggle.
type FollowState struct {
	Following      bool `json:"following"`
	FollowersCount int  `json:"followers_count"`
}

// ToggleFollow follows or unfollows a user.
func (c *Client) ToggleFollow(ctx context.Context, userID uint) (*FollowState, error) {
	var out FollowState
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/follow", userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FollowingActivity returns recent activity of the users the caller follows.
func (c *Client) FollowingActivity(ctx context.Context) ([]models.Activity, error) {
	var out []models.Activity
	err := c.do(ctx, http.MethodGet, "/users/me/following/activity", nil, nil, &out)
	return out, err
}

// ReportInput flags content for moderators.
type ReportInput struct {
	ContentType models.ContentType  `json:"content_type"`
	ContentID   uint                `json:"content_id"`
	Reason      models.ReportReason `json:"reason"`
	Description string              `json:"description,omitempty"`
}

// Report files a report.
func (c *Client) Report(ctx context.Context, in ReportInput) (*models.Report, error) {
	var out models.Report
	if err := c.do(ctx, http.MethodPost, "/reports", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Notifications lists the caller's notifications, newest first.
func (c *Client) Notifications(ctx context.Context, cur feed.Cursor) (feed.Page[models.Notification], error) {
	var out feed.Page[models.Notification]
	err := c.do(ctx, http.MethodGet, "/notifications/", cursorQuery(cur), nil, &out)
	return out, err
}

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, nil, &out)
	return out.Count, err
}

// MarkRead marks one notification read. id 0 marks all of them.
func (c *Client) MarkRead(ctx context.Context, id uint) error {
	if id == 0 {
		return c.do(ctx, http.MethodPost, "/notifications/read-all", nil, nil, nil)
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/notifications/%d/read", id), nil, nil, nil)
}

// Search queries threads, posts and users. Terms shorter than two characters
// return no results without a request.
func (c *Client) Search(ctx context.Context, term string) ([]search.Result, error) {
	if len([]rune(term)) < search.MinQueryLen {
		return []search.Result{}, nil
	}
	var out search.Response
	if err := c.do(ctx, http.MethodGet, "/search", url.Values{"q": {term}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Upload stores a media file and returns its public URL.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/uploads", nil, body, w.FormDataContentType())
	if err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
