// Package normalize turns the API's join-shaped rows into canonical structs.
//
// A nested relation such as a post's author may arrive as an object, as an
// array holding that object, as null, or not at all. Relation accepts all four
// and keeps at most one value, so callers never branch on the wire shape.
// Scalars and strings in a relation slot decode as absent.
package normalize

import (
	"bytes"
	"encoding/json"
	"time"
)

// UnknownUsername is shown when a row's author relation is absent.
const UnknownUsername = "Unknown"

// Single returns the first element of xs, or nil when xs is empty.
func Single[T any](xs []T) *T {
	if len(xs) == 0 {
		return nil
	}
	v := xs[0]
	return &v
}

// Relation is a to-one relation that tolerates object, array and null encodings.
type Relation[T any] struct {
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Relation[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	r.Value = nil
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '[':
		var xs []T
		if err := json.Unmarshal(b, &xs); err != nil {
			return err
		}
		r.Value = Single(xs)
	case '{':
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		r.Value = &v
	}
	return nil
}

// MarshalJSON writes the canonical object form, or null.
func (r Relation[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value)
}

// UserRef is the public author projection embedded in content rows.
type UserRef struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `json:"role,omitempty"`
}

// CategoryRef is the category projection embedded in thread rows.
type CategoryRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Username returns u's username, or UnknownUsername for a nil relation.
func Username(u *UserRef) string {
	if u == nil || u.Username == "" {
		return UnknownUsername
	}
	return u.Username
}

// RawReaction is a reaction row as sent by the API.
type RawReaction struct {
	ID           uint   `json:"id"`
	UserID       uint   `json:"user_id"`
	PostID       *uint  `json:"post_id,omitempty"`
	CommentID    *uint  `json:"comment_id,omitempty"`
	ReactionType string `json:"reaction_type"`
}

// RawComment is a comment row as sent by the API.
type RawComment struct {
	ID        uint              `json:"id"`
	PostID    uint              `json:"post_id"`
	UserID    uint              `json:"user_id"`
	Content   string            `json:"content"`
	ImageURL  string            `json:"image_url,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Users     Relation[UserRef] `json:"users"`
	Reactions []RawReaction     `json:"comment_likes,omitempty"`
}

// RawPost is a post row as sent by the API.
type RawPost struct {
	ID          uint              `json:"id"`
	ThreadID    uint              `json:"thread_id"`
	UserID      uint              `json:"user_id"`
	Content     string            `json:"content"`
	ImageURL    string            `json:"image_url,omitempty"`
	VideoURL    string            `json:"video_url,omitempty"`
	IsAnonymous bool              `json:"is_anonymous"`
	EditedAt    *time.Time        `json:"edited_at"`
	CreatedAt   time.Time         `json:"created_at"`
	Users       Relation[UserRef] `json:"users"`
	Comments    []RawComment      `json:"comments,omitempty"`
	Reactions   []RawReaction     `json:"reactions,omitempty"`
}

// RawThread is a thread row as sent by the API.
type RawThread struct {
	ID          uint                  `json:"id"`
	CategoryID  uint                  `json:"category_id"`
	UserID      uint                  `json:"user_id"`
	Title       string                `json:"title"`
	IsAnonymous bool                  `json:"is_anonymous"`
	IsPinned    bool                  `json:"is_pinned"`
	IsLocked    bool                  `json:"is_locked"`
	ViewCount   int                   `json:"view_count"`
	PostCount   int64                 `json:"post_count"`
	CreatedAt   time.Time             `json:"created_at"`
	Users       Relation[UserRef]     `json:"users"`
	Categories  Relation[CategoryRef] `json:"categories"`
	Posts       []RawPost             `json:"posts,omitempty"`
}

// Comment is the canonical comment.
type Comment struct {
	ID        uint          `json:"id"`
	PostID    uint          `json:"post_id"`
	UserID    uint          `json:"user_id"`
	Content   string        `json:"content"`
	ImageURL  string        `json:"image_url,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Author    *UserRef      `json:"author"`
	Reactions []RawReaction `json:"reactions,omitempty"`
}

// Post is the canonical post.
type Post struct {
	ID          uint          `json:"id"`
	ThreadID    uint          `json:"thread_id"`
	UserID      uint          `json:"user_id"`
	Content     string        `json:"content"`
	ImageURL    string        `json:"image_url,omitempty"`
	VideoURL    string        `json:"video_url,omitempty"`
	IsAnonymous bool          `json:"is_anonymous"`
	EditedAt    *time.Time    `json:"edited_at"`
	CreatedAt   time.Time     `json:"created_at"`
	Author      *UserRef      `json:"author"`
	Comments    []Comment     `json:"comments"`
	Reactions   []RawReaction `json:"reactions,omitempty"`
}

// Thread is the canonical thread.
type Thread struct {
	ID          uint         `json:"id"`
	CategoryID  uint         `json:"category_id"`
	UserID      uint         `json:"user_id"`
	Title       string       `json:"title"`
	IsAnonymous bool         `json:"is_anonymous"`
	IsPinned    bool         `json:"is_pinned"`
	IsLocked    bool         `json:"is_locked"`
	ViewCount   int          `json:"view_count"`
	PostCount   int64        `json:"post_count"`
	CreatedAt   time.Time    `json:"created_at"`
	Author      *UserRef     `json:"author"`
	Category    *CategoryRef `json:"category"`
	Posts       []Post       `json:"posts"`
}

// NormalizeComment converts a raw comment row.
func NormalizeComment(raw RawComment) Comment {
	return Comment{
		ID:        raw.ID,
		PostID:    raw.PostID,
		UserID:    raw.UserID,
		Content:   raw.Content,
		ImageURL:  raw.ImageURL,
		CreatedAt: raw.CreatedAt,
		Author:    raw.Users.Value,
		Reactions: raw.Reactions,
	}
}

// NormalizePost converts a raw post row and its comments.
func NormalizePost(raw RawPost) Post {
	p := Post{
		ID:          raw.ID,
		ThreadID:    raw.ThreadID,
		UserID:      raw.UserID,
		Content:     raw.Content,
		ImageURL:    raw.ImageURL,
		VideoURL:    raw.VideoURL,
		IsAnonymous: raw.IsAnonymous,
		EditedAt:    raw.EditedAt,
		CreatedAt:   raw.CreatedAt,
		Author:      raw.Users.Value,
		Reactions:   raw.Reactions,
		Comments:    make([]Comment, 0, len(raw.Comments)),
	}
	for _, c := range raw.Comments {
		p.Comments = append(p.Comments, NormalizeComment(c))
	}
	return p
}

// NormalizeThread converts a raw thread row, its posts and their comments.
func NormalizeThread(raw RawThread) Thread {
	t := Thread{
		ID:          raw.ID,
		CategoryID:  raw.CategoryID,
		UserID:      raw.UserID,
		Title:       raw.Title,
		IsAnonymous: raw.IsAnonymous,
		IsPinned:    raw.IsPinned,
		IsLocked:    raw.IsLocked,
		ViewCount:   raw.ViewCount,
		PostCount:   raw.PostCount,
		CreatedAt:   raw.CreatedAt,
		Author:      raw.Users.Value,
		Category:    raw.Categories.Value,
		Posts:       make([]Post, 0, len(raw.Posts)),
	}
	for _, p := range raw.Posts {
		t.Posts = append(t.Posts, NormalizePost(p))
	}
	return t
}

// Threads normalizes a slice of raw threads.
func Threads(raws []RawThread) []Thread {
	out := make([]Thread, 0, len(raws))
	for _, r := range raws {
		out = append(out, NormalizeThread(r))
	}
	return out
}

// Posts normalizes a slice of raw posts.
func Posts(raws []RawPost) []Post {
	out := make([]Post, 0, len(raws))
	for _, r := range raws {
		out = append(out, NormalizePost(r))
	}
	return out
}
