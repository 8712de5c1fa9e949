package models

import "time"

// ActivityType names what a followed user did.
type ActivityType string

const (
	ActivityPost     ActivityType = "post"
	ActivityComment  ActivityType = "comment"
	ActivityReaction ActivityType = "reaction"
)

// Activity is one entry of the following feed. It is assembled from posts,
// comments and reactions and never stored. Content holds the reaction type
// for reactions.
type Activity struct {
	ID          uint         `json:"id"`
	Type        ActivityType `json:"type"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"created_at"`
	UserID      uint         `json:"user_id"`
	Username    string       `json:"username"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	ThreadID    uint         `json:"thread_id"`
	ThreadTitle string       `json:"thread_title"`
	PostID      *uint        `json:"post_id,omitempty"`
	CommentID   *uint        `json:"comment_id,omitempty"`
}
