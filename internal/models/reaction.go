package models

import "time"

// ReactionType enumerates the emoji reactions a user can leave.
type ReactionType string

const (
	ReactionLike      ReactionType = "like"
	ReactionDislike   ReactionType = "dislike"
	ReactionRocket    ReactionType = "rocket"
	ReactionDiamond   ReactionType = "diamond"
	ReactionChartUp   ReactionType = "chart_up"
	ReactionChartDown ReactionType = "chart_down"
	ReactionFire      ReactionType = "fire"
	ReactionHeart     ReactionType = "heart"
)

var reactionEmoji = map[ReactionType]string{
	ReactionLike:      "👍",
	ReactionDislike:   "👎",
	ReactionRocket:    "🚀",
	ReactionDiamond:   "💎",
	ReactionChartUp:   "📈",
	ReactionChartDown: "📉",
	ReactionFire:      "🔥",
	ReactionHeart:     "❤️",
}

// ReactionTypes lists every reaction in display order.
func ReactionTypes() []ReactionType {
	return []ReactionType{
		ReactionLike, ReactionDislike, ReactionRocket, ReactionDiamond,
		ReactionChartUp, ReactionChartDown, ReactionFire, ReactionHeart,
	}
}

// Valid reports whether t is a known reaction type.
func (t ReactionType) Valid() bool {
	_, ok := reactionEmoji[t]
	return ok
}

// Emoji returns the display emoji for t, or "" when t is unknown.
func (t ReactionType) Emoji() string {
	return reactionEmoji[t]
}

// Reaction is one user's reaction to a post or a comment. Exactly one of
// PostID and CommentID is set; the unique indexes keep a single reaction per
// user per target.
type Reaction struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       uint         `gorm:"not null;uniqueIndex:idx_reactions_user_post;uniqueIndex:idx_reactions_user_comment" json:"user_id"`
	PostID       *uint        `gorm:"uniqueIndex:idx_reactions_user_post" json:"post_id,omitempty"`
	CommentID    *uint        `gorm:"uniqueIndex:idx_reactions_user_comment" json:"comment_id,omitempty"`
	ReactionType ReactionType `gorm:"type:varchar(20);not null" json:"reaction_type"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ReactionSummary is the per-type tally for a target plus the caller's own reaction.
type ReactionSummary struct {
	Counts   map[ReactionType]int64 `json:"counts"`
	Total    int64                  `json:"total"`
	Mine     *ReactionType          `json:"mine"`
	Toggled  string                 `json:"toggled,omitempty"`
	TargetID uint                   `json:"target_id"`
}
