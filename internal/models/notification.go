package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType categorizes a notification.
type NotificationType string

const (
	NotificationMention  NotificationType = "mention"
	NotificationReaction NotificationType = "reaction"
	NotificationReply    NotificationType = "reply"
	NotificationComment  NotificationType = "comment"
	NotificationFollow   NotificationType = "follow"
)

// Notification is an inbox entry for a user. Rows are only created through
// the notification service.
type Notification struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	UserID     uint              `gorm:"not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type       NotificationType  `gorm:"type:varchar(20);not null" json:"type"`
	Title      string            `gorm:"size:255;not null" json:"title"`
	Message    string            `gorm:"type:text" json:"message"`
	IsRead     bool              `gorm:"default:false;index" json:"is_read"`
	PostID     *uint             `json:"post_id"`
	CommentID  *uint             `json:"comment_id"`
	ThreadID   *uint             `json:"thread_id"`
	FromUserID *uint             `json:"from_user_id"`
	Data       datatypes.JSONMap `gorm:"type:json" json:"data"`
	CreatedAt  time.Time         `gorm:"index:idx_notifications_user_created,priority:2" json:"created_at"`

	FromUser *User `gorm:"foreignKey:FromUserID" json:"from_user,omitempty"`
}

// Mention links an @username token in a post or comment to the resolved user.
type Mention struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	MentionedUserID  uint      `gorm:"not null;index" json:"mentioned_user_id"`
	MentioningUserID uint      `gorm:"not null" json:"mentioning_user_id"`
	PostID           *uint     `gorm:"index" json:"post_id"`
	CommentID        *uint     `gorm:"index" json:"comment_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateNotificationParams are the inputs of the notification service's Create.
type CreateNotificationParams struct {
	UserID     uint
	Type       NotificationType
	Title      string
	Message    string
	PostID     *uint
	CommentID  *uint
	ThreadID   *uint
	FromUserID *uint
	Data       map[string]interface{}
}
