package models

import "time"

// ContentType names the kind of entity a report or moderation action targets.
type ContentType string

const (
	ContentThread  ContentType = "thread"
	ContentPost    ContentType = "post"
	ContentComment ContentType = "comment"
	ContentUser    ContentType = "user"
)

// ReportReason is the fixed set of reasons a reporter can pick.
type ReportReason string

const (
	ReasonSpam           ReportReason = "spam"
	ReasonHarassment     ReportReason = "harassment"
	ReasonInappropriate  ReportReason = "inappropriate"
	ReasonMisinformation ReportReason = "misinformation"
	ReasonOffTopic       ReportReason = "off_topic"
	ReasonOther          ReportReason = "other"
)

// Valid reports whether r is one of the accepted reasons.
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonInappropriate, ReasonMisinformation, ReasonOffTopic, ReasonOther:
		return true
	}
	return false
}

// ReportStatus tracks a report through review.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Report is a user-filed complaint about a piece of content.
type Report struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ReporterID     uint         `gorm:"not null;index" json:"reporter_id"`
	ReportedUserID *uint        `gorm:"index" json:"reported_user_id"`
	ContentType    ContentType  `gorm:"type:varchar(20);not null" json:"content_type"`
	ContentID      uint         `gorm:"not null" json:"content_id"`
	Reason         ReportReason `gorm:"type:varchar(30);not null" json:"reason"`
	Description    *string      `gorm:"size:500" json:"description"`
	Status         ReportStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	ReviewedBy     *uint        `json:"reviewed_by"`
	ReviewedAt     *time.Time   `json:"reviewed_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	Reporter *User `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
}

// Moderation action types written to the audit log.
const (
	ActionBanUser       = "ban_user"
	ActionUnbanUser     = "unban_user"
	ActionResolveReport = "resolve_report"
	ActionDismissReport = "dismiss_report"
)

// DeleteActionFor returns the audit action type for deleting content of type t.
func DeleteActionFor(t ContentType) string {
	return "delete_" + string(t)
}

// ModerationAction is an append-only audit log entry.
type ModerationAction struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ModeratorID uint        `gorm:"not null;index" json:"moderator_id"`
	ActionType  string      `gorm:"size:40;not null" json:"action_type"`
	TargetType  ContentType `gorm:"type:varchar(20);not null" json:"target_type"`
	TargetID    uint        `gorm:"not null" json:"target_id"`
	Reason      string      `gorm:"type:text" json:"reason"`
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`

	Moderator *User `gorm:"foreignKey:ModeratorID" json:"moderator,omitempty"`
}

// BanType distinguishes time-limited bans from permanent ones.
type BanType string

const (
	BanTemporary BanType = "temporary"
	BanPermanent BanType = "permanent"
)

// UserBan removes a user's ability to write until ExpiresAt or revocation.
type UserBan struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	BannedBy  uint       `gorm:"not null" json:"banned_by"`
	BanType   BanType    `gorm:"type:varchar(20);not null" json:"ban_type"`
	Reason    string     `gorm:"type:text;not null" json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// ActiveAt reports whether the ban is in force at t.
func (b *UserBan) ActiveAt(t time.Time) bool {
	if b.RevokedAt != nil {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(t)
}
