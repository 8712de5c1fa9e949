package models

import "time"

// Thread is a discussion inside a category. It owns an ordered sequence of
// posts, the first of which is created together with the thread.
type Thread struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CategoryID  uint       `gorm:"not null;index" json:"category_id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Title       string     `gorm:"size:300;not null" json:"title"`
	IsAnonymous bool       `gorm:"default:false" json:"is_anonymous"`
	IsPinned    bool       `gorm:"default:false" json:"is_pinned"`
	IsLocked    bool       `gorm:"default:false" json:"is_locked"`
	IsDeleted   bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedBy   *uint      `json:"deleted_by,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	ViewCount   int        `gorm:"default:0" json:"view_count"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	User     *User     `gorm:"foreignKey:UserID" json:"users,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"categories,omitempty"`
	Posts    []Post    `gorm:"foreignKey:ThreadID" json:"posts,omitempty"`

	// PostCount is computed at query time.
	PostCount int64 `gorm:"->;-:migration" json:"post_count"`
}
