package models

import "time"

// Post is a reply inside a thread.
type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ThreadID    uint       `gorm:"not null;index" json:"thread_id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ImageURL    string     `json:"image_url,omitempty"`
	VideoURL    string     `json:"video_url,omitempty"`
	EditedAt    *time.Time `json:"edited_at"`
	IsAnonymous bool       `gorm:"default:false" json:"is_anonymous"`
	IsDeleted   bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedBy   *uint      `json:"deleted_by,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	User      *User      `gorm:"foreignKey:UserID" json:"users,omitempty"`
	Thread    *Thread    `gorm:"foreignKey:ThreadID" json:"threads,omitempty"`
	Comments  []Comment  `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	Reactions []Reaction `gorm:"foreignKey:PostID" json:"reactions,omitempty"`
}

// Comment is a short reply attached to a post.
type Comment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PostID    uint       `gorm:"not null;index" json:"post_id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	ImageURL  string     `json:"image_url,omitempty"`
	IsDeleted bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedBy *uint      `json:"deleted_by,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	User      *User      `gorm:"foreignKey:UserID" json:"users,omitempty"`
	Post      *Post      `gorm:"foreignKey:PostID" json:"-"`
	Reactions []Reaction `gorm:"foreignKey:CommentID" json:"comment_likes,omitempty"`
}
