package models

import "time"

// Field limits for posts.
const (
	PostTitleMaxLen   = 255
	PostContentMaxLen = 500
)

// Post is a short text post. UserID is fixed at creation.
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"not null;index" json:"user"`
	User    *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Title   string `gorm:"size:255;not null" json:"title"`
	Content string `gorm:"size:500;not null" json:"content"`
	// Username is the owner's username, joined at query time
	Username *string `gorm:"->;-:migration" json:"username"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	// IsLiked is whether the viewing user likes the post (computed)
	IsLiked   bool      `gorm:"->;-:migration" json:"is_liked"`
	CreatedAt time.Time `gorm:"index" json:"created_datetime"`
	UpdatedAt time.Time `gorm:"index" json:"updated_datetime"`
}

// String renders "<owner email> - <title>" when the owner is loaded.
func (p Post) String() string {
	if p.User == nil {
		return p.Title
	}
	return p.User.Email + " - " + p.Title
}

// Like marks that a user likes a post. At most one row exists per (user, post).
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_datetime"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// Comment is part of the data model but has no HTTP surface.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user"`
	PostID    uint      `gorm:"not null;index" json:"post"`
	Comment   string    `gorm:"size:500;not null" json:"comment"`
	CreatedAt time.Time `json:"created_datetime"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}
