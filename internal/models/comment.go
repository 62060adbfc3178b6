package models

import "time"

type Comment struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	AnswerID  int64        `gorm:"not null;index" json:"answer_id"`
	Content   string       `gorm:"type:text;not null" json:"content"`
	AuthorID  int64        `gorm:"not null" json:"author_id"`
	Author    *UserSummary `gorm:"-" json:"author,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
}
