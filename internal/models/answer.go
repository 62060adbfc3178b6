package models

import "time"

type Answer struct {
	ID         int64        `gorm:"primaryKey" json:"id"`
	QuestionID int64        `gorm:"not null;index" json:"question_id"`
	Content    string       `gorm:"type:text;not null" json:"content"`
	AuthorID   int64        `gorm:"not null;index" json:"author_id"`
	Author     *UserSummary `gorm:"-" json:"author,omitempty"`

	VoteSet `gorm:"embedded"`

	IsAccepted bool      `gorm:"not null;default:false" json:"is_accepted"`
	Comments   []Comment `gorm:"foreignKey:AnswerID" json:"comments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Answer) Target() Target {
	return Target{Type: TargetAnswer, ID: a.ID, AuthorID: a.AuthorID, QuestionID: a.QuestionID, Votes: a.VoteSet.Clone()}
}

type CreateAnswerRequest struct {
	QuestionID int64  `json:"question_id" binding:"required"`
	Content    string `json:"content" binding:"required,min=30"`
}
