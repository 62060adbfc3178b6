package models

import (
	"time"

	"github.com/lib/pq"
)

type Question struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"type:varchar(200);not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Tags        pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`
	AuthorID    int64          `gorm:"not null;index" json:"author_id"`
	Author      *UserSummary   `gorm:"-" json:"author,omitempty"`

	VoteSet `gorm:"embedded"`

	AcceptedAnswerID *int64 `json:"accepted_answer_id"`
	IsResolved       bool   `gorm:"not null;default:false" json:"is_resolved"`
	Views            int    `gorm:"not null;default:0" json:"views"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (q *Question) Target() Target {
	return Target{Type: TargetQuestion, ID: q.ID, AuthorID: q.AuthorID, QuestionID: q.ID, Votes: q.VoteSet.Clone()}
}

type CreateQuestionRequest struct {
	Title       string   `json:"title" binding:"required,min=10,max=200"`
	Description string   `json:"description" binding:"required,min=30"`
	Tags        []string `json:"tags" binding:"required,min=1,max=5,dive,required"`
}

// QuestionDetail is a question with its answers, as returned by GET /api/questions/:id.
type QuestionDetail struct {
	Question
	Answers  []Answer `json:"answers"`
	UserVote string   `json:"user_vote,omitempty"`
}

type AcceptAnswerRequest struct {
	QuestionID int64 `json:"question_id"`
	AnswerID   int64 `json:"answer_id" binding:"required"`
}
