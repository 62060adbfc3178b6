package models

import "time"

type NotificationType string

const (
	NotificationQuestionAnswered NotificationType = "question_answered"
	NotificationAnswerCommented  NotificationType = "answer_commented"
	NotificationAnswerAccepted   NotificationType = "answer_accepted"
	NotificationMention          NotificationType = "mention"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationQuestionAnswered, NotificationAnswerCommented, NotificationAnswerAccepted, NotificationMention:
		return true
	}
	return false
}

// Notification is an in-app message addressed to a single recipient.
type Notification struct {
	ID                int64            `gorm:"primaryKey" json:"id"`
	RecipientID       int64            `gorm:"not null;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	SenderID          int64            `gorm:"not null" json:"sender_id"`
	Sender            *UserSummary     `gorm:"-" json:"sender,omitempty"`
	Type              NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Message           string           `gorm:"type:text;not null" json:"message"`
	RelatedQuestionID *int64           `json:"related_question_id,omitempty"`
	RelatedAnswerID   *int64           `json:"related_answer_id,omitempty"`
	IsRead            bool             `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt            *time.Time       `json:"read_at,omitempty"`
	CreatedAt         time.Time        `gorm:"index:idx_notifications_recipient_created,priority:2,sort:desc" json:"created_at"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unread_count"`
	Pagination    Pagination     `json:"pagination"`
}
