// Package services holds the vote ledger, acceptance, notification and
// question/answer workflows. Handlers stay thin and call into here.
package services

import (
	"context"
	"fmt"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Real-time event names.
const (
	EventNotification   = "notification"
	EventAnswerCreated  = "answer_created"
	EventCommentAdded   = "comment_added"
	EventVoteUpdated    = "vote_updated"
	EventAnswerAccepted = "answer_accepted"
	EventAnswerDeleted  = "answer_deleted"
)

// Publisher pushes events to connected clients. Delivery is best effort:
// implementations must not block and may drop messages.
type Publisher interface {
	PublishToUser(userID int64, event string, payload any)
	PublishToQuestion(questionID int64, event string, payload any)
}

type NopPublisher struct{}

func (NopPublisher) PublishToUser(int64, string, any)     {}
func (NopPublisher) PublishToQuestion(int64, string, any) {}

// Services bundles the domain services sharing one store and publisher.
type Services struct {
	Votes         *VoteService
	Acceptance    *AcceptanceService
	Notifications *NotificationService
	Questions     *QuestionService
	Answers       *AnswerService
}

type Options struct {
	Publisher        Publisher
	AcceptReputation int
}

func New(store database.Service, opts Options) *Services {
	pub := opts.Publisher
	if pub == nil {
		pub = NopPublisher{}
	}

	notifications := NewNotificationService(store, pub)
	acceptance := NewAcceptanceService(store, opts.AcceptReputation)
	acceptance.Subscribe(notifications.OnAnswerAccepted)
	acceptance.Subscribe(PublishAcceptance(pub))

	return &Services{
		Votes:         NewVoteService(store, pub),
		Acceptance:    acceptance,
		Notifications: notifications,
		Questions:     NewQuestionService(store),
		Answers:       NewAnswerService(store, notifications, pub, opts.AcceptReputation),
	}
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}

// attachAuthors fills in the author summaries of a question's answers and comments.
func attachAuthors(ctx context.Context, store database.UserStore, answers []models.Answer) error {
	ids := make([]int64, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.AuthorID)
		for _, c := range a.Comments {
			ids = append(ids, c.AuthorID)
		}
	}
	users, err := store.GetUserSummaries(ctx, ids)
	if err != nil {
		return err
	}
	for i := range answers {
		if u, ok := users[answers[i].AuthorID]; ok {
			answers[i].Author = &u
		}
		for j := range answers[i].Comments {
			if u, ok := users[answers[i].Comments[j].AuthorID]; ok {
				answers[i].Comments[j].Author = &u
			}
		}
	}
	return nil
}
