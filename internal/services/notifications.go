package services

import (
	"context"
	"fmt"
	"time"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

const (
	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 100
)

type NotifyParams struct {
	RecipientID int64
	SenderID    int64
	Type        models.NotificationType
	Message     string
	QuestionID  *int64
	AnswerID    *int64
}

// NotificationService persists notifications and pushes them to the
// recipient's channel. The record is the source of truth; the push may be lost.
type NotificationService struct {
	store database.Service
	pub   Publisher
	now   func() time.Time
}

func NewNotificationService(store database.Service, pub Publisher) *NotificationService {
	return &NotificationService{store: store, pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

func (s *NotificationService) Notify(ctx context.Context, p NotifyParams) (*models.Notification, error) {
	if !p.Type.Valid() {
		return nil, validationError("unknown notification type %q", p.Type)
	}
	if p.Message == "" {
		return nil, validationError("notification message is required")
	}

	n := &models.Notification{
		RecipientID:       p.RecipientID,
		SenderID:          p.SenderID,
		Type:              p.Type,
		Message:           p.Message,
		RelatedQuestionID: p.QuestionID,
		RelatedAnswerID:   p.AnswerID,
		CreatedAt:         s.now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	if sender, err := s.store.GetUserSummaries(ctx, []int64{p.SenderID}); err == nil {
		if u, ok := sender[p.SenderID]; ok {
			n.Sender = &u
		}
	}

	unread, err := s.store.CountUnread(ctx, p.RecipientID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("count unread for push")
	}
	s.pub.PublishToUser(p.RecipientID, EventNotification, map[string]any{
		"notification": n,
		"unread_count": unread,
	})
	return n, nil
}

// Dispatch is the fire-and-forget form of Notify used after a primary mutation
// has committed. Self-notifications are skipped, failures are logged and dropped,
// and the caller's cancellation is ignored.
func (s *NotificationService) Dispatch(ctx context.Context, p NotifyParams) {
	if p.RecipientID == p.SenderID {
		return
	}
	ctx = context.WithoutCancel(ctx)

	_, err := s.Notify(ctx, p)
	metrics.RecordNotification(string(p.Type), err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("type", string(p.Type)).
			Int64("recipient_id", p.RecipientID).
			Msg("failed to create notification")
	}
}

// List returns one page of the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID int64, page, limit int) (*models.NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultNotificationLimit
	}
	limit = min(limit, MaxNotificationLimit)

	list, total, err := s.store.ListNotifications(ctx, recipientID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	if err := s.attachSenders(ctx, list); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to load notification senders")
	}

	return &models.NotificationPage{
		Notifications: list,
		UnreadCount:   unread,
		Pagination:    models.NewPagination(page, limit, total),
	}, nil
}

func (s *NotificationService) attachSenders(ctx context.Context, list []models.Notification) error {
	ids := make([]int64, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.SenderID)
	}
	users, err := s.store.GetUserSummaries(ctx, ids)
	if err != nil {
		return err
	}
	for i := range list {
		if u, ok := users[list[i].SenderID]; ok {
			list[i].Sender = &u
		}
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	return s.store.CountUnread(ctx, recipientID)
}

func (s *NotificationService) owned(ctx context.Context, id, actorID int64) (*models.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != actorID {
		return nil, fmt.Errorf("%w: notification belongs to another user", models.ErrForbidden)
	}
	return n, nil
}

// MarkAsRead flags one notification as read. Already-read notifications keep
// their original read time.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, actorID int64) (*models.Notification, error) {
	n, err := s.owned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}

	at := s.now()
	if err := s.store.MarkNotificationRead(ctx, id, at); err != nil {
		return nil, err
	}
	n.IsRead = true
	n.ReadAt = &at
	return n, nil
}

// MarkAllAsRead is idempotent; it reports how many notifications changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, actorID int64) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, actorID, s.now())
}

func (s *NotificationService) Delete(ctx context.Context, id, actorID int64) error {
	if _, err := s.owned(ctx, id, actorID); err != nil {
		return err
	}
	return s.store.DeleteNotification(ctx, id)
}

// OnAnswerAccepted tells the answer's author their answer was accepted.
func (s *NotificationService) OnAnswerAccepted(ctx context.Context, evt AnswerAccepted) {
	if evt.AnswerAuthorID == evt.QuestionAuthorID {
		return
	}

	name := "Someone"
	if users, err := s.store.GetUserSummaries(ctx, []int64{evt.QuestionAuthorID}); err == nil {
		if u, ok := users[evt.QuestionAuthorID]; ok {
			name = u.Username
		}
	}

	questionID, answerID := evt.QuestionID, evt.AnswerID
	s.Dispatch(ctx, NotifyParams{
		RecipientID: evt.AnswerAuthorID,
		SenderID:    evt.QuestionAuthorID,
		Type:        models.NotificationAnswerAccepted,
		Message:     fmt.Sprintf("%s accepted your answer on: %s", name, evt.QuestionTitle),
		QuestionID:  &questionID,
		AnswerID:    &answerID,
	})
}
