package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

const maxCommentLen = 1000

type AnswerService struct {
	store            database.Service
	notifications    *NotificationService
	pub              Publisher
	acceptReputation int
}

func NewAnswerService(store database.Service, notifications *NotificationService, pub Publisher, acceptReputation int) *AnswerService {
	return &AnswerService{store: store, notifications: notifications, pub: pub, acceptReputation: acceptReputation}
}

// Create posts an answer and tells the question's author about it.
func (s *AnswerService) Create(ctx context.Context, authorID int64, req models.CreateAnswerRequest) (*models.Answer, error) {
	content := strings.TrimSpace(req.Content)
	if utf8.RuneCountInString(content) < minAnswerLen {
		return nil, validationError("answer must be at least %d characters", minAnswerLen)
	}

	q, err := s.store.GetQuestion(ctx, req.QuestionID, false)
	if err != nil {
		return nil, err
	}
	author, err := s.store.GetUser(ctx, authorID)
	if err != nil {
		return nil, err
	}

	a := &models.Answer{
		QuestionID: q.ID,
		Content:    content,
		AuthorID:   authorID,
		VoteSet:    models.NewVoteSet(),
		Comments:   []models.Comment{},
	}
	if err := s.store.CreateAnswer(ctx, a); err != nil {
		return nil, err
	}
	summary := author.Summary()
	a.Author = &summary

	questionID, answerID := q.ID, a.ID
	s.notifications.Dispatch(ctx, NotifyParams{
		RecipientID: q.AuthorID,
		SenderID:    authorID,
		Type:        models.NotificationQuestionAnswered,
		Message:     fmt.Sprintf("%s answered your question: %s", author.Username, q.Title),
		QuestionID:  &questionID,
		AnswerID:    &answerID,
	})
	s.pub.PublishToQuestion(q.ID, EventAnswerCreated, a)
	return a, nil
}

// AddComment attaches a comment to an answer and tells the answer's author.
func (s *AnswerService) AddComment(ctx context.Context, authorID, answerID int64, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n < 1 || n > maxCommentLen {
		return nil, validationError("comment must be between 1 and %d characters", maxCommentLen)
	}

	a, err := s.store.GetAnswer(ctx, answerID, false)
	if err != nil {
		return nil, err
	}
	author, err := s.store.GetUser(ctx, authorID)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{AnswerID: a.ID, Content: content, AuthorID: authorID}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	summary := author.Summary()
	c.Author = &summary

	questionID, aID := a.QuestionID, a.ID
	s.notifications.Dispatch(ctx, NotifyParams{
		RecipientID: a.AuthorID,
		SenderID:    authorID,
		Type:        models.NotificationAnswerCommented,
		Message:     fmt.Sprintf("%s commented on your answer", author.Username),
		QuestionID:  &questionID,
		AnswerID:    &aID,
	})
	s.pub.PublishToQuestion(a.QuestionID, EventCommentAdded, c)
	return c, nil
}

// Delete removes an answer on behalf of its author or an admin. Deleting the
// accepted answer returns the question to unresolved. The answer's author
// loses whatever reputation its standing votes and acceptance had earned.
func (s *AnswerService) Delete(ctx context.Context, actorID int64, actorRole string, answerID int64) error {
	var (
		questionID     int64
		wasAccepted    bool
		reputationLost int
	)

	err := s.store.Transact(ctx, func(tx database.Service) error {
		a, err := tx.GetAnswer(ctx, answerID, false)
		if err != nil {
			return err
		}

		// Same lock order as acceptance: question, answer, then users.
		q, err := tx.GetQuestion(ctx, a.QuestionID, true)
		if err != nil {
			return err
		}
		if a, err = tx.GetAnswer(ctx, answerID, true); err != nil {
			return err
		}
		if a.AuthorID != actorID && actorRole != models.RoleAdmin {
			return fmt.Errorf("%w: only the author or an admin can delete an answer", models.ErrForbidden)
		}

		wasAccepted = q.AcceptedAnswerID != nil && *q.AcceptedAnswerID == a.ID
		if wasAccepted {
			if err := tx.ClearAcceptedAnswer(ctx, q.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteAnswer(ctx, a.ID); err != nil {
			return err
		}

		delta := -a.VoteSet.Reputation(models.TargetAnswer)
		if wasAccepted && a.AuthorID != q.AuthorID {
			delta -= s.acceptReputation
		}
		if delta != 0 {
			if err := tx.AdjustReputation(ctx, a.AuthorID, delta); err != nil {
				return fmt.Errorf("revoke answer reputation: %w", err)
			}
		}

		questionID, reputationLost = q.ID, -delta
		return nil
	})
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Info().
		Int64("question_id", questionID).
		Int64("answer_id", answerID).
		Int64("actor_id", actorID).
		Bool("was_accepted", wasAccepted).
		Int("reputation_revoked", reputationLost).
		Msg("answer deleted")

	s.pub.PublishToQuestion(questionID, EventAnswerDeleted, map[string]any{
		"question_id": questionID,
		"answer_id":   answerID,
		"unresolved":  wasAccepted,
	})
	return nil
}
