package services

import (
	"context"
	"fmt"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// AnswerAccepted is emitted after an acceptance commits.
type AnswerAccepted struct {
	QuestionID       int64
	QuestionTitle    string
	QuestionAuthorID int64
	AnswerID         int64
	AnswerAuthorID   int64
	PreviousAnswerID *int64
}

type AcceptanceListener func(ctx context.Context, evt AnswerAccepted)

// AcceptanceService moves a question from unresolved to resolved. Clearing the
// previous answer, flagging the new one and updating the question happen in
// one transaction holding the question row lock.
type AcceptanceService struct {
	store      database.Service
	reputation int
	listeners  []AcceptanceListener
}

func NewAcceptanceService(store database.Service, reputation int) *AcceptanceService {
	return &AcceptanceService{store: store, reputation: reputation}
}

// Subscribe registers a listener. Not safe to call once requests are being served.
func (s *AcceptanceService) Subscribe(l AcceptanceListener) {
	s.listeners = append(s.listeners, l)
}

func (s *AcceptanceService) AcceptAnswer(ctx context.Context, actorID, questionID, answerID int64) (*models.Question, error) {
	var (
		question *models.Question
		evt      *AnswerAccepted
	)

	err := s.store.Transact(ctx, func(tx database.Service) error {
		q, err := tx.GetQuestion(ctx, questionID, true)
		if err != nil {
			return err
		}
		if q.AuthorID != actorID {
			return fmt.Errorf("%w: only the question author can accept an answer", models.ErrForbidden)
		}

		// Lock order is question, answers, then users, the same as CastVote
		// (target row before its author's reputation).
		a, err := tx.GetAnswer(ctx, answerID, true)
		if err != nil {
			return err
		}
		if a.QuestionID != q.ID {
			return fmt.Errorf("%w: answer %d does not belong to question %d", models.ErrInvalidReference, a.ID, q.ID)
		}

		question = q
		if q.AcceptedAnswerID != nil && *q.AcceptedAnswerID == a.ID {
			return nil
		}

		var prev *models.Answer
		if prevID := q.AcceptedAnswerID; prevID != nil {
			prev, err = tx.GetAnswer(ctx, *prevID, true)
			if err != nil {
				return fmt.Errorf("load previously accepted answer: %w", err)
			}
			if err := tx.SetAnswerAccepted(ctx, prev.ID, false); err != nil {
				return err
			}
		}
		if err := tx.SetAnswerAccepted(ctx, a.ID, true); err != nil {
			return err
		}
		if err := tx.SetAcceptedAnswer(ctx, q.ID, a.ID); err != nil {
			return err
		}

		if prev != nil {
			if err := s.adjust(ctx, tx, q, prev.AuthorID, -s.reputation); err != nil {
				return err
			}
		}
		if err := s.adjust(ctx, tx, q, a.AuthorID, s.reputation); err != nil {
			return err
		}

		evt = &AnswerAccepted{
			QuestionID:       q.ID,
			QuestionTitle:    q.Title,
			QuestionAuthorID: q.AuthorID,
			AnswerID:         a.ID,
			AnswerAuthorID:   a.AuthorID,
			PreviousAnswerID: q.AcceptedAnswerID,
		}
		accepted := a.ID
		question.AcceptedAnswerID = &accepted
		question.IsResolved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if evt != nil {
		metrics.AcceptancesTotal.Inc()
		logging.Ctx(ctx).Info().
			Int64("question_id", evt.QuestionID).
			Int64("answer_id", evt.AnswerID).
			Msg("answer accepted")
		s.emit(context.WithoutCancel(ctx), *evt)
	}
	return question, nil
}

// adjust moves acceptance reputation, skipping answers written by the question author.
func (s *AcceptanceService) adjust(ctx context.Context, tx database.Service, q *models.Question, userID int64, delta int) error {
	if delta == 0 || userID == q.AuthorID {
		return nil
	}
	return tx.AdjustReputation(ctx, userID, delta)
}

func (s *AcceptanceService) emit(ctx context.Context, evt AnswerAccepted) {
	for _, l := range s.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Ctx(ctx).Error().Interface("panic", r).Msg("acceptance listener panicked")
				}
			}()
			l(ctx, evt)
		}()
	}
}

// PublishAcceptance pushes acceptance events to the question's room.
func PublishAcceptance(pub Publisher) AcceptanceListener {
	return func(_ context.Context, evt AnswerAccepted) {
		pub.PublishToQuestion(evt.QuestionID, EventAnswerAccepted, map[string]any{
			"question_id":        evt.QuestionID,
			"answer_id":          evt.AnswerID,
			"previous_answer_id": evt.PreviousAnswerID,
		})
	}
}
