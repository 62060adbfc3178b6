package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// VoteService is the vote ledger: one vote per (voter, target), applied as a
// tri-state toggle with the target row locked for the whole read-modify-write.
type VoteService struct {
	store database.Service
	pub   Publisher
}

func NewVoteService(store database.Service, pub Publisher) *VoteService {
	return &VoteService{store: store, pub: pub}
}

func lockTarget(ctx context.Context, tx database.Service, t models.TargetType, id int64) (models.Target, error) {
	switch t {
	case models.TargetQuestion:
		q, err := tx.GetQuestion(ctx, id, true)
		if err != nil {
			return models.Target{}, err
		}
		return q.Target(), nil
	case models.TargetAnswer:
		a, err := tx.GetAnswer(ctx, id, true)
		if err != nil {
			return models.Target{}, err
		}
		return a.Target(), nil
	default:
		return models.Target{}, validationError("unknown target type %q", t)
	}
}

func saveTargetVotes(ctx context.Context, tx database.Service, target models.Target) error {
	if target.Type == models.TargetQuestion {
		return tx.SaveQuestionVotes(ctx, target.ID, target.Votes)
	}
	return tx.SaveAnswerVotes(ctx, target.ID, target.Votes)
}

// CastVote applies dir from voterID to the target and returns the resulting
// score along with the score and author reputation deltas.
func (s *VoteService) CastVote(ctx context.Context, voterID int64, targetType models.TargetType, targetID int64, dir models.Direction) (*models.VoteResult, error) {
	if !targetType.Valid() {
		return nil, validationError("unknown target type %q", targetType)
	}
	if _, err := models.ParseDirection(string(dir)); err != nil {
		return nil, err
	}

	var result models.VoteResult
	err := s.store.Transact(ctx, func(tx database.Service) error {
		target, err := lockTarget(ctx, tx, targetType, targetID)
		if err != nil {
			return err
		}
		if target.AuthorID == voterID {
			return models.ErrSelfVote
		}

		current := models.NoVote
		existing, err := tx.GetVote(ctx, voterID, targetType, targetID)
		switch {
		case err == nil:
			current = models.StateOf(existing.VoteType)
		case errors.Is(err, models.ErrNotFound):
		default:
			return err
		}

		next, transition := models.NextVote(current, dir)
		switch transition {
		case models.TransitionCast:
			err = tx.CreateVote(ctx, &models.Vote{
				UserID:     voterID,
				TargetType: targetType,
				TargetID:   targetID,
				VoteType:   dir,
			})
		case models.TransitionRetract:
			err = tx.DeleteVote(ctx, existing.ID)
		case models.TransitionFlip:
			err = tx.UpdateVoteDirection(ctx, existing.ID, dir)
		}
		if err != nil {
			return err
		}

		before := target.Votes.Recompute()
		target.Votes.Set(voterID, next)
		if err := saveTargetVotes(ctx, tx, target); err != nil {
			return err
		}

		repDelta := models.ReputationContribution(targetType, next) - models.ReputationContribution(targetType, current)
		if repDelta != 0 {
			if err := tx.AdjustReputation(ctx, target.AuthorID, repDelta); err != nil {
				return fmt.Errorf("adjust author reputation: %w", err)
			}
		}

		result = models.VoteResult{
			TargetType:      targetType,
			TargetID:        targetID,
			QuestionID:      target.QuestionID,
			Transition:      transition,
			UserVote:        next.String(),
			VoteScore:       target.Votes.Score,
			ScoreDelta:      target.Votes.Score - before,
			ReputationDelta: repDelta,
		}
		return nil
	})
	if err != nil {
		metrics.RecordVoteRejection(rejectionReason(err))
		return nil, err
	}

	metrics.RecordVote(string(targetType), string(result.Transition))
	logging.Ctx(ctx).Debug().
		Str("target_type", string(targetType)).
		Int64("target_id", targetID).
		Str("transition", string(result.Transition)).
		Int("vote_score", result.VoteScore).
		Msg("vote applied")

	s.pub.PublishToQuestion(result.QuestionID, EventVoteUpdated, map[string]any{
		"target_type": result.TargetType,
		"target_id":   result.TargetID,
		"vote_score":  result.VoteScore,
	})
	return &result, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, models.ErrSelfVote):
		return "self_vote"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
