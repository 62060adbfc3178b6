package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"
)

type TargetType string

const (
	TargetQuestion TargetType = "question"
	TargetAnswer   TargetType = "answer"
)

func (t TargetType) Valid() bool {
	return t == TargetQuestion || t == TargetAnswer
}

type Direction string

const (
	Upvote   Direction = "upvote"
	Downvote Direction = "downvote"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Upvote, Downvote:
		return Direction(s), nil
	}
	return "", fmt.Errorf("%w: vote_type must be %q or %q", ErrValidation, Upvote, Downvote)
}

// Vote model - one row per (user, target), enforced by idx_votes_user_target
type Vote struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	UserID     int64      `gorm:"not null;uniqueIndex:idx_votes_user_target" json:"user_id"`
	TargetType TargetType `gorm:"type:varchar(16);not null;uniqueIndex:idx_votes_user_target" json:"target_type"`
	TargetID   int64      `gorm:"not null;uniqueIndex:idx_votes_user_target" json:"target_id"`
	VoteType   Direction  `gorm:"type:varchar(8);not null" json:"vote_type"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// VoteState is the voter's standing on a single target.
type VoteState int

const (
	NoVote VoteState = iota
	Upvoted
	Downvoted
)

func (s VoteState) String() string {
	switch s {
	case Upvoted:
		return "upvoted"
	case Downvoted:
		return "downvoted"
	default:
		return "none"
	}
}

func StateOf(d Direction) VoteState {
	if d == Upvote {
		return Upvoted
	}
	return Downvoted
}

// Transition names the ledger mutation that moves a voter between states.
type Transition string

const (
	TransitionCast    Transition = "cast"    // insert
	TransitionRetract Transition = "retract" // same direction again, delete
	TransitionFlip    Transition = "flip"    // opposite direction, update
)

// NextVote resolves a vote request against the voter's current state.
func NextVote(current VoteState, d Direction) (VoteState, Transition) {
	requested := StateOf(d)
	switch current {
	case NoVote:
		return requested, TransitionCast
	case requested:
		return NoVote, TransitionRetract
	default:
		return requested, TransitionFlip
	}
}

// ScoreContribution is what a single voter in state s adds to a target's score.
func ScoreContribution(s VoteState) int {
	switch s {
	case Upvoted:
		return 1
	case Downvoted:
		return -1
	default:
		return 0
	}
}

// Reputation units awarded to a target's author per standing vote.
const (
	QuestionUpvoteReputation   = 5
	QuestionDownvoteReputation = -2
	AnswerUpvoteReputation     = 10
	AnswerDownvoteReputation   = -2
)

// ReputationContribution is the reputation a single vote in state s is worth to the author.
func ReputationContribution(t TargetType, s VoteState) int {
	switch {
	case s == Upvoted && t == TargetQuestion:
		return QuestionUpvoteReputation
	case s == Upvoted && t == TargetAnswer:
		return AnswerUpvoteReputation
	case s == Downvoted && t == TargetQuestion:
		return QuestionDownvoteReputation
	case s == Downvoted && t == TargetAnswer:
		return AnswerDownvoteReputation
	default:
		return 0
	}
}

// VoteSet holds the voter identities of a question or answer. Score is derived, never incremented.
type VoteSet struct {
	Upvoters   pq.Int64Array `gorm:"type:bigint[];not null;default:'{}'" json:"upvoters"`
	Downvoters pq.Int64Array `gorm:"type:bigint[];not null;default:'{}'" json:"downvoters"`
	Score      int           `gorm:"column:vote_score;not null;default:0;index" json:"vote_score"`
}

func NewVoteSet() VoteSet {
	return VoteSet{Upvoters: pq.Int64Array{}, Downvoters: pq.Int64Array{}}
}

func (v *VoteSet) State(userID int64) VoteState {
	switch {
	case slices.Contains(v.Upvoters, userID):
		return Upvoted
	case slices.Contains(v.Downvoters, userID):
		return Downvoted
	default:
		return NoVote
	}
}

// Set places userID in exactly the set matching s (or neither) and recomputes the score.
func (v *VoteSet) Set(userID int64, s VoteState) {
	v.Upvoters = removeID(v.Upvoters, userID)
	v.Downvoters = removeID(v.Downvoters, userID)
	switch s {
	case Upvoted:
		v.Upvoters = append(v.Upvoters, userID)
	case Downvoted:
		v.Downvoters = append(v.Downvoters, userID)
	}
	v.Recompute()
}

func (v *VoteSet) Recompute() int {
	v.Score = len(v.Upvoters) - len(v.Downvoters)
	return v.Score
}

// Reputation is what the standing votes are worth to the target's author.
func (v VoteSet) Reputation(t TargetType) int {
	return len(v.Upvoters)*ReputationContribution(t, Upvoted) +
		len(v.Downvoters)*ReputationContribution(t, Downvoted)
}

func (v VoteSet) Clone() VoteSet {
	return VoteSet{
		Upvoters:   slices.Clone(v.Upvoters),
		Downvoters: slices.Clone(v.Downvoters),
		Score:      v.Score,
	}
}

func removeID(ids pq.Int64Array, id int64) pq.Int64Array {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	if out == nil {
		out = pq.Int64Array{}
	}
	return out
}

// Target is the votable view of a question or answer.
type Target struct {
	Type       TargetType
	ID         int64
	AuthorID   int64
	QuestionID int64
	Votes      VoteSet
}

type VoteRequest struct {
	VoteType string `json:"vote_type" binding:"required,oneof=upvote downvote"`
}

type VoteResult struct {
	TargetType      TargetType `json:"target_type"`
	TargetID        int64      `json:"target_id"`
	QuestionID      int64      `json:"question_id"`
	Transition      Transition `json:"transition"`
	UserVote        string     `json:"user_vote"`
	VoteScore       int        `json:"vote_score"`
	ScoreDelta      int        `json:"score_delta"`
	ReputationDelta int        `json:"reputation_delta"`
}
