package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// runStoreContract checks the behaviour every Service implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Service) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("votes", func(t *testing.T) { testVotes(t, newStore(t)) })
	t.Run("answers", func(t *testing.T) { testAnswers(t, newStore(t)) })
	t.Run("acceptance", func(t *testing.T) { testAcceptanceColumns(t, newStore(t)) })
	t.Run("delete answer", func(t *testing.T) { testDeleteAnswer(t, newStore(t)) })
	t.Run("notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("transact rollback", func(t *testing.T) { testTransactRollback(t, newStore(t)) })
}

func mustUser(t *testing.T, s Service, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func mustQuestion(t *testing.T, s Service, authorID int64) *models.Question {
	t.Helper()
	q := &models.Question{
		Title:       "A question title",
		Description: "A question description long enough",
		Tags:        pq.StringArray{"go"},
		AuthorID:    authorID,
		VoteSet:     models.NewVoteSet(),
	}
	require.NoError(t, s.CreateQuestion(context.Background(), q))
	return q
}

func mustAnswer(t *testing.T, s Service, questionID, authorID int64) *models.Answer {
	t.Helper()
	a := &models.Answer{
		QuestionID: questionID,
		Content:    "An answer body that is long enough",
		AuthorID:   authorID,
		VoteSet:    models.NewVoteSet(),
	}
	require.NoError(t, s.CreateAnswer(context.Background(), a))
	return a
}

func testUsers(t *testing.T, s Service) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	assert.Positive(t, alice.ID)

	dup := &models.User{Username: "alice", Email: "other@example.com", Password: "x"}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), models.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	// Emails are normalised before they reach the store, which matches exactly.
	_, err = s.GetUserByEmail(ctx, "Alice@Example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.AdjustReputation(ctx, alice.ID, 10))
	require.NoError(t, s.AdjustReputation(ctx, alice.ID, -2))
	got, err = s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Reputation)

	_, err = s.GetUser(ctx, alice.ID+1000)
	assert.ErrorIs(t, err, models.ErrNotFound)

	summaries, err := s.GetUserSummaries(ctx, []int64{alice.ID, alice.ID + 1000})
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, "alice", summaries[alice.ID].Username)
}

func testVotes(t *testing.T, s Service) {
	ctx := context.Background()
	author := mustUser(t, s, "author")
	voter := mustUser(t, s, "voter")
	q := mustQuestion(t, s, author.ID)

	v := &models.Vote{UserID: voter.ID, TargetType: models.TargetQuestion, TargetID: q.ID, VoteType: models.Upvote}
	require.NoError(t, s.CreateVote(ctx, v))

	again := &models.Vote{UserID: voter.ID, TargetType: models.TargetQuestion, TargetID: q.ID, VoteType: models.Downvote}
	assert.ErrorIs(t, s.CreateVote(ctx, again), models.ErrConflict)

	// Same target id under a different type is a different key.
	other := &models.Vote{UserID: voter.ID, TargetType: models.TargetAnswer, TargetID: q.ID, VoteType: models.Upvote}
	require.NoError(t, s.CreateVote(ctx, other))

	require.NoError(t, s.UpdateVoteDirection(ctx, v.ID, models.Downvote))
	got, err := s.GetVote(ctx, voter.ID, models.TargetQuestion, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Downvote, got.VoteType)

	require.NoError(t, s.DeleteVote(ctx, v.ID))
	_, err = s.GetVote(ctx, voter.ID, models.TargetQuestion, q.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	votes := models.NewVoteSet()
	votes.Set(voter.ID, models.Downvoted)
	require.NoError(t, s.SaveQuestionVotes(ctx, q.ID, votes))

	stored, err := s.GetQuestion(ctx, q.ID, false)
	require.NoError(t, err)
	assert.Equal(t, -1, stored.Score)
	assert.Equal(t, []int64{voter.ID}, []int64(stored.Downvoters))
	assert.Empty(t, stored.Upvoters)
	assert.Equal(t, models.Downvoted, stored.VoteSet.State(voter.ID))
}

func testAnswers(t *testing.T, s Service) {
	ctx := context.Background()
	author := mustUser(t, s, "asker")
	responder := mustUser(t, s, "responder")
	voter := mustUser(t, s, "fan")
	q := mustQuestion(t, s, author.ID)

	first := mustAnswer(t, s, q.ID, responder.ID)
	second := mustAnswer(t, s, q.ID, responder.ID)

	votes := models.NewVoteSet()
	votes.Set(voter.ID, models.Upvoted)
	require.NoError(t, s.SaveAnswerVotes(ctx, second.ID, votes))

	answers, total, err := s.ListAnswers(ctx, q.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, answers, 2)
	assert.Equal(t, second.ID, answers[0].ID)
	assert.Equal(t, first.ID, answers[1].ID)

	page, total, err := s.ListAnswers(ctx, q.ID, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	c := &models.Comment{AnswerID: first.ID, Content: "nice", AuthorID: author.ID}
	require.NoError(t, s.CreateComment(ctx, c))
	answers, _, err = s.ListAnswers(ctx, q.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, answers[1].Comments, 1)
	assert.Equal(t, "nice", answers[1].Comments[0].Content)
	assert.Empty(t, answers[0].Comments)

	got, err := s.GetAnswer(ctx, second.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Score)

	_, err = s.GetAnswer(ctx, second.ID+1000, false)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func testAcceptanceColumns(t *testing.T, s Service) {
	ctx := context.Background()
	author := mustUser(t, s, "owner")
	responder := mustUser(t, s, "helper")
	q := mustQuestion(t, s, author.ID)
	a := mustAnswer(t, s, q.ID, responder.ID)

	require.NoError(t, s.Transact(ctx, func(tx Service) error {
		if _, err := tx.GetQuestion(ctx, q.ID, true); err != nil {
			return err
		}
		if err := tx.SetAnswerAccepted(ctx, a.ID, true); err != nil {
			return err
		}
		return tx.SetAcceptedAnswer(ctx, q.ID, a.ID)
	}))

	stored, err := s.GetQuestion(ctx, q.ID, false)
	require.NoError(t, err)
	require.NotNil(t, stored.AcceptedAnswerID)
	assert.Equal(t, a.ID, *stored.AcceptedAnswerID)
	assert.True(t, stored.IsResolved)

	answer, err := s.GetAnswer(ctx, a.ID, false)
	require.NoError(t, err)
	assert.True(t, answer.IsAccepted)

	require.NoError(t, s.IncrementViews(ctx, q.ID))
	require.NoError(t, s.IncrementViews(ctx, q.ID))
	stored, err = s.GetQuestion(ctx, q.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Views)
}

func testDeleteAnswer(t *testing.T, s Service) {
	ctx := context.Background()
	author := mustUser(t, s, "owner")
	responder := mustUser(t, s, "helper")
	voter := mustUser(t, s, "voter")
	q := mustQuestion(t, s, author.ID)
	a := mustAnswer(t, s, q.ID, responder.ID)
	kept := mustAnswer(t, s, q.ID, author.ID)

	require.NoError(t, s.CreateComment(ctx, &models.Comment{AnswerID: a.ID, AuthorID: voter.ID, Content: "thanks"}))
	require.NoError(t, s.CreateVote(ctx, &models.Vote{UserID: voter.ID, TargetType: models.TargetAnswer, TargetID: a.ID, VoteType: models.Upvote}))
	require.NoError(t, s.CreateVote(ctx, &models.Vote{UserID: voter.ID, TargetType: models.TargetAnswer, TargetID: kept.ID, VoteType: models.Upvote}))
	require.NoError(t, s.SetAcceptedAnswer(ctx, q.ID, a.ID))

	require.NoError(t, s.Transact(ctx, func(tx Service) error {
		if err := tx.ClearAcceptedAnswer(ctx, q.ID); err != nil {
			return err
		}
		return tx.DeleteAnswer(ctx, a.ID)
	}))

	_, err := s.GetAnswer(ctx, a.ID, false)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetVote(ctx, voter.ID, models.TargetAnswer, a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetVote(ctx, voter.ID, models.TargetAnswer, kept.ID)
	assert.NoError(t, err)

	answers, total, err := s.ListAnswers(ctx, q.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, answers, 1)
	assert.Equal(t, kept.ID, answers[0].ID)

	stored, err := s.GetQuestion(ctx, q.ID, false)
	require.NoError(t, err)
	assert.Nil(t, stored.AcceptedAnswerID)
	assert.False(t, stored.IsResolved)

	assert.ErrorIs(t, s.DeleteAnswer(ctx, a.ID), models.ErrNotFound)
	assert.ErrorIs(t, s.ClearAcceptedAnswer(ctx, 9999), models.ErrNotFound)
}

func testNotifications(t *testing.T, s Service) {
	ctx := context.Background()
	recipient := mustUser(t, s, "reader")
	sender := mustUser(t, s, "writer")

	base := time.Now().UTC().Add(-time.Hour)
	var ids []int64
	for i := range 3 {
		n := &models.Notification{
			RecipientID: recipient.ID,
			SenderID:    sender.ID,
			Type:        models.NotificationMention,
			Message:     fmt.Sprintf("message %d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateNotification(ctx, n))
		ids = append(ids, n.ID)
	}

	list, total, err := s.ListNotifications(ctx, recipient.ID, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)

	unread, err := s.CountUnread(ctx, recipient.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	require.NoError(t, s.MarkNotificationRead(ctx, ids[0], time.Now().UTC()))
	n, err := s.GetNotification(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	assert.NotNil(t, n.ReadAt)

	changed, err := s.MarkAllNotificationsRead(ctx, recipient.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	changed, err = s.MarkAllNotificationsRead(ctx, recipient.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, changed)

	unread, err = s.CountUnread(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	require.NoError(t, s.DeleteNotification(ctx, ids[1]))
	_, err = s.GetNotification(ctx, ids[1])
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func testTransactRollback(t *testing.T, s Service) {
	ctx := context.Background()
	alice := mustUser(t, s, "rollback")
	boom := errors.New("boom")

	err := s.Transact(ctx, func(tx Service) error {
		if err := tx.AdjustReputation(ctx, alice.ID, 50); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, &models.User{Username: "ghost", Email: "ghost@example.com", Password: "x"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Reputation)

	_, err = s.GetUserByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
