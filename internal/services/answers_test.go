package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

func TestDeleteAnswerPermissions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	author := env.user(t, "author")
	moderator := env.user(t, "moderator")
	q := env.question(t, asker.ID)
	own := env.answer(t, author.ID, q.ID)
	moderated := env.answer(t, author.ID, q.ID)

	tests := []struct {
		name     string
		actor    int64
		role     string
		answerID int64
		want     error
	}{
		{"question author is not the answer author", asker.ID, models.RoleUser, own.ID, models.ErrForbidden},
		{"missing answer", author.ID, models.RoleUser, 9999, models.ErrNotFound},
		{"answer author", author.ID, models.RoleUser, own.ID, nil},
		{"admin", moderator.ID, models.RoleAdmin, moderated.ID, nil},
		{"already deleted", author.ID, models.RoleUser, own.ID, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.Answers.Delete(ctx, tt.actor, tt.role, tt.answerID)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	answers, _, err := env.store.ListAnswers(ctx, q.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, answers)
	assert.Len(t, env.pub.questionEvents(EventAnswerDeleted), 2)
}

func TestDeleteAcceptedAnswerUnresolvesQuestion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	author := env.user(t, "author")
	up1 := env.user(t, "up1")
	up2 := env.user(t, "up2")
	down := env.user(t, "down")
	q := env.question(t, asker.ID)
	a := env.answer(t, author.ID, q.ID)

	for _, v := range []*models.User{up1, up2} {
		_, err := env.svc.Votes.CastVote(ctx, v.ID, models.TargetAnswer, a.ID, models.Upvote)
		require.NoError(t, err)
	}
	_, err := env.svc.Votes.CastVote(ctx, down.ID, models.TargetAnswer, a.ID, models.Downvote)
	require.NoError(t, err)
	_, err = env.svc.Acceptance.AcceptAnswer(ctx, asker.ID, q.ID, a.ID)
	require.NoError(t, err)
	require.Equal(t, 2*10-2+15, env.reputation(t, author.ID))

	require.NoError(t, env.svc.Answers.Delete(ctx, author.ID, models.RoleUser, a.ID))

	stored, err := env.store.GetQuestion(ctx, q.ID, false)
	require.NoError(t, err)
	assert.Nil(t, stored.AcceptedAnswerID)
	assert.False(t, stored.IsResolved)
	assert.Equal(t, 0, env.reputation(t, author.ID))

	_, err = env.store.GetVote(ctx, up1.ID, models.TargetAnswer, a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	events := env.pub.questionEvents(EventAnswerDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, q.ID, events[0].ID)
	assert.Equal(t, true, events[0].Payload.(map[string]any)["unresolved"])

	// The question can be resolved again afterwards.
	next := env.answer(t, author.ID, q.ID)
	_, err = env.svc.Acceptance.AcceptAnswer(ctx, asker.ID, q.ID, next.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, env.reputation(t, author.ID))
}

func TestDeleteOwnAcceptedSelfAnswerKeepsReputation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	q := env.question(t, asker.ID)
	a := env.answer(t, asker.ID, q.ID)

	_, err := env.svc.Acceptance.AcceptAnswer(ctx, asker.ID, q.ID, a.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Answers.Delete(ctx, asker.ID, models.RoleUser, a.ID))

	assert.Equal(t, 0, env.reputation(t, asker.ID))
	stored, err := env.store.GetQuestion(ctx, q.ID, false)
	require.NoError(t, err)
	assert.False(t, stored.IsResolved)
}

func TestDeleteAnswerRollsBackOnForbidden(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	author := env.user(t, "author")
	q := env.question(t, asker.ID)
	a := env.answer(t, author.ID, q.ID)
	_, err := env.svc.Acceptance.AcceptAnswer(ctx, asker.ID, q.ID, a.ID)
	require.NoError(t, err)

	err = env.svc.Answers.Delete(ctx, asker.ID, models.RoleUser, a.ID)
	require.ErrorIs(t, err, models.ErrForbidden)

	stored, err := env.store.GetQuestion(ctx, q.ID, false)
	require.NoError(t, err)
	require.NotNil(t, stored.AcceptedAnswerID)
	assert.Equal(t, a.ID, *stored.AcceptedAnswerID)
	assert.Equal(t, 15, env.reputation(t, author.ID))
	assert.Empty(t, env.pub.questionEvents(EventAnswerDeleted))
}
