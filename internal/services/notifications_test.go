package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

func TestAnswerNotifiesQuestionAuthor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	helper := env.user(t, "helper")
	q := env.question(t, asker.ID)

	a := env.answer(t, helper.ID, q.ID)

	page, err := env.svc.Notifications.List(ctx, asker.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	n := page.Notifications[0]
	assert.Equal(t, models.NotificationQuestionAnswered, n.Type)
	assert.Equal(t, "helper answered your question: "+q.Title, n.Message)
	assert.Equal(t, helper.ID, n.SenderID)
	require.NotNil(t, n.Sender)
	assert.Equal(t, "helper", n.Sender.Username)
	require.NotNil(t, n.RelatedAnswerID)
	assert.Equal(t, a.ID, *n.RelatedAnswerID)
	assert.EqualValues(t, 1, page.UnreadCount)

	pushes := env.pub.userEvents(asker.ID)
	require.Len(t, pushes, 1)
	assert.Equal(t, EventNotification, pushes[0].Event)
	assert.Len(t, env.pub.questionEvents(EventAnswerCreated), 1)
}

func TestSelfAnswerDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	q := env.question(t, asker.ID)
	env.answer(t, asker.ID, q.ID)

	count, err := env.svc.Notifications.UnreadCount(ctx, asker.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, env.pub.userEvents(asker.ID))
}

func TestCommentNotifiesAnswerAuthor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	helper := env.user(t, "helper")
	q := env.question(t, asker.ID)
	a := env.answer(t, helper.ID, q.ID)

	c, err := env.svc.Answers.AddComment(ctx, asker.ID, a.ID, "thanks, that worked")
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.AnswerID)

	page, err := env.svc.Notifications.List(ctx, helper.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, models.NotificationAnswerCommented, page.Notifications[0].Type)
	assert.Equal(t, "asker commented on your answer", page.Notifications[0].Message)

	// commenting on your own answer is silent
	_, err = env.svc.Answers.AddComment(ctx, helper.ID, a.ID, "edit: also works on 1.22")
	require.NoError(t, err)
	count, err := env.svc.Notifications.UnreadCount(ctx, helper.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = env.svc.Answers.AddComment(ctx, asker.ID, 9999, "hello")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAnswerSucceedsWhenNotificationFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnvWithStore(t, failingNotifications{database.NewMemoryStore()})
	asker := env.user(t, "asker")
	helper := env.user(t, "helper")
	q := env.question(t, asker.ID)

	a, err := env.svc.Answers.Create(ctx, helper.ID, models.CreateAnswerRequest{
		QuestionID: q.ID,
		Content:    strings.Repeat("still saved ", 4),
	})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)

	stored, err := env.store.GetAnswer(ctx, a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, helper.ID, stored.AuthorID)
	assert.Empty(t, env.pub.userEvents(asker.ID))
}

func TestMarkAsRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	helper := env.user(t, "helper")
	q := env.question(t, asker.ID)
	env.answer(t, helper.ID, q.ID)

	page, err := env.svc.Notifications.List(ctx, asker.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	id := page.Notifications[0].ID

	_, err = env.svc.Notifications.MarkAsRead(ctx, id, helper.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.Notifications.MarkAsRead(ctx, 9999, asker.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	n, err := env.svc.Notifications.MarkAsRead(ctx, id, asker.ID)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)
	firstRead := *n.ReadAt

	again, err := env.svc.Notifications.MarkAsRead(ctx, id, asker.ID)
	require.NoError(t, err)
	assert.Equal(t, firstRead, *again.ReadAt)

	count, err := env.svc.Notifications.UnreadCount(ctx, asker.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkAllAsReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	helper := env.user(t, "helper")
	q := env.question(t, asker.ID)
	env.answer(t, helper.ID, q.ID)
	env.answer(t, helper.ID, q.ID)

	changed, err := env.svc.Notifications.MarkAllAsRead(ctx, asker.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	for range 2 {
		_, err := env.svc.Notifications.MarkAllAsRead(ctx, asker.ID)
		require.NoError(t, err)
		count, err := env.svc.Notifications.UnreadCount(ctx, asker.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	}

	// a user with nothing to read is fine too
	changed, err = env.svc.Notifications.MarkAllAsRead(ctx, helper.ID)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestListNotificationsPagination(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	helper := env.user(t, "helper")
	q := env.question(t, asker.ID)
	for range 5 {
		env.answer(t, helper.ID, q.ID)
	}

	page, err := env.svc.Notifications.List(ctx, asker.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 2)
	assert.Equal(t, models.Pagination{Page: 2, Limit: 2, Total: 5, Pages: 3}, page.Pagination)
	assert.EqualValues(t, 5, page.UnreadCount)

	first, err := env.svc.Notifications.List(ctx, asker.ID, 1, 2)
	require.NoError(t, err)
	assert.Greater(t, first.Notifications[0].ID, page.Notifications[0].ID)

	clamped, err := env.svc.Notifications.List(ctx, asker.ID, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Pagination.Page)
	assert.Equal(t, MaxNotificationLimit, clamped.Pagination.Limit)
}

func TestDeleteNotification(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	asker := env.user(t, "asker")
	helper := env.user(t, "helper")
	q := env.question(t, asker.ID)
	env.answer(t, helper.ID, q.ID)

	page, err := env.svc.Notifications.List(ctx, asker.ID, 1, 20)
	require.NoError(t, err)
	id := page.Notifications[0].ID

	assert.ErrorIs(t, env.svc.Notifications.Delete(ctx, id, helper.ID), models.ErrForbidden)
	require.NoError(t, env.svc.Notifications.Delete(ctx, id, asker.ID))
	assert.ErrorIs(t, env.svc.Notifications.Delete(ctx, id, asker.ID), models.ErrNotFound)
}

func TestNotifyRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Notifications.Notify(context.Background(), NotifyParams{
		RecipientID: 1, SenderID: 2, Type: "poke", Message: "hi",
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}
