package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type published struct {
	ID      int64
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu       sync.Mutex
	user     []published
	question []published
}

func (p *recordingPublisher) PublishToUser(id int64, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = append(p.user, published{id, event, payload})
}

func (p *recordingPublisher) PublishToQuestion(id int64, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.question = append(p.question, published{id, event, payload})
}

func (p *recordingPublisher) questionEvents(event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.question {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) userEvents(userID int64) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.user {
		if e.ID == userID {
			out = append(out, e)
		}
	}
	return out
}

// failingNotifications refuses to store notifications.
type failingNotifications struct {
	*database.MemoryStore
}

func (failingNotifications) CreateNotification(context.Context, *models.Notification) error {
	return errors.New("notifications table unavailable")
}

type testEnv struct {
	svc   *Services
	store database.Service
	pub   *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, database.NewMemoryStore())
}

func newTestEnvWithStore(t *testing.T, store database.Service) *testEnv {
	t.Helper()
	pub := &recordingPublisher{}
	return &testEnv{
		svc:   New(store, Options{Publisher: pub, AcceptReputation: 15}),
		store: store,
		pub:   pub,
	}
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) question(t *testing.T, authorID int64) *models.Question {
	t.Helper()
	q, err := e.svc.Questions.Create(context.Background(), authorID, models.CreateQuestionRequest{
		Title:       "How do I cancel a context?",
		Description: strings.Repeat("context cancellation details ", 3),
		Tags:        []string{"go", "context"},
	})
	require.NoError(t, err)
	return q
}

func (e *testEnv) answer(t *testing.T, authorID, questionID int64) *models.Answer {
	t.Helper()
	a, err := e.svc.Answers.Create(context.Background(), authorID, models.CreateAnswerRequest{
		QuestionID: questionID,
		Content:    strings.Repeat("call the cancel func ", 3),
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) reputation(t *testing.T, userID int64) int {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Reputation
}
