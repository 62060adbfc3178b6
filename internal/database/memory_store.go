package database

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type voteKey struct {
	userID     int64
	targetType models.TargetType
	targetID   int64
}

type memTables struct {
	seq           int64
	users         map[int64]models.User
	questions     map[int64]models.Question
	answers       map[int64]models.Answer
	comments      map[int64]models.Comment
	votes         map[int64]models.Vote
	voteKeys      map[voteKey]int64
	notifications map[int64]models.Notification
}

// snapshot copies the maps. Stored values never share slices with callers,
// so a shallow copy is enough to roll back.
func (t *memTables) snapshot() *memTables {
	return &memTables{
		seq:           t.seq,
		users:         maps.Clone(t.users),
		questions:     maps.Clone(t.questions),
		answers:       maps.Clone(t.answers),
		comments:      maps.Clone(t.comments),
		votes:         maps.Clone(t.votes),
		voteKeys:      maps.Clone(t.voteKeys),
		notifications: maps.Clone(t.notifications),
	}
}

type memState struct {
	txMu sync.Mutex   // one writer (transaction or single mutation) at a time
	mu   sync.RWMutex // guards t
	t    *memTables
}

// MemoryStore keeps everything in process memory. Writers are serialized, a
// failed Transact restores the tables, and reads are never blocked by an open
// transaction. Readers outside a transaction are read-uncommitted: they can
// observe writes of an open transaction that is later rolled back.
// Used for local runs (DB_DRIVER=memory) and tests.
type MemoryStore struct {
	state *memState
	inTx  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{t: &memTables{
		users:         map[int64]models.User{},
		questions:     map[int64]models.Question{},
		answers:       map[int64]models.Answer{},
		comments:      map[int64]models.Comment{},
		votes:         map[int64]models.Vote{},
		voteKeys:      map[voteKey]int64{},
		notifications: map[int64]models.Notification{},
	}}}
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(tx Service) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state.txMu.Lock()
	defer s.state.txMu.Unlock()

	s.state.mu.RLock()
	saved := s.state.t.snapshot()
	s.state.mu.RUnlock()

	if err := fn(&MemoryStore{state: s.state, inTx: true}); err != nil {
		s.state.mu.Lock()
		s.state.t = saved
		s.state.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) write(fn func(t *memTables) error) error {
	if !s.inTx {
		s.state.txMu.Lock()
		defer s.state.txMu.Unlock()
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return fn(s.state.t)
}

func (s *MemoryStore) read(fn func(t *memTables) error) error {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return fn(s.state.t)
}

func (t *memTables) nextID() int64 {
	t.seq++
	return t.seq
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, models.ErrNotFound)
}

func cloneVotes(v models.VoteSet) models.VoteSet {
	c := v.Clone()
	if c.Upvoters == nil {
		c.Upvoters = pq.Int64Array{}
	}
	if c.Downvoters == nil {
		c.Downvoters = pq.Int64Array{}
	}
	return c
}

// Users

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	return s.write(func(t *memTables) error {
		for _, existing := range t.users {
			if existing.Email == u.Email || existing.Username == u.Username {
				return fmt.Errorf("create user: %w", models.ErrConflict)
			}
		}
		now := time.Now().UTC()
		u.ID = t.nextID()
		if u.Role == "" {
			u.Role = models.RoleUser
		}
		u.CreatedAt, u.UpdatedAt = now, now
		t.users[u.ID] = *u
		return nil
	})
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	var out models.User
	err := s.read(func(t *memTables) error {
		u, ok := t.users[id]
		if !ok {
			return notFound("user", id)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := s.read(func(t *memTables) error {
		for _, u := range t.users {
			if u.Email == email {
				out = &u
				return nil
			}
		}
		return fmt.Errorf("user: %w", models.ErrNotFound)
	})
	return out, err
}

func (s *MemoryStore) GetUserSummaries(_ context.Context, ids []int64) (map[int64]models.UserSummary, error) {
	out := make(map[int64]models.UserSummary, len(ids))
	err := s.read(func(t *memTables) error {
		for _, id := range ids {
			if u, ok := t.users[id]; ok {
				out[id] = u.Summary()
			}
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) AdjustReputation(_ context.Context, userID int64, delta int) error {
	return s.write(func(t *memTables) error {
		u, ok := t.users[userID]
		if !ok {
			return notFound("user", userID)
		}
		u.Reputation += delta
		t.users[userID] = u
		return nil
	})
}

// Questions

func (s *MemoryStore) CreateQuestion(_ context.Context, q *models.Question) error {
	return s.write(func(t *memTables) error {
		now := time.Now().UTC()
		q.ID = t.nextID()
		q.CreatedAt, q.UpdatedAt = now, now
		q.VoteSet = cloneVotes(q.VoteSet)
		stored := *q
		stored.Tags = slices.Clone(q.Tags)
		stored.VoteSet = cloneVotes(q.VoteSet)
		t.questions[q.ID] = stored
		return nil
	})
}

func (s *MemoryStore) GetQuestion(_ context.Context, id int64, _ bool) (*models.Question, error) {
	var out models.Question
	err := s.read(func(t *memTables) error {
		q, ok := t.questions[id]
		if !ok {
			return notFound("question", id)
		}
		out = q
		out.Tags = slices.Clone(q.Tags)
		out.VoteSet = cloneVotes(q.VoteSet)
		if q.AcceptedAnswerID != nil {
			v := *q.AcceptedAnswerID
			out.AcceptedAnswerID = &v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) SaveQuestionVotes(_ context.Context, id int64, votes models.VoteSet) error {
	return s.write(func(t *memTables) error {
		q, ok := t.questions[id]
		if !ok {
			return notFound("question", id)
		}
		q.VoteSet = cloneVotes(votes)
		q.UpdatedAt = time.Now().UTC()
		t.questions[id] = q
		return nil
	})
}

func (s *MemoryStore) SetAcceptedAnswer(_ context.Context, questionID, answerID int64) error {
	return s.write(func(t *memTables) error {
		q, ok := t.questions[questionID]
		if !ok {
			return notFound("question", questionID)
		}
		id := answerID
		q.AcceptedAnswerID = &id
		q.IsResolved = true
		q.UpdatedAt = time.Now().UTC()
		t.questions[questionID] = q
		return nil
	})
}

func (s *MemoryStore) ClearAcceptedAnswer(_ context.Context, questionID int64) error {
	return s.write(func(t *memTables) error {
		q, ok := t.questions[questionID]
		if !ok {
			return notFound("question", questionID)
		}
		q.AcceptedAnswerID = nil
		q.IsResolved = false
		q.UpdatedAt = time.Now().UTC()
		t.questions[questionID] = q
		return nil
	})
}

func (s *MemoryStore) IncrementViews(_ context.Context, id int64) error {
	return s.write(func(t *memTables) error {
		q, ok := t.questions[id]
		if !ok {
			return notFound("question", id)
		}
		q.Views++
		t.questions[id] = q
		return nil
	})
}

// Answers

func (s *MemoryStore) CreateAnswer(_ context.Context, a *models.Answer) error {
	return s.write(func(t *memTables) error {
		if _, ok := t.questions[a.QuestionID]; !ok {
			return fmt.Errorf("create answer: %w", models.ErrInvalidReference)
		}
		now := time.Now().UTC()
		a.ID = t.nextID()
		a.CreatedAt, a.UpdatedAt = now, now
		a.VoteSet = cloneVotes(a.VoteSet)
		if a.Comments == nil {
			a.Comments = []models.Comment{}
		}
		stored := *a
		stored.VoteSet = cloneVotes(a.VoteSet)
		stored.Comments = nil
		t.answers[a.ID] = stored
		return nil
	})
}

func (s *MemoryStore) GetAnswer(_ context.Context, id int64, _ bool) (*models.Answer, error) {
	var out models.Answer
	err := s.read(func(t *memTables) error {
		a, ok := t.answers[id]
		if !ok {
			return notFound("answer", id)
		}
		out = a
		out.VoteSet = cloneVotes(a.VoteSet)
		out.Comments = t.commentsFor(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *memTables) commentsFor(answerID int64) []models.Comment {
	out := []models.Comment{}
	for _, c := range t.comments {
		if c.AnswerID == answerID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Comment) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s *MemoryStore) ListAnswers(_ context.Context, questionID int64, offset, limit int) ([]models.Answer, int64, error) {
	out := []models.Answer{}
	err := s.read(func(t *memTables) error {
		for _, a := range t.answers {
			if a.QuestionID != questionID {
				continue
			}
			a.VoteSet = cloneVotes(a.VoteSet)
			a.Comments = t.commentsFor(a.ID)
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	slices.SortFunc(out, func(a, b models.Answer) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	total := int64(len(out))
	return paginate(out, offset, limit), total, nil
}

func (s *MemoryStore) SaveAnswerVotes(_ context.Context, id int64, votes models.VoteSet) error {
	return s.write(func(t *memTables) error {
		a, ok := t.answers[id]
		if !ok {
			return notFound("answer", id)
		}
		a.VoteSet = cloneVotes(votes)
		a.UpdatedAt = time.Now().UTC()
		t.answers[id] = a
		return nil
	})
}

func (s *MemoryStore) SetAnswerAccepted(_ context.Context, id int64, accepted bool) error {
	return s.write(func(t *memTables) error {
		a, ok := t.answers[id]
		if !ok {
			return notFound("answer", id)
		}
		a.IsAccepted = accepted
		t.answers[id] = a
		return nil
	})
}

func (s *MemoryStore) CreateComment(_ context.Context, c *models.Comment) error {
	return s.write(func(t *memTables) error {
		if _, ok := t.answers[c.AnswerID]; !ok {
			return fmt.Errorf("create comment: %w", models.ErrInvalidReference)
		}
		now := time.Now().UTC()
		c.ID = t.nextID()
		c.CreatedAt, c.UpdatedAt = now, now
		t.comments[c.ID] = *c
		return nil
	})
}

func (s *MemoryStore) DeleteAnswer(_ context.Context, id int64) error {
	return s.write(func(t *memTables) error {
		if _, ok := t.answers[id]; !ok {
			return notFound("answer", id)
		}
		for cid, c := range t.comments {
			if c.AnswerID == id {
				delete(t.comments, cid)
			}
		}
		for key, vid := range t.voteKeys {
			if key.targetType == models.TargetAnswer && key.targetID == id {
				delete(t.voteKeys, key)
				delete(t.votes, vid)
			}
		}
		delete(t.answers, id)
		return nil
	})
}

// Votes

func (s *MemoryStore) GetVote(_ context.Context, userID int64, targetType models.TargetType, targetID int64) (*models.Vote, error) {
	var out models.Vote
	err := s.read(func(t *memTables) error {
		id, ok := t.voteKeys[voteKey{userID, targetType, targetID}]
		if !ok {
			return fmt.Errorf("vote: %w", models.ErrNotFound)
		}
		out = t.votes[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) CreateVote(_ context.Context, v *models.Vote) error {
	return s.write(func(t *memTables) error {
		key := voteKey{v.UserID, v.TargetType, v.TargetID}
		if _, exists := t.voteKeys[key]; exists {
			return fmt.Errorf("create vote: %w", models.ErrConflict)
		}
		now := time.Now().UTC()
		v.ID = t.nextID()
		v.CreatedAt, v.UpdatedAt = now, now
		t.votes[v.ID] = *v
		t.voteKeys[key] = v.ID
		return nil
	})
}

func (s *MemoryStore) UpdateVoteDirection(_ context.Context, id int64, d models.Direction) error {
	return s.write(func(t *memTables) error {
		v, ok := t.votes[id]
		if !ok {
			return notFound("vote", id)
		}
		v.VoteType = d
		v.UpdatedAt = time.Now().UTC()
		t.votes[id] = v
		return nil
	})
}

func (s *MemoryStore) DeleteVote(_ context.Context, id int64) error {
	return s.write(func(t *memTables) error {
		v, ok := t.votes[id]
		if !ok {
			return nil
		}
		delete(t.votes, id)
		delete(t.voteKeys, voteKey{v.UserID, v.TargetType, v.TargetID})
		return nil
	})
}

// Notifications

func (s *MemoryStore) CreateNotification(_ context.Context, n *models.Notification) error {
	return s.write(func(t *memTables) error {
		n.ID = t.nextID()
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		t.notifications[n.ID] = *n
		return nil
	})
}

func (s *MemoryStore) GetNotification(_ context.Context, id int64) (*models.Notification, error) {
	var out models.Notification
	err := s.read(func(t *memTables) error {
		n, ok := t.notifications[id]
		if !ok {
			return notFound("notification", id)
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, recipientID int64, offset, limit int) ([]models.Notification, int64, error) {
	out := []models.Notification{}
	err := s.read(func(t *memTables) error {
		for _, n := range t.notifications {
			if n.RecipientID == recipientID {
				out = append(out, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	slices.SortFunc(out, func(a, b models.Notification) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	total := int64(len(out))
	return paginate(out, offset, limit), total, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, recipientID int64) (int64, error) {
	var n int64
	err := s.read(func(t *memTables) error {
		for _, item := range t.notifications {
			if item.RecipientID == recipientID && !item.IsRead {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id int64, at time.Time) error {
	return s.write(func(t *memTables) error {
		n, ok := t.notifications[id]
		if !ok {
			return notFound("notification", id)
		}
		n.IsRead = true
		n.ReadAt = &at
		t.notifications[id] = n
		return nil
	})
}

func (s *MemoryStore) MarkAllNotificationsRead(_ context.Context, recipientID int64, at time.Time) (int64, error) {
	var changed int64
	err := s.write(func(t *memTables) error {
		for id, n := range t.notifications {
			if n.RecipientID != recipientID || n.IsRead {
				continue
			}
			n.IsRead = true
			n.ReadAt = &at
			t.notifications[id] = n
			changed++
		}
		return nil
	})
	return changed, err
}

func (s *MemoryStore) DeleteNotification(_ context.Context, id int64) error {
	return s.write(func(t *memTables) error {
		delete(t.notifications, id)
		return nil
	})
}

func (s *MemoryStore) Health(context.Context) map[string]string {
	stats := map[string]string{"status": "up", "driver": "memory"}
	_ = s.read(func(t *memTables) error {
		stats["users"] = fmt.Sprint(len(t.users))
		stats["questions"] = fmt.Sprint(len(t.questions))
		return nil
	})
	return stats
}

func (s *MemoryStore) Close() error { return nil }

func paginate[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		return items
	}
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

var _ Service = (*MemoryStore)(nil)
