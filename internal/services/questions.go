package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/lib/pq"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

const (
	minTitleLen       = 10
	maxTitleLen       = 200
	minDescriptionLen = 30
	maxTags           = 5
	maxTagLen         = 30
	minAnswerLen      = 30
)

type QuestionService struct {
	store database.Service
}

func NewQuestionService(store database.Service) *QuestionService {
	return &QuestionService{store: store}
}

// normalizeTags lowercases, trims and de-duplicates tags, keeping first-seen order.
func normalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLen {
			return nil, validationError("tag %q is longer than %d characters", t, maxTagLen)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	if len(tags) < 1 || len(tags) > maxTags {
		return nil, validationError("must have between 1 and %d tags", maxTags)
	}
	return tags, nil
}

func (s *QuestionService) Create(ctx context.Context, authorID int64, req models.CreateQuestionRequest) (*models.Question, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)

	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return nil, validationError("title must be between %d and %d characters", minTitleLen, maxTitleLen)
	}
	if utf8.RuneCountInString(description) < minDescriptionLen {
		return nil, validationError("description must be at least %d characters", minDescriptionLen)
	}
	tags, err := normalizeTags(req.Tags)
	if err != nil {
		return nil, err
	}

	author, err := s.store.GetUser(ctx, authorID)
	if err != nil {
		return nil, err
	}

	q := &models.Question{
		Title:       title,
		Description: description,
		Tags:        pq.StringArray(tags),
		AuthorID:    authorID,
		VoteSet:     models.NewVoteSet(),
	}
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}
	summary := author.Summary()
	q.Author = &summary
	return q, nil
}

// Get loads a question with all of its answers. Views are counted for every
// viewer except the author; viewerID 0 is an anonymous reader.
func (s *QuestionService) Get(ctx context.Context, id, viewerID int64) (*models.QuestionDetail, error) {
	q, err := s.store.GetQuestion(ctx, id, false)
	if err != nil {
		return nil, err
	}

	if viewerID != q.AuthorID {
		if err := s.store.IncrementViews(ctx, id); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("question_id", id).Msg("failed to count view")
		} else {
			q.Views++
		}
	}

	answers, _, err := s.store.ListAnswers(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := attachAuthors(ctx, s.store, answers); err != nil {
		return nil, err
	}
	if users, err := s.store.GetUserSummaries(ctx, []int64{q.AuthorID}); err == nil {
		if u, ok := users[q.AuthorID]; ok {
			q.Author = &u
		}
	}

	detail := &models.QuestionDetail{Question: *q, Answers: answers}
	if viewerID != 0 {
		if st := q.VoteSet.State(viewerID); st != models.NoVote {
			detail.UserVote = st.String()
		}
	}
	return detail, nil
}

// ListAnswers returns one page of a question's answers, highest score first.
func (s *QuestionService) ListAnswers(ctx context.Context, questionID int64, page, limit int) ([]models.Answer, models.Pagination, error) {
	if _, err := s.store.GetQuestion(ctx, questionID, false); err != nil {
		return nil, models.Pagination{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	limit = min(limit, 100)

	answers, total, err := s.store.ListAnswers(ctx, questionID, (page-1)*limit, limit)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	if err := attachAuthors(ctx, s.store, answers); err != nil {
		return nil, models.Pagination{}, err
	}
	return answers, models.NewPagination(page, limit, total), nil
}
