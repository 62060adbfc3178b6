package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

const pgUniqueViolation = "23505"

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetDB() *gorm.DB {
	return s.db
}

func (s *GormStore) Transact(ctx context.Context, fn func(tx Service) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps driver errors onto the model sentinels.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", what, models.ErrConflict)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", what, models.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *GormStore) query(ctx context.Context, forUpdate bool) *gorm.DB {
	db := s.db.WithContext(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error, "create user")
}

func (s *GormStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *GormStore) GetUserSummaries(ctx context.Context, ids []int64) (map[int64]models.UserSummary, error) {
	out := make(map[int64]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err, "users")
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}

func (s *GormStore) AdjustReputation(ctx context.Context, userID int64, delta int) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("reputation", gorm.Expr("reputation + ?", delta))
	if res.Error != nil {
		return translate(res.Error, "adjust reputation")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	return nil
}

// Questions

func (s *GormStore) CreateQuestion(ctx context.Context, q *models.Question) error {
	return translate(s.db.WithContext(ctx).Create(q).Error, "create question")
}

func (s *GormStore) GetQuestion(ctx context.Context, id int64, forUpdate bool) (*models.Question, error) {
	var q models.Question
	if err := s.query(ctx, forUpdate).First(&q, id).Error; err != nil {
		return nil, translate(err, "question")
	}
	return &q, nil
}

func (s *GormStore) SaveQuestionVotes(ctx context.Context, id int64, votes models.VoteSet) error {
	return s.saveVotes(ctx, &models.Question{}, id, votes)
}

func (s *GormStore) SetAcceptedAnswer(ctx context.Context, questionID, answerID int64) error {
	res := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", questionID).
		Updates(map[string]interface{}{"accepted_answer_id": answerID, "is_resolved": true})
	if res.Error != nil {
		return translate(res.Error, "accept answer")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("question %d: %w", questionID, models.ErrNotFound)
	}
	return nil
}

func (s *GormStore) ClearAcceptedAnswer(ctx context.Context, questionID int64) error {
	res := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", questionID).
		Updates(map[string]interface{}{"accepted_answer_id": nil, "is_resolved": false})
	if res.Error != nil {
		return translate(res.Error, "clear accepted answer")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("question %d: %w", questionID, models.ErrNotFound)
	}
	return nil
}

func (s *GormStore) IncrementViews(ctx context.Context, id int64) error {
	return translate(s.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error, "increment views")
}

// Answers

func (s *GormStore) CreateAnswer(ctx context.Context, a *models.Answer) error {
	return translate(s.db.WithContext(ctx).Omit("Comments").Create(a).Error, "create answer")
}

func (s *GormStore) GetAnswer(ctx context.Context, id int64, forUpdate bool) (*models.Answer, error) {
	var a models.Answer
	if err := s.query(ctx, forUpdate).First(&a, id).Error; err != nil {
		return nil, translate(err, "answer")
	}
	return &a, nil
}

func (s *GormStore) ListAnswers(ctx context.Context, questionID int64, offset, limit int) ([]models.Answer, int64, error) {
	scope := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Answer{}).Where("question_id = ?", questionID)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count answers")
	}

	q := scope().Preload("Comments", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at asc")
	}).Order("vote_score desc").Order("created_at asc").Order("id asc")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}

	answers := []models.Answer{}
	if err := q.Find(&answers).Error; err != nil {
		return nil, 0, translate(err, "list answers")
	}
	return answers, total, nil
}

func (s *GormStore) SaveAnswerVotes(ctx context.Context, id int64, votes models.VoteSet) error {
	return s.saveVotes(ctx, &models.Answer{}, id, votes)
}

func (s *GormStore) SetAnswerAccepted(ctx context.Context, id int64, accepted bool) error {
	return translate(s.db.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ?", id).
		Update("is_accepted", accepted).Error, "set answer accepted")
}

func (s *GormStore) CreateComment(ctx context.Context, c *models.Comment) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "create comment")
}

func (s *GormStore) DeleteAnswer(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("answer_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return translate(err, "delete answer comments")
		}
		if err := tx.Where("target_type = ? AND target_id = ?", models.TargetAnswer, id).Delete(&models.Vote{}).Error; err != nil {
			return translate(err, "delete answer votes")
		}
		res := tx.Delete(&models.Answer{}, id)
		if res.Error != nil {
			return translate(res.Error, "delete answer")
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("answer %d: %w", id, models.ErrNotFound)
		}
		return nil
	})
}

// saveVotes writes only the vote columns so concurrent edits to other columns survive.
func (s *GormStore) saveVotes(ctx context.Context, model interface{}, id int64, votes models.VoteSet) error {
	res := s.db.WithContext(ctx).Model(model).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"upvoters":   votes.Upvoters,
			"downvoters": votes.Downvoters,
			"vote_score": votes.Score,
		})
	if res.Error != nil {
		return translate(res.Error, "save votes")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("votable %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Votes

func (s *GormStore) GetVote(ctx context.Context, userID int64, targetType models.TargetType, targetID int64) (*models.Vote, error) {
	var v models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		First(&v).Error
	if err != nil {
		return nil, translate(err, "vote")
	}
	return &v, nil
}

func (s *GormStore) CreateVote(ctx context.Context, v *models.Vote) error {
	return translate(s.db.WithContext(ctx).Create(v).Error, "create vote")
}

func (s *GormStore) UpdateVoteDirection(ctx context.Context, id int64, d models.Direction) error {
	return translate(s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ?", id).
		Update("vote_type", d).Error, "update vote")
}

func (s *GormStore) DeleteVote(ctx context.Context, id int64) error {
	return translate(s.db.WithContext(ctx).Delete(&models.Vote{}, id).Error, "delete vote")
}

// Notifications

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return translate(s.db.WithContext(ctx).Create(n).Error, "create notification")
}

func (s *GormStore) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, translate(err, "notification")
	}
	return &n, nil
}

func (s *GormStore) ListNotifications(ctx context.Context, recipientID int64, offset, limit int) ([]models.Notification, int64, error) {
	scope := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count notifications")
	}

	list := []models.Notification{}
	err := scope().Order("created_at desc").Order("id desc").Offset(offset).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, 0, translate(err, "list notifications")
	}
	return list, total, nil
}

func (s *GormStore) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&n).Error
	return n, translate(err, "count unread")
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, id int64, at time.Time) error {
	return translate(s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error, "mark read")
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context, recipientID int64, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, translate(res.Error, "mark all read")
}

func (s *GormStore) DeleteNotification(ctx context.Context, id int64) error {
	return translate(s.db.WithContext(ctx).Delete(&models.Notification{}, id).Error, "delete notification")
}

// Health checks the connection by pinging the database.
func (s *GormStore) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := map[string]string{"driver": "postgres"}

	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	dbStats := sqlDB.Stats()
	stats["status"] = "up"
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	return stats
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	logging.Info().Msg("disconnected from database")
	return sqlDB.Close()
}

var _ Service = (*GormStore)(nil)
