package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// Service represents the persistence layer used by the domain services.
// Implementations: GormStore (Postgres) and MemoryStore.
type Service interface {
	// Transact runs fn inside a single transaction. fn receives a Service bound
	// to that transaction; returning an error rolls everything back.
	Transact(ctx context.Context, fn func(tx Service) error) error

	UserStore
	QuestionStore
	AnswerStore
	VoteStore
	NotificationStore

	// Health returns a map of health status information.
	Health(ctx context.Context) map[string]string

	// Close terminates the underlying connection, if any.
	Close() error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserSummaries(ctx context.Context, ids []int64) (map[int64]models.UserSummary, error)
	// AdjustReputation adds delta to the user's reputation without reading it first.
	AdjustReputation(ctx context.Context, userID int64, delta int) error
}

type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	// GetQuestion loads a question; forUpdate locks the row until the transaction ends.
	GetQuestion(ctx context.Context, id int64, forUpdate bool) (*models.Question, error)
	SaveQuestionVotes(ctx context.Context, id int64, votes models.VoteSet) error
	SetAcceptedAnswer(ctx context.Context, questionID, answerID int64) error
	// ClearAcceptedAnswer returns the question to unresolved.
	ClearAcceptedAnswer(ctx context.Context, questionID int64) error
	IncrementViews(ctx context.Context, id int64) error
}

type AnswerStore interface {
	CreateAnswer(ctx context.Context, a *models.Answer) error
	GetAnswer(ctx context.Context, id int64, forUpdate bool) (*models.Answer, error)
	// ListAnswers orders by vote score (highest first) then age. limit <= 0 returns all.
	ListAnswers(ctx context.Context, questionID int64, offset, limit int) ([]models.Answer, int64, error)
	SaveAnswerVotes(ctx context.Context, id int64, votes models.VoteSet) error
	SetAnswerAccepted(ctx context.Context, id int64, accepted bool) error
	CreateComment(ctx context.Context, c *models.Comment) error
	// DeleteAnswer removes the answer together with its comments and vote rows.
	DeleteAnswer(ctx context.Context, id int64) error
}

type VoteStore interface {
	// GetVote returns models.ErrNotFound when the user has no vote on the target.
	GetVote(ctx context.Context, userID int64, targetType models.TargetType, targetID int64) (*models.Vote, error)
	// CreateVote returns models.ErrConflict if a vote for the same user and target exists.
	CreateVote(ctx context.Context, v *models.Vote) error
	UpdateVoteDirection(ctx context.Context, id int64, d models.Direction) error
	DeleteVote(ctx context.Context, id int64) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	// ListNotifications returns the newest first along with the recipient's total.
	ListNotifications(ctx context.Context, recipientID int64, offset, limit int) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID int64) (int64, error)
	MarkNotificationRead(ctx context.Context, id int64, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, recipientID int64, at time.Time) (int64, error)
	DeleteNotification(ctx context.Context, id int64) error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.DatabaseConfig) (Service, error) {
	if cfg.Driver == config.DriverMemory {
		logging.Warn().Msg("using in-memory store, data is lost on restart")
		return NewMemoryStore(), nil
	}
	return Open(ctx, cfg)
}

// Open connects to Postgres through gorm, migrates the schema and tunes the pool.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logging.NewGormLogger(cfg.SlowThreshold),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("database connected")

	if err := Migrate(db.WithContext(ctx)); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return NewGormStore(db), nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.Answer{},
		&models.Comment{},
		&models.Vote{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logging.Info().Msg("database migrations completed")
	return nil
}
