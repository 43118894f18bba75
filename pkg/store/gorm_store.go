package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"contactapi/pkg/domain"
)

const migrateLockID int64 = 41820417

const (
	defaultWriteConcurrency = 10
	defaultListLimit        = 100
)

type GormStoreOptions struct {
	MaxOpenConns     int
	WriteConcurrency int
	Now              func() time.Time
}

type GormStoreOption func(*GormStoreOptions)

// WithMaxOpenConns caps the process-wide connection pool.
func WithMaxOpenConns(n int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.MaxOpenConns = n
	}
}

// WithWriteConcurrency bounds how many inserts may hold a connection at once.
// Defaults to MaxOpenConns when set, otherwise 10.
func WithWriteConcurrency(n int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.WriteConcurrency = n
	}
}

// WithClock overrides the source of created_at timestamps.
func WithClock(now func() time.Time) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.Now = now
	}
}

var _ SubmissionStore = (*GormStore)(nil)

// GormStore implements SubmissionStore using GORM.
type GormStore struct {
	db    *gorm.DB
	slots *semaphore.Weighted
	now   func() time.Time

	mu            sync.Mutex
	lastCreatedAt time.Time
}

// NewGormStore opens the Postgres DB and creates the submission table.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	return Open(postgres.Open(dsn), options...)
}

// Open builds a store on any GORM dialector. The pool it opens is shared by
// every request until Close.
func Open(dialector gorm.Dialector, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	concurrency := opts.WriteConcurrency
	if concurrency <= 0 {
		concurrency = opts.MaxOpenConns
	}
	if concurrency <= 0 {
		concurrency = defaultWriteConcurrency
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}
	if err := migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &GormStore{
		db:    db,
		slots: semaphore.NewWeighted(int64(concurrency)),
		now:   opts.Now,
	}, nil
}

func migrate(db *gorm.DB) error {
	run := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&SubmissionModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if db.Dialector.Name() != "postgres" {
		return run(db)
	}
	return withMigrationLock(db, run)
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateSubmission inserts one submission row and commits it.
func (s *GormStore) CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return domain.Submission{}, fmt.Errorf("acquire write slot: %w", err)
	}
	defer s.slots.Release(1)

	model := submissionToModel(sub)
	model.ID = 0
	model.CreatedAt = s.nextCreatedAt()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return submissionFromModel(model), nil
}

// ListSubmissions returns up to limit submissions in insertion order.
// It is not part of SubmissionStore.
func (s *GormStore) ListSubmissions(ctx context.Context, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var models []SubmissionModel
	if err := s.db.WithContext(ctx).Order("id ASC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Submission, 0, len(models))
	for _, m := range models {
		res = append(res, submissionFromModel(m))
	}
	return res, nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// nextCreatedAt never goes below the last value it handed out, so a wall
// clock step backwards cannot reorder created_at across inserts.
func (s *GormStore) nextCreatedAt() time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Before(s.lastCreatedAt) {
		now = s.lastCreatedAt
	}
	s.lastCreatedAt = now
	return now
}

func submissionToModel(sub domain.Submission) SubmissionModel {
	return SubmissionModel{
		ID:        sub.ID,
		Name:      sub.Name,
		Email:     sub.Email,
		Phone:     sub.Phone,
		Title:     sub.Title,
		Message:   sub.Message,
		CreatedAt: sub.CreatedAt,
	}
}

func submissionFromModel(m SubmissionModel) domain.Submission {
	return domain.Submission{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Title:     m.Title,
		Message:   m.Message,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
