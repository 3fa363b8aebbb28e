// Package history keeps a local record of submitted jobs so the CLI can list
// past submissions and refresh their states without the platform console.
package history

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sagerun/sagerun/internal/model"
)

// Kind distinguishes single training jobs from tuning campaigns.
type Kind string

// Kinds.
const (
	KindTraining Kind = "training"
	KindTuning   Kind = "tuning"
)

// Record is one submitted job.
type Record struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"uniqueIndex"`
	Kind          Kind   `gorm:"index"`
	ARN           string
	Image         string
	Region        string
	State         model.State `gorm:"index"`
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name.
func (Record) TableName() string {
	return "submissions"
}

// Store is a sqlite-backed submission history.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create history directory")
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history database %q", path)
	}
	return NewStore(db)
}

// NewStore wraps an existing database handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate history schema")
	}
	return &Store{db: db}, nil
}

// RecordSubmission saves a freshly submitted job.
func (s *Store) RecordSubmission(ctx context.Context, rec *Record) error {
	if rec.State == "" {
		rec.State = model.InProgressState
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// UpdateState refreshes the recorded state of a job by name. Unknown names are
// ignored; not every polled job was submitted from this machine.
func (s *Store) UpdateState(ctx context.Context, name string, state model.State, reason string) error {
	return s.db.WithContext(ctx).
		Model(&Record{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"state":          state,
			"failure_reason": reason,
		}).Error
}

// Get returns the record for a job name.
func (s *Store) Get(ctx context.Context, name string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Errorf("no submission named %q in history", name)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the most recent submissions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	var recs []Record
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
