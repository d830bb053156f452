package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type alertRecord struct {
	Channel                string `gorm:"primaryKey"`
	AlertFingerprint       string
	TriggerPeriodEnd       time.Time
	SourceSnapshotIdentity string
	LastCheckedAt          time.Time
	UpdatedAt              time.Time
}

func (alertRecord) TableName() string { return "alert_states" }

// SQLiteStore keeps alert state in a single local SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database file and migrates the
// alert_states table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open alert database: %w", err)
	}
	if err := db.AutoMigrate(&alertRecord{}); err != nil {
		return nil, fmt.Errorf("migrate alert database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, channel string) (*domain.AlertState, error) {
	var rec alertRecord
	err := s.db.WithContext(ctx).Where("channel = ?", channel).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load alert state: %w", err)
	}
	return &domain.AlertState{
		Channel:                rec.Channel,
		AlertFingerprint:       rec.AlertFingerprint,
		TriggerPeriodEnd:       rec.TriggerPeriodEnd.UTC(),
		SourceSnapshotIdentity: rec.SourceSnapshotIdentity,
		LastCheckedAt:          rec.LastCheckedAt.UTC(),
	}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state domain.AlertState) error {
	rec := alertRecord{
		Channel:                state.Channel,
		AlertFingerprint:       state.AlertFingerprint,
		TriggerPeriodEnd:       state.TriggerPeriodEnd,
		SourceSnapshotIdentity: state.SourceSnapshotIdentity,
		LastCheckedAt:          state.LastCheckedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
