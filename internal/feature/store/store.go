package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/retainly/retainly/internal/feature/domain"
	"github.com/retainly/retainly/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the gorm-backed append-only feature log. The unique index on
// (customer_id, feature_date) is the single-writer atomicity boundary:
// readers only ever observe fully committed records.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(conn *gorm.DB, log *zap.Logger) *Store {
	return &Store{
		db:  conn,
		log: log.Named("feature.store"),
	}
}

func (s *Store) Append(ctx context.Context, record domain.Record) error {
	existing, err := s.find(ctx, record.CustomerID, record.FeatureDate)
	if err != nil {
		return err
	}
	if existing != nil {
		return compare(*existing, record)
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a race with a concurrent writer; fall back to the
			// idempotency comparison against the committed row.
			existing, findErr := s.find(ctx, record.CustomerID, record.FeatureDate)
			if findErr != nil {
				return findErr
			}
			if existing != nil {
				return compare(*existing, record)
			}
		}
		return fmt.Errorf("append feature record: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context, customerID snowflake.ID, asOf time.Time) (*domain.Record, error) {
	var record domain.Record
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND feature_date <= ?", customerID, asOf).
		Order("feature_date DESC").
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *Store) LatestPerCustomer(ctx context.Context, asOf time.Time) ([]domain.Record, error) {
	var records []domain.Record
	sub := s.db.
		Model(&domain.Record{}).
		Select("customer_id, MAX(feature_date) AS feature_date").
		Where("feature_date <= ?", asOf).
		Group("customer_id")
	err := s.db.WithContext(ctx).
		Joins("JOIN (?) latest ON feature_records.customer_id = latest.customer_id AND feature_records.feature_date = latest.feature_date", sub).
		Find(&records).Error
	return records, err
}

func (s *Store) History(ctx context.Context, customerID snowflake.ID, from, to time.Time) ([]domain.Record, error) {
	var records []domain.Record
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND feature_date >= ? AND feature_date <= ?", customerID, from, to).
		Order("feature_date").
		Find(&records).Error
	return records, err
}

func (s *Store) find(ctx context.Context, customerID snowflake.ID, featureDate time.Time) (*domain.Record, error) {
	var record domain.Record
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND feature_date = ?", customerID, featureDate).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func compare(existing, incoming domain.Record) error {
	if existing.ContentEquals(incoming) {
		return nil
	}
	return fmt.Errorf("%w: customer %s at %s", domain.ErrConflict,
		incoming.CustomerID, incoming.FeatureDate.Format("2006-01-02"))
}
