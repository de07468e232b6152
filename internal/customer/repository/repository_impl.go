package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/retainly/retainly/internal/customer/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// Provide builds the gorm-backed customer repository.
func Provide(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []snowflake.ID) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var customers []domain.Customer
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&customers).Error
	return customers, err
}

func (r *repository) List(ctx context.Context) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := r.db.WithContext(ctx).Order("customer_code").Find(&customers).Error
	return customers, err
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Customer{}).Count(&count).Error
	return count, err
}

func (r *repository) UsageBetween(ctx context.Context, customerID snowflake.ID, from, to time.Time) ([]domain.UsageMetric, error) {
	var metrics []domain.UsageMetric
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND metric_date > ? AND metric_date <= ?", customerID, from, to).
		Order("metric_date").
		Find(&metrics).Error
	return metrics, err
}

func (r *repository) CustomersWithActivitySince(ctx context.Context, since time.Time) ([]snowflake.ID, error) {
	seen := make(map[snowflake.ID]struct{})
	var out []snowflake.ID

	collect := func(ids []snowflake.ID) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	var usageIDs []snowflake.ID
	if err := r.db.WithContext(ctx).
		Model(&domain.UsageMetric{}).
		Distinct("customer_id").
		Where("created_at > ?", since).
		Pluck("customer_id", &usageIDs).Error; err != nil {
		return nil, err
	}
	collect(usageIDs)

	var customerIDs []snowflake.ID
	if err := r.db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("updated_at > ?", since).
		Pluck("id", &customerIDs).Error; err != nil {
		return nil, err
	}
	collect(customerIDs)

	var churnIDs []snowflake.ID
	if err := r.db.WithContext(ctx).
		Model(&domain.ChurnEvent{}).
		Where("created_at > ?", since).
		Pluck("customer_id", &churnIDs).Error; err != nil {
		return nil, err
	}
	collect(churnIDs)

	return out, nil
}

func (r *repository) ChurnEventFor(ctx context.Context, customerID snowflake.ID) (*domain.ChurnEvent, error) {
	var event domain.ChurnEvent
	err := r.db.WithContext(ctx).First(&event, "customer_id = ?", customerID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) ChurnEvents(ctx context.Context) ([]domain.ChurnEvent, error) {
	var events []domain.ChurnEvent
	err := r.db.WithContext(ctx).Find(&events).Error
	return events, err
}
