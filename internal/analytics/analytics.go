// Package analytics computes dashboard aggregates over the customer base.
package analytics

import (
	"context"
	"fmt"

	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubscriptionBreakdown is one subscription tier's slice of the dashboard.
type SubscriptionBreakdown struct {
	SubscriptionType string  `json:"subscription_type"`
	Customers        int64   `json:"customers"`
	Churned          int64   `json:"churned"`
	ChurnRate        float64 `json:"churn_rate"`
}

// Dashboard is the aggregate view served at /api/analytics/dashboard.
type Dashboard struct {
	TotalCustomers    int64                   `json:"total_customers"`
	ChurnedCustomers  int64                   `json:"churned_customers"`
	ChurnRate         float64                 `json:"churn_rate"`
	AvgMonthlyCharges float64                 `json:"avg_monthly_charges"`
	TotalRevenue      float64                 `json:"total_revenue"`
	Subscriptions     []SubscriptionBreakdown `json:"subscriptions"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(conn *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: conn, log: log.Named("analytics.service")}
}

// Dashboard aggregates the customer base in a handful of grouped queries.
// An empty customer base yields zeroes, not an error.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var out Dashboard

	var totals struct {
		Total      int64
		AvgMonthly float64
		Revenue    float64
	}
	err := s.db.WithContext(ctx).Model(&customerdomain.Customer{}).
		Select("COUNT(*) AS total, COALESCE(AVG(monthly_charges), 0) AS avg_monthly, COALESCE(SUM(total_charges), 0) AS revenue").
		Scan(&totals).Error
	if err != nil {
		return Dashboard{}, fmt.Errorf("aggregate customers: %w", err)
	}
	out.TotalCustomers = totals.Total
	out.AvgMonthlyCharges = totals.AvgMonthly
	out.TotalRevenue = totals.Revenue

	if err := s.db.WithContext(ctx).Model(&customerdomain.ChurnEvent{}).Count(&out.ChurnedCustomers).Error; err != nil {
		return Dashboard{}, fmt.Errorf("count churn events: %w", err)
	}
	if out.TotalCustomers > 0 {
		out.ChurnRate = float64(out.ChurnedCustomers) / float64(out.TotalCustomers)
	}

	rows := []struct {
		SubscriptionType string
		Customers        int64
		Churned          int64
	}{}
	err = s.db.WithContext(ctx).Model(&customerdomain.Customer{}).
		Select("customers.subscription_type, COUNT(*) AS customers, COUNT(churn_events.id) AS churned").
		Joins("LEFT JOIN churn_events ON churn_events.customer_id = customers.id").
		Group("customers.subscription_type").
		Order("customers.subscription_type").
		Scan(&rows).Error
	if err != nil {
		return Dashboard{}, fmt.Errorf("aggregate subscriptions: %w", err)
	}
	for _, row := range rows {
		breakdown := SubscriptionBreakdown{
			SubscriptionType: row.SubscriptionType,
			Customers:        row.Customers,
			Churned:          row.Churned,
		}
		if row.Customers > 0 {
			breakdown.ChurnRate = float64(row.Churned) / float64(row.Customers)
		}
		out.Subscriptions = append(out.Subscriptions, breakdown)
	}
	return out, nil
}

// Module wires the analytics service.
var Module = fx.Module("analytics.service",
	fx.Provide(New),
)
