package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer holds identity and slow-changing billing attributes. Identity is
// immutable; attributes are updated by upstream ingestion, never by the
// prediction engine.
type Customer struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerCode        string       `gorm:"not null;uniqueIndex" json:"customer_code"`
	SignupDate          time.Time    `gorm:"not null" json:"signup_date"`
	Age                 int          `json:"age"`
	Gender              string       `json:"gender"`
	Location            string       `json:"location"`
	SubscriptionType    string       `gorm:"not null;index" json:"subscription_type"`
	MonthlyCharges      float64      `gorm:"not null" json:"monthly_charges"`
	TotalCharges        float64      `gorm:"not null" json:"total_charges"`
	ContractLength      string       `json:"contract_length"`
	PaymentMethod       string       `json:"payment_method"`
	PaperlessBilling    bool         `json:"paperless_billing"`
	AvgPaymentDelayDays int          `json:"avg_payment_delay_days"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// UsageMetric is one behavioral record per (customer, date). Append-only.
type UsageMetric struct {
	ID                     snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID             snowflake.ID `gorm:"not null;index;uniqueIndex:idx_usage_customer_date" json:"customer_id"`
	MetricDate             time.Time    `gorm:"not null;uniqueIndex:idx_usage_customer_date" json:"metric_date"`
	LoginCount             int          `json:"login_count"`
	SessionDurationMinutes float64      `json:"session_duration_minutes"`
	FeaturesUsed           int          `json:"features_used"`
	SupportTickets         int          `json:"support_tickets"`
	DataUsageGB            float64      `json:"data_usage_gb"`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// ChurnEvent marks a customer departure. At most one per customer; a churn
// event dated at or before a given day means the customer is inactive on
// that day.
type ChurnEvent struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID  snowflake.ID `gorm:"not null;uniqueIndex" json:"customer_id"`
	ChurnDate   time.Time    `gorm:"not null" json:"churn_date"`
	ChurnReason string       `json:"churn_reason"`
	Voluntary   bool         `json:"voluntary"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}
