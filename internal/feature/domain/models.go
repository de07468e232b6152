package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CurrentSchemaVersion tags newly computed records. The trainer and the
// prediction server refuse records of a different schema version.
const CurrentSchemaVersion = 1

// Record is a point-in-time derived summary of one customer's behavior,
// keyed by (customer_id, feature_date). Immutable once written;
// recomputation appends a new record.
type Record struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID    snowflake.ID `gorm:"not null;index;uniqueIndex:idx_feature_customer_date" json:"customer_id"`
	FeatureDate   time.Time    `gorm:"not null;uniqueIndex:idx_feature_customer_date" json:"feature_date"`
	SchemaVersion int          `gorm:"not null;default:1" json:"schema_version"`

	TenureDays           int     `json:"tenure_days"`
	AvgMonthlyUsage      float64 `json:"avg_monthly_usage"`
	SupportTicketRate    float64 `json:"support_ticket_rate"`
	PaymentDelayDays     int     `json:"payment_delay_days"`
	FeatureAdoptionScore float64 `json:"feature_adoption_score"`
	EngagementScore      float64 `json:"engagement_score"`

	// ChurnRiskScore is always the model-free heuristic. The probability
	// served by the prediction layer comes from the active classifier and
	// is a different quantity.
	ChurnRiskScore float64 `json:"churn_risk_score"`
	LifetimeValue  float64 `json:"lifetime_value"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Record) TableName() string {
	return "feature_records"
}

// ContentEquals reports whether two records carry the same derived values,
// ignoring row identity and write timestamps. Used by the store to decide
// between an idempotent no-op and a conflict.
func (r Record) ContentEquals(other Record) bool {
	return r.SchemaVersion == other.SchemaVersion &&
		r.TenureDays == other.TenureDays &&
		r.AvgMonthlyUsage == other.AvgMonthlyUsage &&
		r.SupportTicketRate == other.SupportTicketRate &&
		r.PaymentDelayDays == other.PaymentDelayDays &&
		r.FeatureAdoptionScore == other.FeatureAdoptionScore &&
		r.EngagementScore == other.EngagementScore &&
		r.ChurnRiskScore == other.ChurnRiskScore &&
		r.LifetimeValue == other.LifetimeValue
}

// BatchItem carries the per-customer outcome of a batch computation.
// A failed customer never aborts its siblings.
type BatchItem struct {
	CustomerID snowflake.ID `json:"customer_id"`
	Record     *Record      `json:"record,omitempty"`
	Err        error        `json:"-"`
}
