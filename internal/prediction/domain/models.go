package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Risk tiers for churn predictions.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Value segments for CLV predictions.
const (
	SegmentHigh   = "high_value"
	SegmentMedium = "medium_value"
	SegmentLow    = "low_value"
)

// ChurnPrediction is a served churn score.
type ChurnPrediction struct {
	CustomerID   snowflake.ID `json:"customer_id"`
	Probability  float64      `json:"churn_probability"`
	RiskTier     string       `json:"risk_level"`
	ModelVersion string       `json:"model_version"`
	FeatureDate  time.Time    `json:"feature_date"`
	Cached       bool         `json:"cached"`
}

// CLVPrediction is a served lifetime value estimate.
type CLVPrediction struct {
	CustomerID     snowflake.ID `json:"customer_id"`
	PredictedValue float64      `json:"predicted_clv"`
	Segment        string       `json:"clv_segment"`
	ModelVersion   string       `json:"model_version"`
	FeatureDate    time.Time    `json:"feature_date"`
	Cached         bool         `json:"cached"`
}

// ChurnBatchItem carries one batch result. Exactly one of Prediction and
// Err is set.
type ChurnBatchItem struct {
	CustomerID snowflake.ID
	Prediction *ChurnPrediction
	Err        error
}

// CLVBatchItem is the CLV counterpart of ChurnBatchItem.
type CLVBatchItem struct {
	CustomerID snowflake.ID
	Prediction *CLVPrediction
	Err        error
}
