package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	KindChurn = "churn"
	KindCLV   = "clv"
)

// Artifact is a trained estimator persisted with its metadata. At most one
// artifact per kind is active; older artifacts are kept for rollback and
// audit, never deleted by the engine.
type Artifact struct {
	ID                   snowflake.ID   `gorm:"primaryKey" json:"id"`
	Version              string         `gorm:"not null;uniqueIndex" json:"version"`
	Kind                 string         `gorm:"not null;index" json:"kind"`
	Algorithm            string         `gorm:"not null" json:"algorithm"`
	FeatureSchemaVersion int            `gorm:"not null" json:"feature_schema_version"`
	TrainedAt            time.Time      `gorm:"not null" json:"trained_at"`
	Metrics              datatypes.JSON `json:"metrics"`
	Parameters           datatypes.JSON `json:"-"`
	Active               bool           `gorm:"not null;index" json:"active"`
	CreatedAt            time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Artifact) TableName() string {
	return "model_artifacts"
}

// ChurnMetrics is the classifier evaluation block of a TrainingReport.
type ChurnMetrics struct {
	Accuracy float64 `json:"accuracy"`
	AUCScore float64 `json:"auc_score"`
	CVMean   float64 `json:"cv_mean"`
	CVStd    float64 `json:"cv_std"`
}

// CLVMetrics is the regressor evaluation block of a TrainingReport.
type CLVMetrics struct {
	TrainR2 float64 `json:"train_r2"`
	TestR2  float64 `json:"test_r2"`
}

// TrainingReport summarizes one successful training run.
type TrainingReport struct {
	ChurnModel        ChurnMetrics `json:"churn_model"`
	CLVModel          CLVMetrics   `json:"clv_model"`
	ChurnModelVersion string       `json:"churn_model_version"`
	CLVModelVersion   string       `json:"clv_model_version"`
	Algorithm         string       `json:"algorithm"`
	TrainedAt         time.Time    `json:"trained_at"`
	SampleCount       int          `json:"sample_count"`
}
