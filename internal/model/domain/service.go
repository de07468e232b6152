package domain

import "context"

// Trainer fits the churn classifier and CLV regressor over the latest
// feature snapshot and activates the resulting artifacts.
type Trainer interface {
	Train(ctx context.Context) (TrainingReport, error)
}
