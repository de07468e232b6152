// Package estimator implements the small family of estimators the trainer
// can fit: a standard-scaled logistic regression, CART-based random forests
// for classification and regression, and gradient boosted trees. All fits
// are deterministic given a seed.
package estimator

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	AlgorithmRandomForest    = "random_forest"
	AlgorithmGradientBoosted = "gradient_boosted"
	AlgorithmLogistic        = "logistic"
)

var (
	// ErrNotConverged marks a numerical fit failure; the trainer retries
	// once with a fallback algorithm before giving up.
	ErrNotConverged = errors.New("estimator did not converge")

	// ErrInsufficientData marks a dataset too small to fit on.
	ErrInsufficientData = errors.New("insufficient training data")
)

// Classifier scores a feature vector with a churn probability in [0,1].
type Classifier interface {
	PredictProba(x []float64) float64
}

// Regressor predicts a continuous target from a feature vector.
type Regressor interface {
	Predict(x []float64) float64
}

// FitClassifier dispatches on algorithm name.
func FitClassifier(algorithm string, x [][]float64, y []float64, seed int64) (Classifier, error) {
	switch algorithm {
	case AlgorithmRandomForest:
		return FitRandomForestClassifier(x, y, seed)
	case AlgorithmGradientBoosted:
		return FitGradientBoostedClassifier(x, y, seed)
	case AlgorithmLogistic:
		return FitLogistic(x, y)
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
}

// Fallback returns the algorithm to retry with after a numerical failure.
func Fallback(algorithm string) string {
	if algorithm == AlgorithmRandomForest {
		return AlgorithmGradientBoosted
	}
	return AlgorithmRandomForest
}

// MarshalClassifier serializes a fitted classifier for artifact storage.
func MarshalClassifier(c Classifier) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalClassifier restores a classifier serialized by MarshalClassifier.
func UnmarshalClassifier(algorithm string, data []byte) (Classifier, error) {
	switch algorithm {
	case AlgorithmRandomForest:
		var model RandomForestClassifier
		if err := json.Unmarshal(data, &model); err != nil {
			return nil, err
		}
		return &model, nil
	case AlgorithmGradientBoosted:
		var model GradientBoostedClassifier
		if err := json.Unmarshal(data, &model); err != nil {
			return nil, err
		}
		return &model, nil
	case AlgorithmLogistic:
		var model Logistic
		if err := json.Unmarshal(data, &model); err != nil {
			return nil, err
		}
		return &model, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
}

// MarshalRegressor serializes a fitted regressor for artifact storage.
func MarshalRegressor(r Regressor) ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRegressor restores the CLV regressor.
func UnmarshalRegressor(data []byte) (Regressor, error) {
	var model RandomForestRegressor
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}
	return &model, nil
}
