package domain

import "errors"

var (
	// ErrTrainingPrecondition marks insufficient labeled data; training
	// aborts without touching the active artifact.
	ErrTrainingPrecondition = errors.New("training_precondition")

	// ErrTraining marks a numerical fit failure after the fallback retry.
	ErrTraining = errors.New("training_failed")

	// ErrModelUnavailable marks a prediction request with no active model
	// of the requested kind.
	ErrModelUnavailable = errors.New("model_unavailable")

	// ErrSchemaMismatch marks a feature record whose schema version does
	// not match the one the active model was trained against.
	ErrSchemaMismatch = errors.New("feature_schema_mismatch")
)
