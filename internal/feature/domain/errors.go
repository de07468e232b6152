package domain

import "errors"

var (
	ErrNotFound   = errors.New("feature_customer_not_found")
	ErrValidation = errors.New("feature_validation")
	ErrConflict   = errors.New("feature_conflict")
)
