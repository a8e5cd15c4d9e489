package services

import "errors"

var (
	// ErrConfiguration: a required credential or endpoint is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrClassification: the intent step produced no usable verdict. There is
	// no fallback for it.
	ErrClassification = errors.New("intent classification failed")
)
