package common

import "errors"

var (
	ErrModelNotFound   = errors.New("model not found")
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrMissingColumns  = errors.New("missing required columns")
	ErrMalformedInput  = errors.New("malformed input")
)
