package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrPlacesNotConfigured = errors.New("google places api key not configured")
	ErrInvalidGranularity  = errors.New("invalid granularity")
	ErrInvalidDate         = errors.New("invalid date")
)
