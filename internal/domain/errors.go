package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrProviderUnavailable = errors.New("places provider unavailable")
	ErrProviderDenied      = errors.New("places provider denied the request")
	ErrQuotaExceeded       = errors.New("places provider quota exceeded")
	ErrInvalidRequest      = errors.New("places provider rejected the request as invalid")
)
