package settings

import "errors"

var (
	// ErrUnknownKey is returned for setting names that do not exist.
	ErrUnknownKey = errors.New("unknown setting")
	// ErrWrongType is returned when a setting is accessed as the wrong type.
	ErrWrongType = errors.New("setting has a different type")
	// ErrInvalidRate is returned for rate limits that can not be parsed.
	ErrInvalidRate = errors.New("invalid rate limit")
)
