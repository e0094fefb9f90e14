package domain

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrRuntimeUnknown       = errors.New("runtime unknown")
	ErrMalformedCoordinate  = errors.New("malformed report coordinate")
	ErrUnknownStoreDriver   = errors.New("unknown store driver")
)
