package services

import "errors"

// Error taxonomy for match lifecycle operations. Validation errors surface to
// the HTTP layer; ErrDuplicateActiveMatch is benign and converted to an
// "already in progress" response by callers.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrExpired              = errors.New("match has expired")
	ErrAlreadyResolved      = errors.New("match already resolved")
	ErrDuplicateActiveMatch = errors.New("request already has an active match")
	ErrSelfMatch            = errors.New("requester cannot be matched with themselves")
)
