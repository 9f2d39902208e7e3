package domain

import "errors"

var (
	ErrMalformedOperation = errors.New("malformed operation")
	ErrUnknownOperation   = errors.New("unknown operation type")
	ErrSessionClosed      = errors.New("session closed")
	ErrRouterClosed       = errors.New("operation router closed")
	ErrRouterFailed       = errors.New("operation router failed")
	ErrHostUnreachable    = errors.New("session host unreachable")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotSessionMember   = errors.New("not a member of session")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSecretNotFound     = errors.New("secret not found")
)

var ErrSequenceConflict = errors.New("operation sequence conflict")
