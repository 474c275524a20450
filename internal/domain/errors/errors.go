package errors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidState           = errors.New("invalid order state")
	ErrInvalidOrder           = errors.New("invalid order")
	ErrTerminalOrder          = errors.New("order is in a terminal state")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrSyncFailure            = errors.New("enrollment synchronization failed")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidSignature       = errors.New("invalid notification signature")
	ErrInvalidNotification    = errors.New("invalid payment notification")
)
