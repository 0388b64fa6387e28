package command

import "github.com/NickScherbakov/mufu/internal/errors"

const (
	// Configuration errors
	ErrMissingTarget      = errors.ErrMissingConfig
	ErrMissingCredentials = errors.ErrorCode("session_missing_credentials")

	// Session errors
	ErrConnectFailed = errors.ErrorCode("session_connect_failed")
	ErrSessionClosed = errors.ErrShutdownFailed

	// Operation errors
	ErrCommandTimeout = errors.ErrTimeout
)
