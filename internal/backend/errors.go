package backend

import "github.com/NickScherbakov/mufu/internal/errors"

const (
	// Selection errors
	ErrNoneAvailable  = errors.ErrorCode("backend_none_available")
	ErrUnknownBackend = errors.ErrorCode("backend_unknown")

	// Probe errors
	ErrProbeFailed = errors.ErrorCode("backend_probe_failed")
)
