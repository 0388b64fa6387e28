package command

import "context"

// Runner executes a shell command and returns its decoded output. Execute
// never returns a Go error: every failure mode is encoded as text on the
// stderr return so callers can fall back to last-known values without
// unwinding.
type Runner interface {
	Execute(ctx context.Context, command string) (stdout, stderr string)
	Close() error
}
