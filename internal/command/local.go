package command

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"

	"github.com/NickScherbakov/mufu/internal/logger"
)

const DefaultLocalTimeout = 10 * time.Second

// Local runs commands through the host shell.
type Local struct {
	timeout time.Duration
}

func NewLocal(timeout time.Duration) *Local {
	if timeout <= 0 {
		timeout = DefaultLocalTimeout
	}

	return &Local{timeout: timeout}
}

func (l *Local) Execute(ctx context.Context, command string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	// Children spawned by the shell inherit the pipes and can outlive the
	// deadline kill; stop draining them after a grace period so Run stays
	// bounded by the timeout.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	stdout := Decode(outBuf.Bytes())
	stderr := Decode(errBuf.Bytes())

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logger.Debug().Msgf("Local command timed out: %s", command)
			return stdout, "command timed out"
		}
		if stderr == "" {
			stderr = err.Error()
		}
	}

	return stdout, stderr
}

func (*Local) Close() error {
	return nil
}
