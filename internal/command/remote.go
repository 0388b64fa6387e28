package command

import (
	"bytes"
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/NickScherbakov/mufu/internal/errors"
	"github.com/NickScherbakov/mufu/internal/logger"
	"golang.org/x/crypto/ssh"
)

const DefaultRemoteTimeout = 5 * time.Second

type sessionState int

const (
	stateDisconnected sessionState = iota
	stateConnecting
	stateConnected
)

type RemoteConfig struct {
	Host     string
	Port     int
	User     string
	KeyPath  string
	Password string
	Timeout  time.Duration
}

// Remote runs commands over a persistent SSH session. The session is
// established lazily on first use and replaced transparently when the
// transport dies: one reconnect, one retry, never more.
type Remote struct {
	cfg RemoteConfig

	mu     sync.Mutex
	state  sessionState
	client *ssh.Client
}

func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}

	return &Remote{cfg: cfg}
}

func (r *Remote) Execute(ctx context.Context, command string) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateConnected {
		if err := r.connect(); err != nil {
			return "", err.Error()
		}
	}

	stdout, stderr, err := r.run(ctx, command)
	if err == nil {
		return stdout, stderr
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		// Command failed on the remote host; the transport is fine.
		if stderr == "" {
			stderr = err.Error()
		}
		return stdout, stderr
	}

	if r.alive() {
		// Not a connectivity failure, surface it as-is.
		logger.Debug().Err(err).Msgf("Remote command failed: %s", command)
		if stderr == "" {
			stderr = err.Error()
		}
		return stdout, stderr
	}

	logger.Warn().Msgf("SSH transport to %s lost, reconnecting", r.cfg.Host)
	r.teardown()
	if cerr := r.connect(); cerr != nil {
		return "", cerr.Error()
	}

	stdout, stderr, err = r.run(ctx, command)
	if err != nil {
		return stdout, "error after reconnect: " + err.Error()
	}

	return stdout, stderr
}

// Connect eagerly establishes the session, surfacing configuration errors
// at startup instead of on the first probe.
func (r *Remote) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateConnected {
		return nil
	}

	return r.connect()
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.teardown()

	return nil
}

func (r *Remote) connect() error {
	errFactory := errors.New()

	r.state = stateConnecting

	if r.cfg.Host == "" || r.cfg.User == "" {
		r.state = stateDisconnected
		return errFactory.WithMessage(ErrMissingTarget, "SSH host and user must be configured")
	}

	auth, err := r.authMethod()
	if err != nil {
		r.state = stateDisconnected
		return err
	}

	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
	logger.Debug().Msgf("Connecting to %s via SSH", addr)

	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            r.cfg.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         r.cfg.Timeout,
	})
	if err != nil {
		r.state = stateDisconnected
		return errFactory.Wrap(ErrConnectFailed, err)
	}

	r.client = client
	r.state = stateConnected
	logger.Info().Msgf("SSH session established: %s@%s", r.cfg.User, r.cfg.Host)

	return nil
}

func (r *Remote) authMethod() (ssh.AuthMethod, error) {
	errFactory := errors.New()

	if r.cfg.KeyPath != "" {
		if key, err := os.ReadFile(r.cfg.KeyPath); err == nil {
			signer, perr := ssh.ParsePrivateKey(key)
			if perr != nil {
				return nil, errFactory.Wrap(ErrMissingCredentials, perr)
			}
			return ssh.PublicKeys(signer), nil
		}
	}

	if r.cfg.Password != "" {
		return ssh.Password(r.cfg.Password), nil
	}

	return nil, errFactory.WithMessage(ErrMissingCredentials, "missing credentials: no usable SSH key or password")
}

func (r *Remote) run(ctx context.Context, command string) (string, string, error) {
	errFactory := errors.New()

	session, err := r.client.NewSession()
	if err != nil {
		return "", "", err
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = errFactory.Wrap(ErrCommandTimeout, ctx.Err())
	case <-time.After(r.cfg.Timeout):
		err = errFactory.WithData(ErrCommandTimeout, command)
	}

	return Decode(outBuf.Bytes()), Decode(errBuf.Bytes()), err
}

// alive checks whether the transport still answers. Run without holding
// assumptions: a nil client is dead by definition.
func (r *Remote) alive() bool {
	if r.client == nil {
		return false
	}

	_, _, err := r.client.Conn.SendRequest("keepalive@openssh.com", true, nil)

	return err == nil
}

func (r *Remote) teardown() {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	r.state = stateDisconnected
}
