package metrics

import "github.com/NickScherbakov/mufu/internal/errors"

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/mufu/selections.db"

	defaultBatchSize    = 16
	defaultBatchTimeout = 30
)

type Config struct {
	DBPath  string
	Enabled bool
	// BatchSize buffered records trigger a flush; BatchTimeout (seconds)
	// flushes a partial buffer.
	BatchSize    int
	BatchTimeout int
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		Enabled:      false, // Disabled by default
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if the audit log is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
