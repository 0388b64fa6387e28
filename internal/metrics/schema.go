package metrics

import (
	"database/sql"
	"time"

	"github.com/NickScherbakov/mufu/internal/errors"
	"github.com/NickScherbakov/mufu/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS selections (
	       timestamp     INTEGER NOT NULL,
	       backend       TEXT NOT NULL,
	       model         TEXT NOT NULL,
	       content_class TEXT NOT NULL,
	       cache_hit     INTEGER NOT NULL CHECK (cache_hit IN (0, 1)),
	       explicit      INTEGER NOT NULL CHECK (explicit IN (0, 1))
	   );
	   CREATE INDEX IF NOT EXISTS idx_selections_timestamp ON selections (timestamp);`

	insertSelectionSQL = `
    INSERT INTO selections (
        timestamp, backend, model, content_class, cache_hit, explicit
    ) VALUES (?, ?, ?, ?, ?, ?)`
)

// InitSchema creates the audit tables and stamps the schema version
func InitSchema(db *sql.DB) error {
	errFactory := errors.New()

	logger.Debug().Msg("Creating audit schema...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Debug().Err(rbErr).Msg("Failed to rollback schema transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO schema_versions (version, applied_at) VALUES (?, ?)",
		SchemaVersion, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	return nil
}

// ValidateSchema checks that the database carries the expected version,
// creating the schema on a fresh database
func ValidateSchema(db *sql.DB) error {
	errFactory := errors.New()

	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	if err != nil {
		// Fresh database: the version table does not exist yet
		return InitSchema(db)
	}

	if version == 0 {
		return InitSchema(db)
	}

	if version != SchemaVersion {
		return errFactory.WithData(ErrSchemaValidationFailed, struct {
			Found    int
			Expected int
		}{
			Found:    version,
			Expected: SchemaVersion,
		})
	}

	return nil
}
