package metrics

import (
	"context"
	"time"
)

// Collector records routing decisions
type Collector interface {
	Record(ctx context.Context, rec *SelectionRecord) error
	Close() error
}

// Repository defines the interface for audit data storage
type Repository interface {
	Record(rec *SelectionRecord) error
	Close() error
}

// SelectionRecord is one routing decision
type SelectionRecord struct {
	Timestamp    time.Time
	Backend      string
	Model        string
	ContentClass string
	// CacheHit is true when availability came from the memo rather than a
	// fresh probe.
	CacheHit bool
	// Explicit is true when the caller forced both backend and model.
	Explicit bool
}
