package backend

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/NickScherbakov/mufu/internal/classify"
	"github.com/NickScherbakov/mufu/internal/errors"
	"github.com/NickScherbakov/mufu/internal/logger"
	"github.com/NickScherbakov/mufu/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const defaultProbeTimeout = 5 * time.Second

type Config struct {
	// Priority lists one backend ID order per content class.
	Priority map[classify.ContentClass][]string
	// AvailabilityTTL bounds how long a probe result is trusted. Zero means
	// results are kept for the lifetime of the process.
	AvailabilityTTL time.Duration
	ProbeTimeout    time.Duration
}

// Registry owns the backend descriptors and both memo caches. Descriptors
// are immutable after construction; the caches are written at most once per
// key unless a TTL is configured.
type Registry struct {
	backends map[string]Descriptor
	cfg      Config
	client   *http.Client
	audit    metrics.Collector
	now      func() time.Time

	// flight collapses concurrent probes of the same key so each cache
	// entry really is written by a single probe.
	flight singleflight.Group

	mu    sync.Mutex
	avail map[string]availabilityEntry
	caps  map[string]Capabilities
}

type availabilityEntry struct {
	available bool
	checkedAt time.Time
}

type Option func(*Registry)

// WithAuditCollector records every selection outcome.
func WithAuditCollector(c metrics.Collector) Option {
	return func(r *Registry) {
		r.audit = c
	}
}

// WithHTTPClient replaces the probing client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) {
		r.client = c
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(descriptors []Descriptor, cfg Config, opts ...Option) *Registry {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}

	backends := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		backends[d.ID] = d
	}

	r := &Registry{
		backends: backends,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.ProbeTimeout},
		now:      time.Now,
		avail:    make(map[string]availabilityEntry),
		caps:     make(map[string]Capabilities),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Select routes a payload to the first available backend in priority order
// for its content class. An explicit backend plus model bypasses all
// probing; a lone preferred backend is tried first. When every backend is
// down the returned error carries the backend_none_available code, an
// expected outcome the caller decides how to handle.
func (r *Registry) Select(ctx context.Context, payload string, opts Options) (Selection, error) {
	errFactory := errors.New()

	if opts.Backend != "" && opts.Model != "" {
		sel := Selection{BackendID: opts.Backend, Model: opts.Model}
		logger.Debug().Msgf("Explicit selection: %s/%s", opts.Backend, opts.Model)
		r.record(ctx, sel, true, false)
		return sel, nil
	}

	class := classify.Detect(payload)
	priority := r.priorityFor(class)

	if opts.Backend != "" {
		priority = moveToFront(priority, opts.Backend)
	}

	for _, id := range priority {
		d, ok := r.backends[id]
		if !ok {
			logger.Warn().Msgf("Backend %q in %s priority list is not configured", id, class)
			continue
		}

		available, cached := r.availabilityFor(ctx, d)
		if !available {
			continue
		}

		model := opts.Model
		if model == "" {
			model = d.DefaultModel(class)
		}

		sel := Selection{BackendID: id, Model: model, Class: class}
		logger.Info().Msgf("Selected backend %s with model %s for %s content", id, model, class)
		r.record(ctx, sel, false, cached)
		return sel, nil
	}

	logger.Error().Msgf("No backend available for %s content", class)

	return Selection{}, errFactory.WithData(ErrNoneAvailable, string(class))
}

func (r *Registry) priorityFor(class classify.ContentClass) []string {
	list, ok := r.cfg.Priority[class]
	if !ok || len(list) == 0 {
		list = r.cfg.Priority[classify.General]
	}

	out := make([]string, len(list))
	copy(out, list)

	return out
}

func moveToFront(list []string, id string) []string {
	rest := make([]string, 0, len(list))
	found := false
	for _, b := range list {
		if b == id {
			found = true
			continue
		}
		rest = append(rest, b)
	}
	if !found {
		return list
	}

	return append([]string{id}, rest...)
}

func (r *Registry) record(ctx context.Context, sel Selection, explicit, cacheHit bool) {
	if r.audit == nil {
		return
	}

	rec := &metrics.SelectionRecord{
		Timestamp:    r.now(),
		Backend:      sel.BackendID,
		Model:        sel.Model,
		ContentClass: string(sel.Class),
		CacheHit:     cacheHit,
		Explicit:     explicit,
	}
	if err := r.audit.Record(ctx, rec); err != nil {
		logger.Debug().Err(err).Msg("Failed to record selection")
	}
}
