package backend

import (
	"context"
	"io"
	"net/http"

	"github.com/NickScherbakov/mufu/internal/logger"
)

// Available reports whether the backend answers its model-listing endpoint.
// The first probe result is memoized; with a TTL configured, stale entries
// are re-probed, otherwise the memo holds for the process lifetime.
func (r *Registry) Available(ctx context.Context, id string) bool {
	d, ok := r.backends[id]
	if !ok {
		return false
	}

	available, _ := r.availabilityFor(ctx, d)

	return available
}

// availabilityFor returns the availability of a backend and whether the
// answer came from the memo. Concurrent misses on the same backend are
// collapsed into one probe; the memo is re-checked inside the flight so a
// caller that lost the race reads the fresh entry instead of probing again.
func (r *Registry) availabilityFor(ctx context.Context, d Descriptor) (available, cached bool) {
	r.mu.Lock()
	if e, ok := r.avail[d.ID]; ok && !r.expired(e) {
		r.mu.Unlock()
		return e.available, true
	}
	r.mu.Unlock()

	v, _, _ := r.flight.Do("avail:"+d.ID, func() (any, error) {
		r.mu.Lock()
		if e, ok := r.avail[d.ID]; ok && !r.expired(e) {
			r.mu.Unlock()
			return e.available, nil
		}
		r.mu.Unlock()

		ok := r.probe(ctx, d)

		r.mu.Lock()
		r.avail[d.ID] = availabilityEntry{available: ok, checkedAt: r.now()}
		r.mu.Unlock()

		return ok, nil
	})

	return v.(bool), false
}

func (r *Registry) expired(e availabilityEntry) bool {
	if r.cfg.AvailabilityTTL <= 0 {
		return false
	}

	return r.now().Sub(e.checkedAt) >= r.cfg.AvailabilityTTL
}

func (r *Registry) probe(ctx context.Context, d Descriptor) bool {
	url := d.healthURL()
	logger.Debug().Msgf("Probing backend %s at %s", d.ID, url)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Warn().Msgf("Backend %s has an unusable URL: %v", d.ID, err)
		return false
	}
	setAuth(req, d)

	resp, err := r.client.Do(req)
	if err != nil {
		logger.Info().Msgf("Backend %s unavailable: %v", d.ID, err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		logger.Info().Msgf("Backend %s unavailable: HTTP %d", d.ID, resp.StatusCode)
		return false
	}

	logger.Debug().Msgf("Backend %s is available", d.ID)

	return true
}

func setAuth(req *http.Request, d Descriptor) {
	if d.APIKey != "" && d.APIKey != "NA" {
		req.Header.Set("Authorization", "Bearer "+d.APIKey)
	}
}
