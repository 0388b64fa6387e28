package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NickScherbakov/mufu/internal/logger"
)

const (
	defaultMaxTokens  = 2048
	capabilityTimeout = 10 * time.Second
)

// Model names that suggest code support.
var codeModelHints = []string{"code", "coder", "starcoder", "wizard"}

// Capabilities returns what a (backend, model) pair supports. Results are
// memoized with the same discipline as availability; a failed probe caches
// a best-effort default record instead of propagating an error.
func (r *Registry) Capabilities(ctx context.Context, backendID, model string) Capabilities {
	key := backendID + ":" + model

	r.mu.Lock()
	if c, ok := r.caps[key]; ok {
		r.mu.Unlock()
		return c
	}
	r.mu.Unlock()

	v, _, _ := r.flight.Do("caps:"+key, func() (any, error) {
		r.mu.Lock()
		if c, ok := r.caps[key]; ok {
			r.mu.Unlock()
			return c, nil
		}
		r.mu.Unlock()

		caps := Capabilities{
			Backend:               backendID,
			Model:                 model,
			SupportsCode:          nameSuggestsCode(model),
			SupportsSummarization: true,
			MaxTokens:             defaultMaxTokens,
		}

		if d, ok := r.backends[backendID]; ok && d.Kind == KindOllama {
			if numCtx, err := r.showModelContext(ctx, d, model); err == nil && numCtx > 0 {
				caps.MaxTokens = numCtx
			} else if err != nil {
				logger.Debug().Msgf("Capability probe for %s/%s failed: %v", backendID, model, err)
			}
		}

		r.mu.Lock()
		r.caps[key] = caps
		r.mu.Unlock()

		return caps, nil
	})

	return v.(Capabilities)
}

// showModelContext asks ollama's /api/show for the model's context window.
func (r *Registry) showModelContext(ctx context.Context, d Descriptor, model string) (int, error) {
	url := strings.TrimRight(d.BaseURL, "/") + "/api/show"

	body, err := json.Marshal(map[string]string{"name": model})
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, capabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, d)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var info struct {
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, err
	}

	switch v := info.Parameters["num_ctx"].(type) {
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, nil
	}
}

func nameSuggestsCode(model string) bool {
	lower := strings.ToLower(model)
	for _, hint := range codeModelHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}

	return false
}
