package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/NickScherbakov/mufu/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capabilityRegistry(t *testing.T, handler http.HandlerFunc) *backend.Registry {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return backend.New(
		[]backend.Descriptor{{ID: "ollama", Kind: backend.KindOllama, BaseURL: srv.URL}},
		backend.Config{},
	)
}

func TestCapabilitiesFromOllamaShow(t *testing.T) {
	reg := capabilityRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/show", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "llama3", body["name"])

		json.NewEncoder(w).Encode(map[string]any{
			"parameters": map[string]any{"num_ctx": 4096},
		})
	})

	caps := reg.Capabilities(context.Background(), "ollama", "llama3")
	assert.Equal(t, 4096, caps.MaxTokens)
	assert.False(t, caps.SupportsCode)
	assert.True(t, caps.SupportsSummarization)
}

func TestCapabilitiesStringContextWindow(t *testing.T) {
	reg := capabilityRegistry(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"parameters": map[string]any{"num_ctx": "8192"},
		})
	})

	caps := reg.Capabilities(context.Background(), "ollama", "llama3")
	assert.Equal(t, 8192, caps.MaxTokens)
}

func TestCapabilitiesModelNameSuggestsCode(t *testing.T) {
	reg := capabilityRegistry(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"parameters": map[string]any{}})
	})

	for _, model := range []string{"codellama", "deepseek-coder", "starcoder2", "WizardLM"} {
		caps := reg.Capabilities(context.Background(), "ollama", model)
		assert.True(t, caps.SupportsCode, model)
	}

	caps := reg.Capabilities(context.Background(), "ollama", "llama3")
	assert.False(t, caps.SupportsCode)
}

func TestCapabilitiesDegradeToDefaults(t *testing.T) {
	calls := 0
	reg := capabilityRegistry(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	caps := reg.Capabilities(ctx, "ollama", "llama3")
	assert.Equal(t, 2048, caps.MaxTokens, "A failed probe degrades to the default window")

	// The degraded record is memoized, not retried.
	caps = reg.Capabilities(ctx, "ollama", "llama3")
	assert.Equal(t, 2048, caps.MaxTokens)
	assert.Equal(t, 1, calls)
}

func TestCapabilitiesProbedOnceUnderConcurrency(t *testing.T) {
	var calls int32
	reg := capabilityRegistry(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"parameters": map[string]any{"num_ctx": 4096},
		})
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			caps := reg.Capabilities(ctx, "ollama", "llama3")
			assert.Equal(t, 4096, caps.MaxTokens)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "Racing lookups collapse into one probe")
}

func TestCapabilitiesUnknownBackendUsesDefaults(t *testing.T) {
	reg := backend.New(nil, backend.Config{})

	caps := reg.Capabilities(context.Background(), "ghost", "mistral")
	assert.Equal(t, "ghost", caps.Backend)
	assert.Equal(t, 2048, caps.MaxTokens)
	assert.True(t, caps.SupportsSummarization)
}
