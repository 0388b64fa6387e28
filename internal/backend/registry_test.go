package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NickScherbakov/mufu/internal/backend"
	"github.com/NickScherbakov/mufu/internal/classify"
	"github.com/NickScherbakov/mufu/internal/errors"
	"github.com/NickScherbakov/mufu/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCollector captures selection records in memory.
type fakeCollector struct {
	records []*metrics.SelectionRecord
}

func (f *fakeCollector) Record(_ context.Context, rec *metrics.SelectionRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (*fakeCollector) Close() error { return nil }

func ollamaServer(t *testing.T, probes *int32, available bool) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if probes != nil {
			atomic.AddInt32(probes, 1)
		}
		if !available || r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func twoBackendRegistry(t *testing.T, firstUp, secondUp bool, opts ...backend.Option) *backend.Registry {
	t.Helper()

	first := ollamaServer(t, nil, firstUp)
	second := ollamaServer(t, nil, secondUp)

	descriptors := []backend.Descriptor{
		{
			ID:      "ollama",
			Kind:    backend.KindOllama,
			BaseURL: first.URL,
			DefaultModels: map[classify.ContentClass]string{
				classify.General: "llama3",
				classify.Code:    "codellama",
			},
		},
		{
			ID:      "llamacpp",
			Kind:    backend.KindOllama,
			BaseURL: second.URL,
			DefaultModels: map[classify.ContentClass]string{
				classify.General: "mistral",
			},
		},
	}
	cfg := backend.Config{
		Priority: map[classify.ContentClass][]string{
			classify.General: {"ollama", "llamacpp"},
			classify.Code:    {"ollama", "llamacpp"},
		},
	}

	return backend.New(descriptors, cfg, opts...)
}

func TestSelectFirstAvailable(t *testing.T) {
	reg := twoBackendRegistry(t, true, true)

	sel, err := reg.Select(context.Background(), "hello there", backend.Options{})
	require.NoError(t, err)
	assert.Equal(t, "ollama", sel.BackendID)
	assert.Equal(t, "llama3", sel.Model)
	assert.Equal(t, classify.General, sel.Class)
}

func TestSelectFallsThroughToNextBackend(t *testing.T) {
	reg := twoBackendRegistry(t, false, true)

	sel, err := reg.Select(context.Background(), "hello there", backend.Options{})
	require.NoError(t, err)
	assert.Equal(t, "llamacpp", sel.BackendID)
	assert.Equal(t, "mistral", sel.Model)
}

func TestSelectCodeContentUsesCodeModel(t *testing.T) {
	reg := twoBackendRegistry(t, true, true)

	sel, err := reg.Select(context.Background(), "def handler():\n    pass", backend.Options{})
	require.NoError(t, err)
	assert.Equal(t, classify.Code, sel.Class)
	assert.Equal(t, "codellama", sel.Model)
}

func TestSelectExplicitPairBypassesProbing(t *testing.T) {
	var probes int32
	srv := ollamaServer(t, &probes, true)

	reg := backend.New(
		[]backend.Descriptor{{ID: "ollama", Kind: backend.KindOllama, BaseURL: srv.URL}},
		backend.Config{Priority: map[classify.ContentClass][]string{classify.General: {"ollama"}}},
	)

	sel, err := reg.Select(context.Background(), "anything", backend.Options{
		Backend: "yandexgpt",
		Model:   "yandexgpt-lite",
	})
	require.NoError(t, err)
	assert.Equal(t, "yandexgpt", sel.BackendID)
	assert.Equal(t, "yandexgpt-lite", sel.Model)
	assert.Zero(t, atomic.LoadInt32(&probes), "Explicit backend and model must skip availability probes")
}

func TestSelectPreferredBackendMovesToFront(t *testing.T) {
	reg := twoBackendRegistry(t, true, true)

	sel, err := reg.Select(context.Background(), "hello there", backend.Options{Backend: "llamacpp"})
	require.NoError(t, err)
	assert.Equal(t, "llamacpp", sel.BackendID)
	assert.Equal(t, "mistral", sel.Model, "A lone backend preference keeps the class default model")
}

func TestSelectExhaustionError(t *testing.T) {
	reg := twoBackendRegistry(t, false, false)

	_, err := reg.Select(context.Background(), "hello there", backend.Options{})
	require.Error(t, err)
	assert.Equal(t, backend.ErrNoneAvailable, errors.CodeOf(err))
}

func TestAvailabilityMemoized(t *testing.T) {
	var probes int32
	srv := ollamaServer(t, &probes, true)

	reg := backend.New(
		[]backend.Descriptor{{
			ID:            "ollama",
			Kind:          backend.KindOllama,
			BaseURL:       srv.URL,
			DefaultModels: map[classify.ContentClass]string{classify.General: "llama3"},
		}},
		backend.Config{Priority: map[classify.ContentClass][]string{classify.General: {"ollama"}}},
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := reg.Select(ctx, "hello", backend.Options{})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&probes), "Availability is probed once per process by default")
}

func TestAvailabilityProbedOnceUnderConcurrency(t *testing.T) {
	var probes int32
	srv := ollamaServer(t, &probes, true)

	reg := backend.New(
		[]backend.Descriptor{{
			ID:            "ollama",
			Kind:          backend.KindOllama,
			BaseURL:       srv.URL,
			DefaultModels: map[classify.ContentClass]string{classify.General: "llama3"},
		}},
		backend.Config{Priority: map[classify.ContentClass][]string{classify.General: {"ollama"}}},
	)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Select(ctx, "hello", backend.Options{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&probes), "Racing selections collapse into one probe")
}

func TestAvailabilityTTLExpiry(t *testing.T) {
	var probes int32
	srv := ollamaServer(t, &probes, true)

	current := time.Unix(1_700_000_000, 0)
	reg := backend.New(
		[]backend.Descriptor{{
			ID:            "ollama",
			Kind:          backend.KindOllama,
			BaseURL:       srv.URL,
			DefaultModels: map[classify.ContentClass]string{classify.General: "llama3"},
		}},
		backend.Config{
			Priority:        map[classify.ContentClass][]string{classify.General: {"ollama"}},
			AvailabilityTTL: time.Minute,
		},
		backend.WithClock(func() time.Time { return current }),
	)
	ctx := context.Background()

	_, err := reg.Select(ctx, "hello", backend.Options{})
	require.NoError(t, err)
	_, err = reg.Select(ctx, "hello", backend.Options{})
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&probes))

	current = current.Add(2 * time.Minute)
	_, err = reg.Select(ctx, "hello", backend.Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&probes), "A stale entry is re-probed")
}

func TestAvailabilitySendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	reg := backend.New(
		[]backend.Descriptor{{ID: "yandexgpt", Kind: backend.KindOpenAI, BaseURL: srv.URL, APIKey: "secret"}},
		backend.Config{},
	)

	assert.True(t, reg.Available(context.Background(), "yandexgpt"))
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestAvailableUnknownBackend(t *testing.T) {
	reg := backend.New(nil, backend.Config{})
	assert.False(t, reg.Available(context.Background(), "nope"))
}

func TestSelectAuditRecords(t *testing.T) {
	audit := &fakeCollector{}
	reg := twoBackendRegistry(t, true, true, backend.WithAuditCollector(audit))
	ctx := context.Background()

	_, err := reg.Select(ctx, "hello there", backend.Options{})
	require.NoError(t, err)
	_, err = reg.Select(ctx, "hello again", backend.Options{})
	require.NoError(t, err)
	_, err = reg.Select(ctx, "anything", backend.Options{Backend: "b", Model: "m"})
	require.NoError(t, err)

	require.Len(t, audit.records, 3)
	assert.Equal(t, "ollama", audit.records[0].Backend)
	assert.False(t, audit.records[0].CacheHit, "First selection probed")
	assert.True(t, audit.records[1].CacheHit, "Second selection hit the availability memo")
	assert.True(t, audit.records[2].Explicit)
}
