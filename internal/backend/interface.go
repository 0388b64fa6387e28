package backend

import (
	"context"
	"strings"

	"github.com/NickScherbakov/mufu/internal/classify"
)

type Kind string

const (
	KindOllama Kind = "ollama"
	KindOpenAI Kind = "openai"
	KindCustom Kind = "custom"
)

// Descriptor describes one inference backend. Configured at startup and
// read-only for the lifetime of the process.
type Descriptor struct {
	ID      string
	Kind    Kind
	BaseURL string
	APIKey  string
	// HealthPath overrides the model-listing path probed for availability.
	HealthPath    string
	DefaultModels map[classify.ContentClass]string
}

// DefaultModel returns the configured model for the class, falling back to
// the general model.
func (d Descriptor) DefaultModel(class classify.ContentClass) string {
	if m, ok := d.DefaultModels[class]; ok && m != "" {
		return m
	}

	return d.DefaultModels[classify.General]
}

func (d Descriptor) healthURL() string {
	base := strings.TrimRight(d.BaseURL, "/")

	path := d.HealthPath
	if path == "" {
		if d.Kind == KindOllama {
			path = "/api/tags"
		} else {
			path = "/models"
		}
	}

	return base + path
}

// Selection is the outcome of routing a payload.
type Selection struct {
	BackendID string
	Model     string
	Class     classify.ContentClass
}

// Options carry caller preferences. Backend alone nudges the priority
// order; Backend and Model together bypass selection entirely.
type Options struct {
	Backend string
	Model   string
}

// Capabilities describe what a (backend, model) pair supports. Advisory
// only; lookups degrade to defaults instead of failing.
type Capabilities struct {
	Backend               string
	Model                 string
	SupportsCode          bool
	SupportsSummarization bool
	MaxTokens             int
	Description           string
}

// Selector picks a backend and model for a payload.
type Selector interface {
	Select(ctx context.Context, payload string, opts Options) (Selection, error)
}
