// Package factory constructs the active provider from configuration.
// The backend is a closed set selected by one value, evaluated exactly
// once; there is no runtime switching. Running against a different
// backend means building a new provider.
package factory

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/antwort-dev/auskunft/pkg/provider"
	"github.com/antwort-dev/auskunft/pkg/provider/ollama"
	"github.com/antwort-dev/auskunft/pkg/provider/watsonx"
)

// Config carries the per-backend adapter configurations plus the
// selector value.
type Config struct {
	// Backend names the provider to construct: "ollama" or "watsonx",
	// matched case-insensitively. Empty selects ollama.
	Backend string

	Ollama  ollama.Config
	Watsonx watsonx.Config
}

// New constructs the provider named by cfg.Backend. Credential and
// host validation happens here, before any network traffic: a cloud
// selection with missing credentials fails immediately with a
// ConfigError naming the absent field.
func New(cfg Config) (provider.Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "ollama"
	}

	slog.Debug("creating provider", "backend", backend)

	var p provider.Provider
	var err error

	switch backend {
	case "ollama":
		p, err = ollama.New(cfg.Ollama)

	case "watsonx":
		p, err = watsonx.New(cfg.Watsonx)

	default:
		return nil, &provider.ConfigError{
			Backend: backend,
			Field:   "LLM_BACKEND",
			Message: fmt.Sprintf("unsupported backend %q (supported: ollama, watsonx)", cfg.Backend),
		}
	}

	if err != nil {
		return nil, err
	}

	slog.Info("provider created", "backend", p.Name())
	return p, nil
}
