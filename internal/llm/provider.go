// Package llm provides text generation backends for the fraud narrative.
package llm

import (
	"context"
	"fmt"

	"github.com/opensource-finance/harpia/internal/domain"
)

// Provider generates free text from a prompt.
// Failures are returned as *domain.CollaboratorError.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Temperature used for every generation request.
const Temperature = 0.1

// New returns the provider selected by cfg.
// When the provider has no credentials it returns nil and no error.
func New(ctx context.Context, cfg domain.TextGenerationConfig) (Provider, error) {
	if !cfg.Configured() {
		return nil, nil
	}

	switch cfg.Provider {
	case domain.TextProviderAzureOpenAI, "":
		return NewAzureOpenAI(cfg)
	case domain.TextProviderGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported text provider: %s", cfg.Provider)
	}
}
