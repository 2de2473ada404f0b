// Package extraction pulls key/value pairs and tables out of scanned documents.
package extraction

import (
	"context"

	"github.com/opensource-finance/harpia/internal/domain"
)

// NotConfigured is the error payload returned when no extraction service is set up.
const NotConfigured = "Document Intelligence client nao configurado"

// Extractor extracts structured data from a document.
// Failures of a configured service are returned as *domain.CollaboratorError.
type Extractor interface {
	Extract(ctx context.Context, doc domain.Document) (*domain.ExtractedData, error)
}

// New returns the extractor selected by cfg, or the not-configured fallback.
func New(cfg domain.ExtractionConfig) (Extractor, error) {
	if !cfg.Configured() {
		return Unconfigured{}, nil
	}
	return NewDocumentIntelligence(cfg)
}

// Unconfigured returns an explicit error payload instead of failing.
// The payload has no key/value pairs, so nothing gets validated.
type Unconfigured struct{}

// Extract never fails.
func (Unconfigured) Extract(ctx context.Context, doc domain.Document) (*domain.ExtractedData, error) {
	return &domain.ExtractedData{Error: NotConfigured}, nil
}
