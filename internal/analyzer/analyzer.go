// Package analyzer runs the end-to-end analysis of a document:
// extraction, field validation, fraud narrative and risk scoring.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/harpia/internal/classify"
	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/extraction"
	"github.com/opensource-finance/harpia/internal/llm"
	"github.com/opensource-finance/harpia/internal/metrics"
	"github.com/opensource-finance/harpia/internal/narrative"
	"github.com/opensource-finance/harpia/internal/risk"
)

var tracer = otel.Tracer("harpia-analyzer")

// Analysis stages, used in errors and metrics.
const (
	StageExtraction = "extraction"
	StageNarrative  = "narrative"
)

// StageError reports which stage aborted an analysis.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Analyzer produces reports. It holds no per-request state and is safe for
// concurrent use; each call is one independent chain of collaborator calls.
type Analyzer struct {
	extractor  extraction.Extractor
	classifier *classify.Classifier
	narrator   narrative.Requester
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMetrics records analysis metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithClock sets the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New creates an analyzer. A nil classifier uses the built-in field kinds only.
func New(extractor extraction.Extractor, classifier *classify.Classifier, narrator narrative.Requester, opts ...Option) *Analyzer {
	if classifier == nil {
		classifier = classify.NewClassifier(nil)
	}
	a := &Analyzer{
		extractor:  extractor,
		classifier: classifier,
		narrator:   narrator,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig builds the collaborators described by cfg and returns an
// analyzer over them. Collaborators without credentials fall back to their
// not-configured payloads.
func NewFromConfig(ctx context.Context, cfg *domain.Config, classifier *classify.Classifier, opts ...Option) (*Analyzer, error) {
	extractor, err := extraction.New(cfg.Extraction)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}

	provider, err := llm.New(ctx, cfg.TextGeneration)
	if err != nil {
		return nil, fmt.Errorf("failed to create text generation client: %w", err)
	}

	slog.Info("collaborators configured",
		"document_extraction", cfg.Extraction.Configured(),
		"text_generation", cfg.TextGeneration.Configured(),
		"text_provider", cfg.TextGeneration.Provider,
	)

	return New(extractor, classifier, narrative.New(provider), opts...), nil
}

// Analyze runs the full analysis of doc for a tenant.
// A failing collaborator aborts the analysis with a *StageError wrapping the
// collaborator error; no partial report is returned. Validation never fails.
func (a *Analyzer) Analyze(ctx context.Context, tenantID string, doc domain.Document) (*domain.Report, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "analyzer.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("document.name", doc.Name),
		attribute.Int("document.size", len(doc.Content)),
	)

	extracted, err := a.extract(ctx, doc)
	if err != nil {
		return nil, a.fail(span, StageExtraction, err)
	}

	validation, outcomes := a.classifier.ValidateWithOutcomes(tenantID, *extracted)
	for _, o := range outcomes {
		a.metrics.IncrementFieldOutcome(o.Kind, o.Bucket)
	}

	analysis, err := a.narrate(ctx, *extracted, validation)
	if err != nil {
		return nil, a.fail(span, StageNarrative, err)
	}

	score := risk.CalculateScore(validation, analysis)
	level := risk.LevelFor(score)

	report := &domain.Report{
		Timestamp:     a.now(),
		Document:      doc.Name,
		ExtractedData: *extracted,
		Validation:    validation,
		FraudAnalysis: analysis,
		RiskScore:     score,
		RiskLevel:     level,
	}

	span.SetAttributes(
		attribute.Int("risk.score", score),
		attribute.String("risk.level", string(level)),
		attribute.Int("validation.invalid", len(validation.InvalidFields)),
		attribute.Int("validation.warnings", len(validation.Warnings)),
	)
	a.metrics.IncrementAnalyses(string(level), score)
	a.metrics.ObserveAnalysis(start)

	slog.Debug("document analyzed",
		"tenant_id", tenantID,
		"document", doc.Name,
		"risk_score", score,
		"risk_level", level,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

func (a *Analyzer) extract(ctx context.Context, doc domain.Document) (*domain.ExtractedData, error) {
	ctx, span := tracer.Start(ctx, "analyzer.Extract")
	defer span.End()

	start := time.Now()
	extracted, err := a.extractor.Extract(ctx, doc)
	a.metrics.ObserveCollaborator(domain.CollaboratorExtraction, start)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if extracted == nil {
		extracted = &domain.ExtractedData{}
	}
	span.SetAttributes(attribute.Int("fields.count", len(extracted.KeyValuePairs)))
	return extracted, nil
}

func (a *Analyzer) narrate(ctx context.Context, extracted domain.ExtractedData, validation domain.ValidationResult) (domain.FraudAnalysis, error) {
	ctx, span := tracer.Start(ctx, "analyzer.Narrate")
	defer span.End()

	start := time.Now()
	analysis, err := a.narrator.Analyze(ctx, extracted, validation)
	a.metrics.ObserveCollaborator(domain.CollaboratorTextGeneration, start)
	if err != nil {
		span.RecordError(err)
		return domain.FraudAnalysis{}, err
	}
	return analysis, nil
}

func (a *Analyzer) fail(span trace.Span, stage string, err error) error {
	category := "unknown"
	if c, ok := domain.FailureCategoryOf(err); ok {
		category = string(c)
	}
	a.metrics.IncrementFailures(stage, category)

	span.SetStatus(codes.Error, stage+" failed")
	return &StageError{Stage: stage, Err: err}
}
