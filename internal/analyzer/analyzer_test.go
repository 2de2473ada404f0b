package analyzer

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opensource-finance/harpia/internal/classify"
	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/extraction"
	"github.com/opensource-finance/harpia/internal/metrics"
	"github.com/opensource-finance/harpia/internal/narrative"
)

type fakeExtractor struct {
	data *domain.ExtractedData
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, doc domain.Document) (*domain.ExtractedData, error) {
	return f.data, f.err
}

type fakeProvider struct {
	calls int
	text  string
	err   error
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.text, f.err
}

var reportTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return reportTime }

func TestAnalyzeUnconfigured(t *testing.T) {
	a := New(extraction.Unconfigured{}, nil, narrative.New(nil), WithClock(fixedClock))

	report, err := a.Analyze(context.Background(), "", domain.Document{Name: "contrato.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Document != "contrato.pdf" {
		t.Errorf("expected document name, got %s", report.Document)
	}
	if !report.Timestamp.Equal(reportTime) {
		t.Errorf("unexpected timestamp %v", report.Timestamp)
	}
	if report.ExtractedData.Error != extraction.NotConfigured {
		t.Errorf("expected not-configured payload, got %+v", report.ExtractedData)
	}
	if report.FraudAnalysis.Analysis != narrative.NotConfigured {
		t.Errorf("expected narrative sentinel, got %q", report.FraudAnalysis.Analysis)
	}
	if report.RiskScore != 0 || report.RiskLevel != domain.RiskLow {
		t.Errorf("expected 0/BAIXO, got %d/%s", report.RiskScore, report.RiskLevel)
	}
}

func TestAnalyze(t *testing.T) {
	var pairs domain.Fields
	pairs.Set("Nome", "Maria")
	pairs.Set("CPF", "123.456.789-00")
	pairs.Set("CNPJ", "123")
	pairs.Set("Data de emissao", "31/02/2020")
	pairs.Set("CPF conjuge", "111.444.777-35")

	extractor := &fakeExtractor{data: &domain.ExtractedData{KeyValuePairs: pairs}}
	provider := &fakeProvider{text: "Nivel de suspeita: alto"}

	reg := prometheus.NewRegistry()
	a := New(extractor, classify.NewClassifier(fixedClock), narrative.New(provider),
		WithClock(fixedClock), WithMetrics(metrics.New(reg)))

	report, err := a.Analyze(context.Background(), "tenant-a", domain.Document{Name: "rg.png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedValidation := domain.ValidationResult{
		ValidFields:   []string{"CPF: 111.444.777-35"},
		InvalidFields: []string{"CPF invalido: 123.456.789-00", "CNPJ invalido: 123"},
		Warnings:      []string{"Data suspeita: 31/02/2020"},
	}
	if !reflect.DeepEqual(report.Validation, expectedValidation) {
		t.Errorf("unexpected validation: %+v", report.Validation)
	}
	if !reflect.DeepEqual(report.FraudAnalysis.Flags, expectedValidation.InvalidFields) {
		t.Errorf("expected flags to equal invalid fields, got %v", report.FraudAnalysis.Flags)
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly one generation call, got %d", provider.calls)
	}

	// 2*25 + 1*10 + 2*15 = 90
	if report.RiskScore != 90 || report.RiskLevel != domain.RiskCritical {
		t.Errorf("expected 90/CRITICO, got %d/%s", report.RiskScore, report.RiskLevel)
	}
}

func TestAnalyzeCollaboratorFailures(t *testing.T) {
	t.Run("ExtractionAbortsBeforeNarrative", func(t *testing.T) {
		failure := domain.NewCollaboratorError(domain.CollaboratorExtraction, domain.FailureAuthentication, "unauthorized", nil)
		provider := &fakeProvider{text: "unused"}
		a := New(&fakeExtractor{err: failure}, nil, narrative.New(provider))

		report, err := a.Analyze(context.Background(), "", domain.Document{Name: "x.pdf"})
		if report != nil {
			t.Error("expected no partial report")
		}
		if !errors.Is(err, domain.ErrServiceUnavailable) {
			t.Fatalf("expected collaborator failure, got %v", err)
		}

		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != StageExtraction {
			t.Errorf("expected extraction stage error, got %v", err)
		}
		if provider.calls != 0 {
			t.Errorf("expected narrative to be skipped, got %d calls", provider.calls)
		}
	})

	t.Run("NarrativeFailure", func(t *testing.T) {
		failure := domain.NewCollaboratorError(domain.CollaboratorTextGeneration, domain.FailureTimeout, "timed out", nil)
		a := New(&fakeExtractor{data: &domain.ExtractedData{}}, nil, narrative.New(&fakeProvider{err: failure}))

		report, err := a.Analyze(context.Background(), "", domain.Document{Name: "x.pdf"})
		if report != nil {
			t.Error("expected no partial report")
		}

		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != StageNarrative {
			t.Errorf("expected narrative stage error, got %v", err)
		}
		if category, _ := domain.FailureCategoryOf(err); category != domain.FailureTimeout {
			t.Errorf("expected timeout category, got %s", category)
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Run("Unconfigured", func(t *testing.T) {
		a, err := NewFromConfig(context.Background(), domain.DefaultConfig(), nil)
		if err != nil {
			t.Fatalf("NewFromConfig failed: %v", err)
		}

		report, err := a.Analyze(context.Background(), "tenant-001", domain.Document{Name: "a.pdf"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.ExtractedData.Error != extraction.NotConfigured {
			t.Errorf("expected extraction sentinel, got %+v", report.ExtractedData)
		}
		if report.FraudAnalysis.Analysis != narrative.NotConfigured {
			t.Errorf("expected narrative sentinel, got %q", report.FraudAnalysis.Analysis)
		}
	})

	t.Run("UnsupportedProvider", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		cfg.TextGeneration.Provider = "watson"
		cfg.TextGeneration.Endpoint = "https://example.invalid"
		cfg.TextGeneration.Key = "k"

		if _, err := NewFromConfig(context.Background(), cfg, nil); err == nil {
			t.Error("expected error for unsupported provider")
		}
	})
}
