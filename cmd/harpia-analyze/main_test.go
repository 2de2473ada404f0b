package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/extraction"
	"github.com/opensource-finance/harpia/internal/narrative"
)

func noEnv(string) string { return "" }

func writeDocument(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	return path
}

func TestAnalyzeCommand(t *testing.T) {
	t.Run("ExportsReport", func(t *testing.T) {
		doc := writeDocument(t, "contrato.pdf")
		output := filepath.Join(t.TempDir(), DefaultReportFile)

		var stdout bytes.Buffer
		cmd := newRootCmd(noEnv)
		cmd.SetOut(&stdout)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{doc, "--output", output})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("command failed: %v", err)
		}

		text := stdout.String()
		for _, want := range []string{"Score de Risco: 0/100", "Nivel de Risco: BAIXO", "Campos Validos/Invalidos: 0/0", narrative.NotConfigured, "Relatorio exportado"} {
			if !strings.Contains(text, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, text)
			}
		}

		data, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		var report domain.Report
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("invalid report JSON: %v", err)
		}
		if report.Document != doc {
			t.Errorf("expected document %s, got %s", doc, report.Document)
		}
		if report.ExtractedData.Error != extraction.NotConfigured {
			t.Errorf("expected extraction sentinel, got %+v", report.ExtractedData)
		}
	})

	t.Run("NoExport", func(t *testing.T) {
		doc := writeDocument(t, "rg.png")
		dir := t.TempDir()
		output := filepath.Join(dir, "out.json")

		cmd := newRootCmd(noEnv)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{doc, "--no-export", "-o", output})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("command failed: %v", err)
		}
		if _, err := os.Stat(output); !os.IsNotExist(err) {
			t.Error("expected no report file")
		}
	})

	t.Run("WithRules", func(t *testing.T) {
		doc := writeDocument(t, "cnh.jpg")
		dbPath := filepath.Join(t.TempDir(), "rules.db")
		env := func(key string) string {
			if key == "HARPIA_SQLITE_PATH" {
				return dbPath
			}
			return ""
		}

		cmd := newRootCmd(env)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{doc, "--with-rules", "--tenant", "bank-a", "--no-export"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("command failed: %v", err)
		}
		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("expected repository at %s: %v", dbPath, err)
		}
	})

	t.Run("UnsupportedExtension", func(t *testing.T) {
		doc := writeDocument(t, "planilha.xlsx")

		cmd := newRootCmd(noEnv)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{doc})

		if err := cmd.Execute(); err == nil {
			t.Error("expected error for unsupported extension")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		cmd := newRootCmd(noEnv)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nao-existe.pdf")})

		if err := cmd.Execute(); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("RequiresOneArgument", func(t *testing.T) {
		cmd := newRootCmd(noEnv)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{})

		if err := cmd.Execute(); err == nil {
			t.Error("expected error without a document")
		}
	})
}

func TestPrintSummary(t *testing.T) {
	var pairs domain.Fields
	pairs.Set("CPF", "111.444.777-35")

	report := &domain.Report{
		Timestamp:     time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Document:      "rg.png",
		ExtractedData: domain.ExtractedData{KeyValuePairs: pairs},
		Validation: domain.ValidationResult{
			ValidFields:   []string{"CPF: 111.444.777-35"},
			InvalidFields: []string{"CNPJ invalido: 123", "CPF invalido: 1"},
			Warnings:      []string{"Data suspeita: 01/01/2999"},
		},
		RiskScore: 60,
		RiskLevel: domain.RiskHigh,
	}

	var out bytes.Buffer
	if err := printSummary(&out, report, true); err != nil {
		t.Fatalf("printSummary failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Score de Risco: 60/100",
		"Nivel de Risco: ALTO",
		"Campos Validos/Invalidos: 1/2",
		"Campos invalidos: CNPJ invalido: 123, CPF invalido: 1",
		"Alertas: Data suspeita: 01/01/2999",
		analysisUnavailable,
		"Dados Extraidos",
		`"CPF": "111.444.777-35"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected summary to contain %q, got:\n%s", want, text)
		}
	}
}
