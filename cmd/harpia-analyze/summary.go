package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/opensource-finance/harpia/internal/domain"
)

const analysisUnavailable = "Analise nao disponivel"

// printSummary writes the human readable part of a report.
func printSummary(w io.Writer, report *domain.Report, showData bool) error {
	v := report.Validation

	fmt.Fprintf(w, "Documento: %s\n\n", report.Document)
	fmt.Fprintf(w, "Score de Risco: %d/100\n", report.RiskScore)
	fmt.Fprintf(w, "Nivel de Risco: %s\n", report.RiskLevel)
	fmt.Fprintf(w, "Campos Validos/Invalidos: %d/%d\n", len(v.ValidFields), len(v.InvalidFields))

	fmt.Fprintln(w, "\nDetalhes da Validacao")
	if len(v.ValidFields) > 0 {
		fmt.Fprintf(w, "  Campos validos: %s\n", strings.Join(v.ValidFields, ", "))
	}
	if len(v.InvalidFields) > 0 {
		fmt.Fprintf(w, "  Campos invalidos: %s\n", strings.Join(v.InvalidFields, ", "))
	}
	if len(v.Warnings) > 0 {
		fmt.Fprintf(w, "  Alertas: %s\n", strings.Join(v.Warnings, ", "))
	}

	analysis := report.FraudAnalysis.Analysis
	if analysis == "" {
		analysis = analysisUnavailable
	}
	fmt.Fprintln(w, "\nAnalise de Fraude")
	fmt.Fprintln(w, analysis)

	if showData {
		data, err := json.MarshalIndent(report.ExtractedData, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode extracted data: %w", err)
		}
		fmt.Fprintln(w, "\nDados Extraidos")
		fmt.Fprintln(w, string(data))
	}
	return nil
}
