package domain

import (
	"encoding/json"
	"io"
	"time"
)

// ValidationResult buckets the evaluated fields of a document.
// Entries keep the order of the extracted key/value pairs.
type ValidationResult struct {
	ValidFields   []string `json:"valid_fields"`
	InvalidFields []string `json:"invalid_fields"`
	Warnings      []string `json:"warnings"`
}

// NewValidationResult returns a result with empty, non-nil buckets.
func NewValidationResult() ValidationResult {
	return ValidationResult{
		ValidFields:   []string{},
		InvalidFields: []string{},
		Warnings:      []string{},
	}
}

// FraudAnalysis is the narrative produced by the text generation service.
// Flags are always a copy of the invalid fields; the narrative is never parsed.
type FraudAnalysis struct {
	Analysis string   `json:"analysis"`
	Flags    []string `json:"flags"`
}

// RiskLevel is the banding of a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "BAIXO"
	RiskMedium   RiskLevel = "MEDIO"
	RiskHigh     RiskLevel = "ALTO"
	RiskCritical RiskLevel = "CRITICO"
)

// IsAlert reports whether the level should raise an alert downstream.
func (l RiskLevel) IsAlert() bool {
	return l == RiskHigh || l == RiskCritical
}

// Report is the complete result of one document analysis.
// Field names are consumed by downstream tooling and must not change.
type Report struct {
	Timestamp     time.Time        `json:"timestamp"`
	Document      string           `json:"document"`
	ExtractedData ExtractedData    `json:"extracted_data"`
	Validation    ValidationResult `json:"validation"`
	FraudAnalysis FraudAnalysis    `json:"fraud_analysis"`
	RiskScore     int              `json:"risk_score"`
	RiskLevel     RiskLevel        `json:"risk_level"`
}

// EncodeReport writes the report as indented UTF-8 JSON.
func EncodeReport(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
