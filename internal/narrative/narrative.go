// Package narrative asks the text generation service to describe fraud indicators.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/llm"
)

// NotConfigured is the analysis text returned when no text generation service is set up.
const NotConfigured = "OpenAI client nao configurado"

// Requester produces the fraud narrative for a validated document.
type Requester interface {
	Analyze(ctx context.Context, extracted domain.ExtractedData, validation domain.ValidationResult) (domain.FraudAnalysis, error)
}

// New returns a requester backed by provider, or the not-configured fallback when provider is nil.
func New(provider llm.Provider) Requester {
	if provider == nil {
		return Unconfigured{}
	}
	return &Narrator{provider: provider}
}

// Unconfigured answers with a fixed sentinel and no flags.
type Unconfigured struct{}

// Analyze never fails.
func (Unconfigured) Analyze(ctx context.Context, extracted domain.ExtractedData, validation domain.ValidationResult) (domain.FraudAnalysis, error) {
	return domain.FraudAnalysis{Analysis: NotConfigured, Flags: []string{}}, nil
}

// Narrator sends one prompt per analysis to a text generation provider.
type Narrator struct {
	provider llm.Provider
}

// Analyze requests the narrative. Flags are copied from the invalid fields and
// never derived from the generated text. Provider failures are returned as-is.
func (n *Narrator) Analyze(ctx context.Context, extracted domain.ExtractedData, validation domain.ValidationResult) (domain.FraudAnalysis, error) {
	prompt, err := BuildPrompt(extracted, validation)
	if err != nil {
		return domain.FraudAnalysis{}, err
	}

	text, err := n.provider.Generate(ctx, prompt)
	if err != nil {
		return domain.FraudAnalysis{}, err
	}

	flags := make([]string, len(validation.InvalidFields))
	copy(flags, validation.InvalidFields)

	return domain.FraudAnalysis{Analysis: text, Flags: flags}, nil
}

const promptTemplate = `Analise os seguintes dados extraidos de um documento e identifique possiveis indicadores de fraude:

Dados extraidos: %s
Validacao: %s

Forneca uma analise estruturada com:
1. Indicadores de fraude encontrados
2. Nivel de suspeita (baixo, medio, alto)
3. Recomendacoes`

// BuildPrompt renders the prompt with the key/value pairs and the full validation result.
func BuildPrompt(extracted domain.ExtractedData, validation domain.ValidationResult) (string, error) {
	pairs, err := compactJSON(extracted.KeyValuePairs)
	if err != nil {
		return "", fmt.Errorf("failed to encode key value pairs: %w", err)
	}
	result, err := compactJSON(validation)
	if err != nil {
		return "", fmt.Errorf("failed to encode validation: %w", err)
	}
	return fmt.Sprintf(promptTemplate, pairs, result), nil
}

func compactJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
