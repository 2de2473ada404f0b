package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/opensource-finance/harpia/internal/domain"
)

// Gemini generates text with the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ Provider = (*Gemini)(nil)

// NewGemini creates a Gemini provider. A non-empty Endpoint replaces the
// default Gemini API base URL.
func NewGemini(ctx context.Context, cfg domain.TextGenerationConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.Key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.Endpoint},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &Gemini{client: client, model: model, timeout: cfg.Timeout}, nil
}

// Generate sends prompt as a single user turn.
func (p *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(Temperature)),
	})
	if err != nil {
		return "", geminiError(ctx, err)
	}

	text := result.Text()
	if text == "" {
		return "", emptyResponseError(result)
	}
	return text, nil
}

// emptyResponseError reports a response without usable text, e.g. a blocked prompt.
func emptyResponseError(result *genai.GenerateContentResponse) error {
	msg := "response has no text"
	if len(result.Candidates) == 0 {
		msg = "response has no candidates"
	} else if reason := result.Candidates[0].FinishReason; reason != "" {
		msg = fmt.Sprintf("%s (finish reason %s)", msg, reason)
	}
	if fb := result.PromptFeedback; fb != nil && fb.BlockReason != "" {
		msg = fmt.Sprintf("%s (blocked: %s)", msg, fb.BlockReason)
	}
	return domain.NewCollaboratorError(domain.CollaboratorTextGeneration, domain.FailureBadData, msg, nil)
}

func geminiError(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewCollaboratorError(domain.CollaboratorTextGeneration,
			domain.StatusCategory(apiErr.Code), fmt.Sprintf("gemini status %d", apiErr.Code), err)
	}
	if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return domain.TransportError(domain.CollaboratorTextGeneration, err)
}
