package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opensource-finance/harpia/internal/azclient"
	"github.com/opensource-finance/harpia/internal/domain"
)

// AzureOpenAI calls the chat completions API of an Azure OpenAI deployment.
type AzureOpenAI struct {
	client     *azclient.Client
	endpoint   string
	deployment string
	apiVersion string
	timeout    time.Duration
}

var _ Provider = (*AzureOpenAI)(nil)

// NewAzureOpenAI creates an Azure OpenAI provider.
func NewAzureOpenAI(cfg domain.TextGenerationConfig) (*AzureOpenAI, error) {
	client, err := azclient.New(domain.CollaboratorTextGeneration, azclient.Options{
		Endpoint:   cfg.Endpoint,
		KeyHeader:  "api-key",
		Key:        cfg.Key,
		UseEntraID: cfg.UseEntraID,
	})
	if err != nil {
		return nil, err
	}

	return &AzureOpenAI{
		client:     client,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		deployment: cfg.Model,
		apiVersion: cfg.APIVersion,
		timeout:    cfg.Timeout,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message.
func (p *AzureOpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, url.PathEscape(p.deployment), url.QueryEscape(p.apiVersion))

	resp, err := p.client.Do(ctx, http.MethodPost, endpoint, body, "application/json", http.StatusOK)
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := p.client.DecodeJSON(resp, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", domain.NewCollaboratorError(domain.CollaboratorTextGeneration, domain.FailureBadData, "response has no choices", nil)
	}

	return out.Choices[0].Message.Content, nil
}
